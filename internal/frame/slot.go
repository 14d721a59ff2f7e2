package frame

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
)

// Frame is one captured image with its position in the capture sequence.
type Frame struct {
	Seq        uint64
	Image      image.Image
	CapturedAt time.Time
}

type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Slot holds only the most recent frame. The producer overwrites it; frames
// nobody read before the overwrite count as dropped. Consumers always get
// their own copy of the pixels.
type Slot struct {
	mu      sync.Mutex
	current Frame
	read    bool
	dropped uint64
	changed chan struct{}
}

func NewSlot() *Slot {
	return &Slot{changed: make(chan struct{})}
}

// Publish stores img as the latest frame. The slot takes ownership of img;
// the caller must not modify it afterwards.
func (s *Slot) Publish(img image.Image, at time.Time) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Seq > 0 && !s.read {
		s.dropped++
	}
	s.current = Frame{Seq: s.current.Seq + 1, Image: img, CapturedAt: at}
	s.read = false

	close(s.changed)
	s.changed = make(chan struct{})
	return s.current.Seq
}

// Latest returns a copy of the most recent frame, or false before the first publish.
func (s *Slot) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Seq == 0 {
		return Frame{}, false
	}
	return s.copyOut(), true
}

// Next blocks until a frame newer than afterSeq is available or ctx is done.
func (s *Slot) Next(ctx context.Context, afterSeq uint64) (Frame, error) {
	for {
		s.mu.Lock()
		if s.current.Seq > afterSeq {
			f := s.copyOut()
			s.mu.Unlock()
			return f, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-changed:
		}
	}
}

// Seq returns the sequence number of the latest frame without copying it.
func (s *Slot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Seq
}

func (s *Slot) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Published: s.current.Seq, Dropped: s.dropped}
}

// copyOut must be called with mu held.
func (s *Slot) copyOut() Frame {
	s.read = true
	return Frame{
		Seq:        s.current.Seq,
		Image:      imaging.Clone(s.current.Image),
		CapturedAt: s.current.CapturedAt,
	}
}
