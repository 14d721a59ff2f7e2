package camera

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
)

// DirectorySource replays the JPEG and PNG files of a directory in lexical
// order, looping forever. Used for development and tests.
type DirectorySource struct {
	mu     sync.Mutex
	files  []string
	next   int
	closed bool
}

func NewDirectorySource(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read camera dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}
	sort.Strings(files)

	return &DirectorySource{files: files}, nil
}

func (s *DirectorySource) NextFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrFrameUnavailable.WithError(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrFrameUnavailable.WithError(ErrSourceClosed)
	}
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, domain.ErrFrameUnavailable.WithError(err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, domain.ErrFrameUnavailable.WithError(fmt.Errorf("%s: %w", filepath.Base(path), err))
	}
	return img, nil
}

func (s *DirectorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
