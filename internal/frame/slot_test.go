package frame

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestSlot_LatestBeforePublish(t *testing.T) {
	_, ok := NewSlot().Latest()
	assert.False(t, ok)
}

func TestSlot_LatestCopiesPixels(t *testing.T) {
	slot := NewSlot()
	slot.Publish(solid(10), time.Now())

	f, ok := slot.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Seq)

	f.Image.(*image.RGBA).Set(0, 0, color.RGBA{R: 255, A: 255})

	again, _ := slot.Latest()
	assert.Equal(t, uint8(10), again.Image.(*image.RGBA).Pix[0], "consumer writes do not reach the slot")
}

func TestSlot_CountsDroppedFrames(t *testing.T) {
	slot := NewSlot()
	now := time.Now()

	slot.Publish(solid(1), now)
	slot.Publish(solid(2), now) // frame 1 never read
	_, _ = slot.Latest()
	slot.Publish(solid(3), now) // frame 2 was read

	assert.Equal(t, Stats{Published: 3, Dropped: 1}, slot.Stats())
}

func TestSlot_NextBlocksUntilNewer(t *testing.T) {
	slot := NewSlot()
	slot.Publish(solid(1), time.Now())

	var wg sync.WaitGroup
	wg.Add(1)
	var got Frame
	var gotErr error
	go func() {
		defer wg.Done()
		got, gotErr = slot.Next(context.Background(), 1)
	}()

	time.Sleep(20 * time.Millisecond)
	slot.Publish(solid(2), time.Now())
	wg.Wait()

	require.NoError(t, gotErr)
	assert.Equal(t, uint64(2), got.Seq)
	assert.Equal(t, uint8(2), got.Image.(*image.RGBA).Pix[0])
}

func TestSlot_NextReturnsImmediatelyWhenNewer(t *testing.T) {
	slot := NewSlot()
	slot.Publish(solid(1), time.Now())
	slot.Publish(solid(2), time.Now())

	f, err := slot.Next(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq, "only the latest frame is kept")
}

func TestSlot_NextHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewSlot().Next(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
