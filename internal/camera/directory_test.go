package camera

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

func writePNG(t *testing.T, path string, w int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, 10))))
}

func TestDirectorySource_LoopsInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 20)
	writePNG(t, filepath.Join(dir, "a.png"), 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src, err := NewDirectorySource(dir)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	var widths []int
	for i := 0; i < 3; i++ {
		img, err := src.NextFrame(ctx)
		require.NoError(t, err)
		widths = append(widths, img.Bounds().Dx())
	}

	assert.Equal(t, []int{10, 20, 10}, widths)
}

func TestDirectorySource_Empty(t *testing.T) {
	_, err := NewDirectorySource(t.TempDir())
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestDirectorySource_Closed(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 10)

	src, err := NewDirectorySource(dir)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = src.NextFrame(context.Background())
	assert.ErrorIs(t, err, domain.ErrFrameUnavailable)
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestDirectorySource_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("nope"), 0o644))

	src, err := NewDirectorySource(dir)
	require.NoError(t, err)

	_, err = src.NextFrame(context.Background())
	assert.ErrorIs(t, err, domain.ErrFrameUnavailable)
}
