package imaging

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestClone_DoesNotShareMemory(t *testing.T) {
	src := solid(4, 4, color.RGBA{R: 10, A: 255})

	dst := Clone(src)
	src.SetRGBA(0, 0, color.RGBA{G: 200, A: 255})

	assert.Equal(t, color.RGBA{R: 10, A: 255}, dst.RGBAAt(0, 0))
	assert.Equal(t, src.Bounds(), dst.Bounds())
}

func TestDownscale(t *testing.T) {
	src := solid(640, 480, color.RGBA{B: 90, A: 255})

	got := Downscale(src, 0.5)
	assert.Equal(t, image.Rect(0, 0, 320, 240), got.Bounds())

	assert.Same(t, src, Downscale(src, 1).(*image.RGBA))
}

func TestCrop(t *testing.T) {
	src := solid(100, 100, color.RGBA{R: 1, A: 255})
	src.SetRGBA(20, 10, color.RGBA{R: 250, A: 255})

	crop, err := Crop(src, domain.BoundingBox{Top: 10, Left: 20, Bottom: 40, Right: 60})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), crop.Bounds())
	assert.Equal(t, uint8(250), crop.RGBAAt(0, 0).R)

	_, err = Crop(src, domain.BoundingBox{Top: 200, Left: 200, Bottom: 300, Right: 300})
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}

func TestCanonicalCrop(t *testing.T) {
	src := solid(300, 200, color.RGBA{G: 120, A: 255})

	got, err := CanonicalCrop(src, domain.BoundingBox{Top: 20, Left: 40, Bottom: 140, Right: 130}, 256)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 256, 256), got.Bounds())
	assert.InDelta(t, 120, float64(got.RGBAAt(128, 128).G), 1)
}

func TestJPEGRoundTrip(t *testing.T) {
	src := solid(32, 24, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	data, err := JPEGBytes(src)
	require.NoError(t, err)

	img, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}
