// Package imaging holds the pixel operations shared by the capture and
// enrollment paths: copy-out, downscaling, cropping and JPEG encoding.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

const DefaultJPEGQuality = 90

// Clone copies img into a freshly allocated RGBA image with the same bounds.
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// Downscale resizes img by factor using bilinear sampling. A factor of 1 or
// more returns img unchanged.
func Downscale(img image.Image, factor float64) image.Image {
	if factor >= 1 || factor <= 0 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Crop copies the box region of img into a new image whose origin is (0,0).
// The box is clamped to the image bounds first.
func Crop(img image.Image, box domain.BoundingBox) (*image.RGBA, error) {
	r := box.Clamp(img.Bounds()).Rect()
	if r.Empty() {
		return nil, domain.ErrInvalidImage.WithMessage("crop region is empty")
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

// CanonicalCrop crops box and resizes it to size x size with Catmull-Rom
// interpolation. Enrollment scores every candidate on this fixed geometry
// so sharpness values are comparable across face sizes.
func CanonicalCrop(img image.Image, box domain.BoundingBox, size int) (*image.RGBA, error) {
	crop, err := Crop(img, box)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), crop, crop.Bounds(), draw.Src, nil)
	return dst, nil
}

func EncodeJPEG(w io.Writer, img image.Image) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: DefaultJPEGQuality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

func JPEGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a JPEG or PNG image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	return img, nil
}
