package quality

import (
	"image"
	"image/color"
)

// luma extracts BT.601 luminance of r in row-major order.
func luma(img image.Image, r image.Rectangle) []float64 {
	w, h := r.Dx(), r.Dy()
	out := make([]float64, 0, w*h)

	switch src := img.(type) {
	case *image.YCbCr:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				out = append(out, float64(src.Y[src.YOffset(x, y)]))
			}
		}
	case *image.Gray:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			row := src.Pix[src.PixOffset(r.Min.X, y):]
			for x := 0; x < w; x++ {
				out = append(out, float64(row[x]))
			}
		}
	default:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				out = append(out, gray(img.At(x, y)))
			}
		}
	}
	return out
}

func gray(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
}

// laplacianVariance convolves the 4-neighbour Laplacian kernel over a w x h
// luminance plane and returns the population variance of the response.
// Borders reflect without repeating the edge pixel.
func laplacianVariance(pix []float64, w, h int) float64 {
	if w < 2 || h < 2 {
		return 0
	}

	var sum, sumSq float64
	for y := 0; y < h; y++ {
		up, down := reflect(y-1, h), reflect(y+1, h)
		for x := 0; x < w; x++ {
			left, right := reflect(x-1, w), reflect(x+1, w)
			v := pix[up*w+x] + pix[down*w+x] + pix[y*w+left] + pix[y*w+right] - 4*pix[y*w+x]
			sum += v
			sumSq += v * v
		}
	}

	n := float64(w * h)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		return 0
	}
	return variance
}

func reflect(i, n int) int {
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - i - 2
	}
	return i
}
