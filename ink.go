package digitnorm

import "image"

const (
	// DefaultMinInkPixels is the ink count a drawing surface must exceed
	// before it is worth normalizing.
	DefaultMinInkPixels = 30

	nearWhite = 250
)

// InkPixels counts pixels whose luminance (0.299R + 0.587G + 0.114B) is
// below the near-white threshold of 250. Luminance is compared unrounded,
// and transparent pixels read as white.
func InkPixels(img image.Image) int {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	count := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if luma(img, x, y) < nearWhite {
				count++
			}
		}
	}
	return count
}

// luma returns the 8-bit scale luminance of the pixel composited over white.
func luma(img image.Image, x, y int) float64 {
	r, g, b, a := img.At(x, y).RGBA()
	bg := 0xffff - a
	return (0.299*float64(r+bg) + 0.587*float64(g+bg) + 0.114*float64(b+bg)) / 257
}

// HasInk reports whether img carries more than minPixels ink pixels.
// Hosts call it on canvas input to skip the normalizer for blank drawings.
func HasInk(img image.Image, minPixels int) bool {
	return InkPixels(img) > minPixels
}
