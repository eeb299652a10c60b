package digitnorm

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// paper returns a w x h grayscale image filled with level.
func paper(w, h int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: level}), image.Point{}, draw.Src)
	return img
}

// stroke paints r with level.
func stroke(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// verticalBar is a 60x60 white sheet with an 8x40 black bar in the middle.
func verticalBar() *image.Gray {
	img := paper(60, 60, 255)
	stroke(img, image.Rect(26, 10, 34, 50), color.Black)
	return img
}

// squareSheet is the 100x100 sheet with a 40x40 black square at (10,10).
func squareSheet() *image.Gray {
	img := paper(100, 100, 255)
	stroke(img, image.Rect(10, 10, 50, 50), color.Black)
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func countNonZero(f *Field) int {
	n := 0
	for _, v := range f.Data {
		if v != 0 {
			n++
		}
	}
	return n
}
