package digitnorm

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Field is a row-major grid of float samples.
type Field struct {
	Rows int
	Cols int
	Data []float32
}

// NewField allocates a zeroed rows x cols field.
func NewField(rows, cols int) *Field {
	return &Field{
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}
}

// At returns the sample at row r, column c.
func (f *Field) At(r, c int) float32 {
	return f.Data[r*f.Cols+c]
}

// Set stores v at row r, column c.
func (f *Field) Set(r, c int, v float32) {
	f.Data[r*f.Cols+c] = v
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	out := NewField(f.Rows, f.Cols)
	copy(out.Data, f.Data)
	return out
}

// Mean returns the average sample value, 0 for an empty field.
func (f *Field) Mean() float64 {
	if len(f.Data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range f.Data {
		sum += float64(v)
	}
	return sum / float64(len(f.Data))
}

// Rows2D returns the field as a slice of rows, used for JSON output.
func (f *Field) Rows2D() [][]float32 {
	out := make([][]float32, f.Rows)
	for r := range out {
		out[r] = f.Data[r*f.Cols : (r+1)*f.Cols]
	}
	return out
}

// Gray renders the field as an 8-bit image. scale maps a sample to [0,255]:
// 255 for a [0,1] field, 1 for a field already in [0,255].
func (f *Field) Gray(scale float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Cols, f.Rows))
	for i, v := range f.Data {
		img.Pix[(i/f.Cols)*img.Stride+i%f.Cols] = toByte(float64(v) * scale)
	}
	return img
}

// grayField converts an image to a single channel field in [0,255].
// Transparent pixels are composited over white first so a drawing surface
// with an alpha channel reads as ink on paper.
func grayField(img image.Image) *Field {
	b := img.Bounds()
	f := NewField(b.Dy(), b.Dx())

	gray, ok := img.(*image.Gray)
	if !ok {
		gray = image.NewGray(b)
		if hasAlpha(img) {
			draw.Draw(gray, b, image.NewUniform(color.White), image.Point{}, draw.Src)
			draw.Draw(gray, b, img, b.Min, draw.Over)
		} else {
			draw.Draw(gray, b, img, b.Min, draw.Src)
		}
	}

	for y := 0; y < f.Rows; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < f.Cols; x++ {
			f.Data[y*f.Cols+x] = float32(row[x])
		}
	}
	return f
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

func toByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= maxSampleValue {
		return 255
	}
	return uint8(math.Round(v))
}
