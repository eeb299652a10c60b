package digitnorm

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// boostContrast multiplies every sample by factor and clamps to [0,255].
// Faint shadows stay low while pen strokes saturate.
func boostContrast(f *Field, factor float32) {
	for i, v := range f.Data {
		v *= factor
		if v > maxSampleValue {
			v = maxSampleValue
		} else if v < 0 {
			v = 0
		}
		f.Data[i] = v
	}
}

func invert(f *Field) {
	for i, v := range f.Data {
		f.Data[i] = maxSampleValue - v
	}
}

func scaleBy(f *Field, s float32) {
	for i := range f.Data {
		f.Data[i] *= s
	}
}

func binarize(f *Field, threshold float32) {
	for i, v := range f.Data {
		if v > threshold {
			f.Data[i] = 1
		} else {
			f.Data[i] = 0
		}
	}
}

// inkBounds returns the tight rectangle around nonzero samples.
// ok is false when there are none.
func inkBounds(f *Field) (box image.Rectangle, ok bool) {
	minX, minY := f.Cols, f.Rows
	maxX, maxY := -1, -1
	for y := 0; y < f.Rows; y++ {
		for x := 0; x < f.Cols; x++ {
			if f.Data[y*f.Cols+x] == 0 {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func crop(f *Field, box image.Rectangle) *Field {
	out := NewField(box.Dy(), box.Dx())
	for y := 0; y < out.Rows; y++ {
		src := f.Data[(box.Min.Y+y)*f.Cols+box.Min.X:]
		copy(out.Data[y*out.Cols:(y+1)*out.Cols], src[:out.Cols])
	}
	return out
}

// fitSize scales (h, w) so the longer side becomes target, rounding half to even.
func fitSize(h, w, target int) (newH, newW int) {
	scale := float64(target) / float64(max(h, w))
	newH = max(1, int(math.RoundToEven(float64(h)*scale)))
	newW = max(1, int(math.RoundToEven(float64(w)*scale)))
	return newH, newW
}

// resample resizes a [0,1] field with a bilinear kernel. The kernel widens
// when shrinking, so binarized edges come out anti-aliased like MNIST strokes.
func resample(f *Field, h, w int) *Field {
	src := f.Gray(maxSampleValue)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out := NewField(h, w)
	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			out.Data[y*w+x] = float32(row[x]) / maxSampleValue
		}
	}
	return out
}

// paste copies src into dst with its top-left corner at (top, left).
// Samples falling outside dst are dropped.
func paste(dst, src *Field, top, left int) {
	for y := 0; y < src.Rows; y++ {
		ty := top + y
		if ty < 0 || ty >= dst.Rows {
			continue
		}
		for x := 0; x < src.Cols; x++ {
			tx := left + x
			if tx < 0 || tx >= dst.Cols {
				continue
			}
			dst.Data[ty*dst.Cols+tx] = src.Data[y*src.Cols+x]
		}
	}
}

// centerOfMass returns the intensity weighted centroid (row, col).
// Both are NaN when the field sums to zero.
func centerOfMass(f *Field) (cy, cx float64) {
	var total, sy, sx float64
	for y := 0; y < f.Rows; y++ {
		for x := 0; x < f.Cols; x++ {
			v := float64(f.Data[y*f.Cols+x])
			total += v
			sy += v * float64(y)
			sx += v * float64(x)
		}
	}
	if total == 0 {
		return math.NaN(), math.NaN()
	}
	return sy / total, sx / total
}

// centeringShift returns the whole-pixel offset moving c onto target.
// An undefined centroid yields no shift.
func centeringShift(c float64, target int) int {
	if math.IsNaN(c) {
		return 0
	}
	return int(math.RoundToEven(float64(target) - c))
}

// translate moves the field by (dy, dx) with linear interpolation.
// Samples shifted in from outside are zero.
func translate(f *Field, dy, dx float64) *Field {
	out := NewField(f.Rows, f.Cols)
	for y := 0; y < f.Rows; y++ {
		for x := 0; x < f.Cols; x++ {
			out.Data[y*f.Cols+x] = sampleLinear(f, float64(y)-dy, float64(x)-dx)
		}
	}
	return out
}

func sampleLinear(f *Field, y, x float64) float32 {
	const eps = 1e-9
	if y < -eps || x < -eps || y > float64(f.Rows-1)+eps || x > float64(f.Cols-1)+eps {
		return 0
	}
	y0 := int(math.Floor(y + eps))
	x0 := int(math.Floor(x + eps))
	y0 = min(max(y0, 0), f.Rows-1)
	x0 = min(max(x0, 0), f.Cols-1)
	y1 := min(y0+1, f.Rows-1)
	x1 := min(x0+1, f.Cols-1)
	fy := max(y-float64(y0), 0)
	fx := max(x-float64(x0), 0)

	top := float64(f.At(y0, x0))*(1-fx) + float64(f.At(y0, x1))*fx
	bottom := float64(f.At(y1, x0))*(1-fx) + float64(f.At(y1, x1))*fx
	return float32(top*(1-fy) + bottom*fy)
}

func flatten(f *Field) []float32 {
	out := make([]float32, len(f.Data))
	copy(out, f.Data)
	return out
}
