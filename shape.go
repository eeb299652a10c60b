package digitnorm

import (
	"image"
	"math"
)

const strokeLevel = 0.5

// extractShape measures a bright-on-dark canvas inside its ink bounds.
func extractShape(canvas *Field) shapeProfile {
	var f shapeProfile

	box, ok := strokeBounds(canvas)
	if !ok {
		return f
	}
	digit := crop(canvas, box)
	width, height := digit.Cols, digit.Rows

	totalMass, topMass, leftMass, centerMass := 0.0, 0.0, 0.0, 0.0
	midY, midX := height/2, width/2
	centerStartX, centerEndX := width/4, width-width/4
	centerStartY, centerEndY := height/4, height-height/4

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := float64(digit.At(y, x))
			totalMass += v
			if y < midY {
				topMass += v
			}
			if x < midX {
				leftMass += v
			}
			if x >= centerStartX && x < centerEndX && y >= centerStartY && y < centerEndY {
				centerMass += v
			}
		}
	}

	if totalMass > 0 {
		f.topHeavy = topMass / totalMass
		f.leftHeavy = leftMass / totalMass
		centerArea := float64((centerEndX - centerStartX) * (centerEndY - centerStartY))
		if centerArea > 0 {
			f.centerDensity = math.Min(centerMass/(totalMass*centerArea/float64(width*height)), 1)
		}
	}

	f.horizontalSymmetry = mirrorSimilarity(digit, true)
	f.verticalSymmetry = mirrorSimilarity(digit, false)

	f.aspectRatio = float64(width) / float64(height)
	if f.aspectRatio > 1 {
		f.aspectRatio = 1 / f.aspectRatio
	}

	f.holeCount = math.Min(float64(countHoles(digit))/2.0, 1)
	f.crossings = strokeCrossings(digit)

	return f
}

func strokeBounds(f *Field) (image.Rectangle, bool) {
	mask := NewField(f.Rows, f.Cols)
	for i, v := range f.Data {
		if v > 0.1 {
			mask.Data[i] = 1
		}
	}
	return inkBounds(mask)
}

// mirrorSimilarity compares the field with its left-right (horizontal) or
// top-bottom mirror image. 1 means perfectly symmetric.
func mirrorSimilarity(f *Field, horizontal bool) float64 {
	totalDiff := 0.0
	count := 0
	if horizontal {
		for y := 0; y < f.Rows; y++ {
			for x := 0; x < f.Cols/2; x++ {
				totalDiff += math.Abs(float64(f.At(y, x) - f.At(y, f.Cols-1-x)))
				count++
			}
		}
	} else {
		for y := 0; y < f.Rows/2; y++ {
			for x := 0; x < f.Cols; x++ {
				totalDiff += math.Abs(float64(f.At(y, x) - f.At(f.Rows-1-y, x)))
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return 1.0 - totalDiff/float64(count)
}

// countHoles counts background regions that do not touch the border.
func countHoles(f *Field) int {
	width, height := f.Cols, f.Rows
	visited := make([]bool, width*height)
	isBackground := func(x, y int) bool {
		return f.Data[y*width+x] <= strokeLevel
	}

	type point struct{ x, y int }
	fill := func(sx, sy int) {
		stack := []point{{sx, sy}}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if p.x < 0 || p.x >= width || p.y < 0 || p.y >= height {
				continue
			}
			i := p.y*width + p.x
			if visited[i] || !isBackground(p.x, p.y) {
				continue
			}
			visited[i] = true
			stack = append(stack, point{p.x + 1, p.y}, point{p.x - 1, p.y}, point{p.x, p.y + 1}, point{p.x, p.y - 1})
		}
	}

	for x := 0; x < width; x++ {
		fill(x, 0)
		fill(x, height-1)
	}
	for y := 0; y < height; y++ {
		fill(0, y)
		fill(width-1, y)
	}

	holes := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !visited[y*width+x] && isBackground(x, y) {
				holes++
				fill(x, y)
			}
		}
	}
	return holes
}

// strokeCrossings averages stroke edges met along horizontal scan lines
// through the middle half. Two edges (one stroke) map to 0.2.
func strokeCrossings(f *Field) float64 {
	step := max(f.Rows/8, 1)
	total, lines := 0, 0
	for y := f.Rows / 4; y < 3*f.Rows/4; y += step {
		crossings := 0
		inStroke := false
		for x := 0; x < f.Cols; x++ {
			stroke := f.At(y, x) > strokeLevel
			if stroke != inStroke {
				crossings++
				inStroke = stroke
			}
		}
		if inStroke {
			crossings++
		}
		total += crossings
		lines++
	}
	if lines == 0 {
		return 0
	}
	return math.Min(float64(total)/float64(lines)/10.0, 1.0)
}
