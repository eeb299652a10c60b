package digitnorm

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sunshineplan/imgconv"
)

// PreviewScale is the nearest-neighbour enlargement used for canvas previews.
const PreviewScale = 10

var pngFormat = &imgconv.FormatOption{Format: imgconv.PNG}

// Artifacts lists the files written by SaveArtifacts.
type Artifacts struct {
	Original string `json:"original"`
	Canvas   string `json:"canvas"`
	Preview  string `json:"preview"`
}

// SaveArtifacts writes the grayscale original, the 28x28 canvas and an
// enlarged preview of the canvas as PNG files named after base inside dir.
func SaveArtifacts(dir, base string, res *Result) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	a := &Artifacts{
		Original: filepath.Join(dir, base+"_original.png"),
		Canvas:   filepath.Join(dir, base+"_canvas.png"),
		Preview:  filepath.Join(dir, base+"_preview.png"),
	}

	if err := imgconv.Save(a.Original, res.Original.Gray(1), pngFormat); err != nil {
		return nil, fmt.Errorf("save original: %w", err)
	}
	if err := imgconv.Save(a.Canvas, res.Canvas.Gray(maxSampleValue), pngFormat); err != nil {
		return nil, fmt.Errorf("save canvas: %w", err)
	}
	if err := imgconv.Save(a.Preview, Preview(res.Canvas), pngFormat); err != nil {
		return nil, fmt.Errorf("save preview: %w", err)
	}
	return a, nil
}

// WriteCanvasPNG encodes the canvas as an 8-bit PNG.
func WriteCanvasPNG(w io.Writer, canvas *Field) error {
	return imgconv.Write(w, canvas.Gray(maxSampleValue), pngFormat)
}

// Preview enlarges a [0,1] canvas by PreviewScale without smoothing.
func Preview(canvas *Field) image.Image {
	return imaging.Resize(canvas.Gray(maxSampleValue), canvas.Cols*PreviewScale, canvas.Rows*PreviewScale, imaging.NearestNeighbor)
}

// RenderASCII draws a [0,1] field with one character per sample.
func RenderASCII(f *Field) string {
	const ramp = " .:-=+*#%@"
	var sb strings.Builder
	sb.Grow((f.Cols + 1) * f.Rows)
	for y := 0; y < f.Rows; y++ {
		for x := 0; x < f.Cols; x++ {
			v := f.At(y, x)
			i := int(v * float32(len(ramp)-1))
			i = min(max(i, 0), len(ramp)-1)
			sb.WriteByte(ramp[i])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
