package digitnorm

import (
	"fmt"
	"image"
	"os"

	"github.com/sunshineplan/imgconv"
)

// WithStagedImage writes img to a temporary PNG, calls fn with its path and
// removes the file afterwards, whether fn succeeds or not.
func WithStagedImage(img image.Image, fn func(path string) error) error {
	tmp, err := os.CreateTemp("", "digitnorm_*.png")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	werr := imgconv.Write(tmp, img, &imgconv.FormatOption{Format: imgconv.PNG})
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("stage image: %w", werr)
	}

	return fn(path)
}

// NormalizeStaged normalizes an in-memory image by way of a temporary file,
// for hosts that hand images around by path.
func (n *Normalizer) NormalizeStaged(img image.Image) (*Result, error) {
	var res *Result
	err := WithStagedImage(img, func(path string) error {
		var err error
		res, err = n.NormalizeFile(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
