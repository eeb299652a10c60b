package digitnorm

import (
	"errors"
	"fmt"
)

// ErrNoDigitFound is returned when binarization leaves no ink to crop.
// Callers should present it as "draw more clearly", not as a failure.
var ErrNoDigitFound = errors.New("no digit found")

// DecodeError reports input that could not be interpreted as a raster.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("decode image: %v", e.Err)
	}
	return fmt.Sprintf("decode image %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err carries a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodeError(source string, err error) error {
	return &DecodeError{Source: source, Err: err}
}
