package digitnorm

import (
	"fmt"
	"strings"
)

// InvertMode selects how the normalizer handles polarity.
type InvertMode int

const (
	// InvertAuto flips the image when the boosted mean is above 127,
	// so dark ink on light paper ends up bright on dark.
	InvertAuto InvertMode = iota
	// InvertAlways flips unconditionally.
	InvertAlways
	// InvertNever keeps the input polarity. Use it for sources that are
	// already bright ink on a dark background.
	InvertNever
)

func (m InvertMode) String() string {
	switch m {
	case InvertAuto:
		return "auto"
	case InvertAlways:
		return "always"
	case InvertNever:
		return "never"
	default:
		return fmt.Sprintf("InvertMode(%d)", int(m))
	}
}

// ParseInvertMode accepts auto, always and never, plus true/false as
// aliases for always/never.
func ParseInvertMode(s string) (InvertMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return InvertAuto, nil
	case "always", "true":
		return InvertAlways, nil
	case "never", "false":
		return InvertNever, nil
	default:
		return InvertAuto, fmt.Errorf("invalid invert mode %q: want auto, always or never", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m InvertMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *InvertMode) UnmarshalText(text []byte) error {
	mode, err := ParseInvertMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Logger receives debug output from the normalizer.
type Logger interface {
	Debug(msg string, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
