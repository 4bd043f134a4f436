package readiness

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrConfiguration reports a series configuration that cannot be evaluated,
// such as zero series or duplicate names. It is fatal at startup.
var ErrConfiguration = errors.New("invalid series configuration")

// ParseError reports a stored value that is not a valid timestamp.
type ParseError struct {
	Series string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("series %q: parse timestamp %q: %v", e.Series, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errNotIntegral = errors.New("not an integral value")

// ParseTimestamp interprets a stored member as a bucket start timestamp.
// Integers are accepted directly; floats are accepted when they carry no
// fractional part (e.g. "1.4142e9").
func ParseTimestamp(series, raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Series: series, Value: raw, Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, &ParseError{Series: series, Value: raw, Err: errNotIntegral}
	}
	return int64(f), nil
}

// ValidateSeries checks that at least one series is configured and that
// names and keys are non-empty and unique.
func ValidateSeries(series []Series) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: no series configured", ErrConfiguration)
	}

	names := make(map[string]struct{}, len(series))
	keys := make(map[string]struct{}, len(series))
	for i, s := range series {
		if s.Name == "" || s.Key == "" {
			return fmt.Errorf("%w: series %d needs both a name and a key", ErrConfiguration, i)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("%w: duplicate series name %q", ErrConfiguration, s.Name)
		}
		if _, dup := keys[s.Key]; dup {
			return fmt.Errorf("%w: duplicate series key %q", ErrConfiguration, s.Key)
		}
		names[s.Name] = struct{}{}
		keys[s.Key] = struct{}{}
	}
	return nil
}
