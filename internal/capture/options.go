package capture

import (
	"encoding/json"
	"math"

	"github.com/roach88/cdclab/internal/ir"
)

// Options is a flat engine configuration mapping. Unknown keys are ignored.
type Options map[string]any

// Int reads an integer option. Whole floats are accepted because YAML, JSON
// and CUE decoders may produce them.
func (o Options) Int(key string) (int64, bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false, nil
	}

	switch n := v.(type) {
	case int:
		return int64(n), true, nil
	case int32:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case uint32:
		return int64(n), true, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, true, ir.NewInvalidOptionError(key, "value %d out of range", n)
		}
		return int64(n), true, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, true, ir.NewInvalidOptionError(key, "must be an integer, got %v", n)
		}
		return int64(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, true, ir.NewInvalidOptionError(key, "must be an integer, got %s", n)
		}
		return i, true, nil
	default:
		return 0, true, ir.NewInvalidOptionError(key, "must be an integer, got %T", v)
	}
}

// RequiredInt reads an integer option that must be present and at least min.
func (o Options) RequiredInt(key string, min int64) (int64, error) {
	n, ok, err := o.Int(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ir.NewMissingOptionError(key)
	}
	if n < min {
		return 0, ir.NewInvalidOptionError(key, "must be >= %d, got %d", min, n)
	}
	if n > ir.MaxTimeMs {
		return 0, ir.NewInvalidOptionError(key, "must be <= %d, got %d", ir.MaxTimeMs, n)
	}
	return n, nil
}

// IntDefault reads an optional integer option that must be at least min.
func (o Options) IntDefault(key string, def, min int64) (int64, error) {
	n, ok, err := o.Int(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	if n < min {
		return 0, ir.NewInvalidOptionError(key, "must be >= %d, got %d", min, n)
	}
	if n > ir.MaxTimeMs {
		return 0, ir.NewInvalidOptionError(key, "must be <= %d, got %d", ir.MaxTimeMs, n)
	}
	return n, nil
}

// Bool reads an optional boolean option.
func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, ir.NewInvalidOptionError(key, "must be a boolean, got %T", v)
	}
	return b, nil
}

// String reads an optional non-empty string option.
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", ir.NewInvalidOptionError(key, "must be a string, got %T", v)
	}
	if s == "" {
		return "", ir.NewInvalidOptionError(key, "must not be empty")
	}
	return s, nil
}
