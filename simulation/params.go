package simulation

import (
	"math"

	"github.com/pkg/errors"
)

// Params are the free-form parameters of a component, as decoded from a
// configuration file.
type Params map[string]any

// Has tells if key is set.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Int returns an integer parameter, or def if it is not set.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, errors.Errorf("parameter %s overflows int", key)
		}

		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errors.Errorf("parameter %s must be an integer", key)
		}

		return int(n), nil
	default:
		return 0, errors.Errorf("parameter %s must be an integer, got %T",
			key, v)
	}
}

// Uint64 returns a non-negative integer parameter, or def if it is not set.
func (p Params) Uint64(key string, def uint64) (uint64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}

	if n, ok := v.(uint64); ok {
		return n, nil
	}

	n, err := p.Int(key, 0)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, errors.Errorf("parameter %s cannot be negative", key)
	}

	return uint64(n), nil
}

// Float returns a numeric parameter, or def if it is not set.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, errors.Errorf("parameter %s must be a number, got %T", key, v)
	}
}

// String returns a string parameter, or def if it is not set.
func (p Params) String(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}

	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("parameter %s must be a string, got %T", key, v)
	}

	return s, nil
}

// List returns a list parameter, or nil if it is not set.
func (p Params) List(key string) ([]any, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}

	l, ok := v.([]any)
	if !ok {
		return nil, errors.Errorf("parameter %s must be a list, got %T", key, v)
	}

	return l, nil
}
