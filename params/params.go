// Package params provides the flat parameter dictionary components are
// configured with. Keys and values are strings; typed accessors convert
// on read. A missing required key is a setup failure, not a panic.
package params

import (
	"fmt"
	"sort"
	"strconv"
)

// Params maps parameter names to raw string values.
type Params map[string]string

// A MissingKeyError reports a required parameter that was not supplied.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("required parameter %q is missing", e.Key)
}

// Has tells if the key is present.
func (p Params) Has(key string) bool {
	_, found := p[key]
	return found
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// String returns the raw value of key, or def if it is absent.
func (p Params) String(key, def string) string {
	v, found := p[key]
	if !found {
		return def
	}

	return v
}

// RequiredString returns the raw value of key, or a MissingKeyError.
func (p Params) RequiredString(key string) (string, error) {
	v, found := p[key]
	if !found {
		return "", &MissingKeyError{Key: key}
	}

	return v, nil
}

// Int64 returns key parsed as a signed integer, or def if absent.
func (p Params) Int64(key string, def int64) (int64, error) {
	v, found := p[key]
	if !found {
		return def, nil
	}

	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}

	return parsed, nil
}

// RequiredInt64 returns key parsed as a signed integer, or an error if
// it is absent or malformed.
func (p Params) RequiredInt64(key string) (int64, error) {
	v, err := p.RequiredString(key)
	if err != nil {
		return 0, err
	}

	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}

	return parsed, nil
}

// Uint64 returns key parsed as an unsigned integer, or def if absent.
func (p Params) Uint64(key string, def uint64) (uint64, error) {
	v, found := p[key]
	if !found {
		return def, nil
	}

	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}

	return parsed, nil
}

// RequiredUint64 returns key parsed as an unsigned integer, or an error
// if it is absent or malformed.
func (p Params) RequiredUint64(key string) (uint64, error) {
	v, err := p.RequiredString(key)
	if err != nil {
		return 0, err
	}

	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}

	return parsed, nil
}

// Bool returns key parsed as a boolean, or def if absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, found := p[key]
	if !found {
		return def, nil
	}

	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parameter %q: %w", key, err)
	}

	return parsed, nil
}

// Float64 returns key parsed as a float, or def if absent.
func (p Params) Float64(key string, def float64) (float64, error) {
	v, found := p[key]
	if !found {
		return def, nil
	}

	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}

	return parsed, nil
}

// Clone returns an independent copy of the dictionary.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}

	return c
}
