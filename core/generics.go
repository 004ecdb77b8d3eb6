package core

import (
	"reflect"
	"strconv"
	"time"
)

// Parsable lists the types InputAs can produce.
//
// Go methods cannot take their own type parameters, so typed input lookup
// is a package-level function rather than a Context method.
type Parsable interface {
	~string | ~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

var durationType = reflect.TypeOf(time.Duration(0))

// InputAs looks up an input and parses it as T.
//
// It reports false when the input is absent or when the whole value does
// not parse as T. Integers are base 10 and must fit T; surrounding spaces
// are not accepted. time.Duration uses time.ParseDuration.
//
// Example:
//
//	page, ok := core.InputAs[int](c, "page")
//	if !ok {
//	    page = 1
//	}
func InputAs[T Parsable](c *Context, name string) (T, bool) {
	var zero T
	s, ok := c.Input(name)
	if !ok {
		return zero, false
	}
	return Parse[T](s)
}

// InputOr is InputAs with a fallback for absent or malformed values.
func InputOr[T Parsable](c *Context, name string, fallback T) T {
	if v, ok := InputAs[T](c, name); ok {
		return v
	}
	return fallback
}

// Parse converts s to T using the rules of InputAs.
func Parse[T Parsable](s string) (T, bool) {
	var out T
	rv := reflect.ValueOf(&out).Elem()

	if rv.Type() == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return out, false
		}
		rv.SetInt(int64(d))
		return out, true
	}

	switch rv.Kind() {
	case reflect.String:
		rv.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return out, false
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, rv.Type().Bits())
		if err != nil {
			return out, false
		}
		rv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, rv.Type().Bits())
		if err != nil {
			return out, false
		}
		rv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, rv.Type().Bits())
		if err != nil {
			return out, false
		}
		rv.SetFloat(f)
	default:
		return out, false
	}
	return out, true
}
