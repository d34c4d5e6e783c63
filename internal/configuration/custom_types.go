package configuration

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/markusressel/cool2go/internal/curves"
	"github.com/mitchellh/mapstructure"
)

// Optional is a generic container for optional configuration values.
type Optional[T any] struct {
	// Value holds the actual as unmarshalled.
	Value T
	// Present indicates if the value was present in the configuration.
	Present bool
	// RuntimeOverride indicates if the value was overridden at runtime.
	RuntimeOverride bool
}

func (o *Optional[T]) Get() T {
	return o.Value
}

// SetOverride sets the value and marks it as overridden at runtime.
func (o *Optional[T]) SetOverride(value T) {
	o.RuntimeOverride = true
	o.Value = value
}

// DefaultTrueBool is a boolean type that defaults to true if not present and not overridden.
type DefaultTrueBool struct {
	Optional[bool]
}

func (b *DefaultTrueBool) Get() bool {
	if !b.Present && !b.RuntimeOverride {
		return true
	}
	return b.Value
}

// CurvePointHookFunc returns a mapstructure decode hook that handles:
//  1. Points written as "temp:duty" strings.
//  2. A whole curve written as a map of temp -> duty.
//
// Points written as {temp, duty} maps are left to the default decoder.
func CurvePointHookFunc() mapstructure.DecodeHookFuncType {
	pointType := reflect.TypeOf(curves.Point{})
	pointsType := reflect.TypeOf([]curves.Point{})

	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t == pointType {
			if text, ok := data.(string); ok {
				return curves.ParsePoint(text)
			}
			return data, nil
		}

		if t == pointsType && f.Kind() == reflect.Map {
			steps, err := parseIntMap(data)
			if err != nil {
				return nil, fmt.Errorf("points: %w", err)
			}
			temps := make([]int, 0, len(steps))
			for temp := range steps {
				temps = append(temps, temp)
			}
			sort.Ints(temps)

			points := make([]curves.Point, 0, len(temps))
			for _, temp := range temps {
				points = append(points, curves.Point{Temp: temp, Duty: steps[temp]})
			}
			return points, nil
		}

		return data, nil
	}
}

// parseIntMap converts various map types (from YAML decoding) into map[int]int.
func parseIntMap(data interface{}) (map[int]int, error) {
	result := make(map[int]int)
	switch v := data.(type) {
	case map[interface{}]interface{}:
		for k, val := range v {
			key, err := anyToInt(k)
			if err != nil {
				return nil, fmt.Errorf("invalid key %v: %w", k, err)
			}
			value, err := anyToInt(val)
			if err != nil {
				return nil, fmt.Errorf("invalid value %v: %w", val, err)
			}
			result[key] = value
		}
	case map[string]interface{}:
		for k, val := range v {
			key, err := anyToInt(k)
			if err != nil {
				return nil, fmt.Errorf("invalid key %q: %w", k, err)
			}
			value, err := anyToInt(val)
			if err != nil {
				return nil, fmt.Errorf("invalid value %v: %w", val, err)
			}
			result[key] = value
		}
	case map[int]int:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported point map type %T", data)
	}
	return result, nil
}

// anyToInt converts numeric and string values to int.
func anyToInt(v interface{}) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as int: %w", val, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

// DefaultTrueBoolHookFunc returns a mapstructure decode hook function for DefaultTrueBool.
func DefaultTrueBoolHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{}) (interface{}, error) {

		// Only target our specific named type
		if t != reflect.TypeOf(DefaultTrueBool{}) {
			return data, nil
		}

		var val bool
		switch v := data.(type) {
		case bool:
			val = v
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return data, nil
			}
			val = parsed
		default:
			return data, nil
		}

		return DefaultTrueBool{
			Optional: Optional[bool]{
				Value:   val,
				Present: true,
			},
		}, nil
	}
}
