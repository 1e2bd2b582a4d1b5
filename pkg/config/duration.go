package config

import (
	"fmt"
	"reflect"
	"time"
)

// Duration is a time.Duration read and written as "1m30s" in yaml, and usable
// as a flag.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) Type() string {
	return "duration"
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

var durationType = reflect.TypeOf(Duration(0))

// DurationHook decodes strings and numbers of nanoseconds into Duration for
// viper.Unmarshal.
func DurationHook() func(from reflect.Type, to reflect.Type, data any) (any, error) {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			var d Duration
			if err := d.Set(v); err != nil {
				return nil, fmt.Errorf("invalid duration %q: %w", v, err)
			}
			return d, nil
		case int:
			return Duration(v), nil
		case int64:
			return Duration(v), nil
		case float64:
			return Duration(int64(v)), nil
		}
		return data, nil
	}
}
