// Package contrib holds ready-made device models.
package contrib

import (
	"github.com/pkg/errors"

	"local-tuya/device"
	"local-tuya/message"
)

// Model returns a fresh device model registered under the given name.
// Models carry per-device state (value processors) and must not be shared.
func Model(name string) (device.Model, error) {
	switch name {
	case AirtonACModel:
		return NewAirtonAC(), nil
	case CeilingFanModel:
		return NewCeilingFan(), nil
	}
	return nil, errors.Errorf("unknown device model %q", name)
}

// option pairs an external name with the value the device understands.
type option struct {
	name string
	wire string
}

// options is the ordered option set of a select component.
type options []option

func (o options) names() []string {
	names := make([]string, len(o))
	for i, opt := range o {
		names[i] = opt.name
	}
	return names
}

func (o options) encode(name string) (string, error) {
	for _, opt := range o {
		if opt.name == name {
			return opt.wire, nil
		}
	}
	return "", errors.Errorf("unknown option %q", name)
}

func (o options) decode(wire string) (string, error) {
	for _, opt := range o {
		if opt.wire == wire {
			return opt.name, nil
		}
	}
	return "", errors.Errorf("unknown device value %q", wire)
}

func asBool(v message.Value) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("expected a boolean, got %v (%T)", v, v)
	}
	return b, nil
}

func asString(v message.Value) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("expected a string, got %v (%T)", v, v)
	}
	return s, nil
}

func asFloat(v message.Value) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, errors.Errorf("expected a number, got %v (%T)", v, v)
}
