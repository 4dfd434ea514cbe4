package contrib

import (
	"local-tuya/device"
	"local-tuya/message"
)

// CeilingFanModel is the registry name of the ceiling fan model.
const CeilingFanModel = "Ceiling Fan"

// Ceiling fan datapoints.
const (
	fanPower     = "1"
	fanSpeed     = "3"
	fanDirection = "4"
	fanLight     = "9"
	fanMode      = "102"
)

var fanSpeeds = options{
	{"L1", "1"},
	{"L2", "2"},
	{"L3", "3"},
	{"L4", "4"},
	{"L5", "5"},
	{"L6", "6"},
}

var fanDirections = options{
	{"forward", "forward"},
	{"reverse", "reverse"},
}

var fanModes = options{
	{"normal", "normal"},
	{"sleep", "sleep"},
	{"nature", "nature"},
	{"temperature", "temprature"}, // Typo on device.
}

// CeilingFan models a DC ceiling fan with a light.
type CeilingFan struct{}

func NewCeilingFan() *CeilingFan { return &CeilingFan{} }

func (f *CeilingFan) Discovery() device.Discovery {
	return device.Discovery{
		Model: CeilingFanModel,
		Components: []device.Component{
			device.Switch{ComponentMeta: device.ComponentMeta{
				Name: "power", Icon: "mdi:ceiling-fan", Property: "power",
			}},
			device.Select{
				ComponentMeta: device.ComponentMeta{
					Name: "speed", Icon: "mdi:speedometer", Property: "speed",
				},
				Options: fanSpeeds.names(),
			},
			device.Select{
				ComponentMeta: device.ComponentMeta{
					Name: "direction", Icon: "mdi:directions-fork", Property: "direction",
				},
				Options: fanDirections.names(),
			},
			device.Switch{ComponentMeta: device.ComponentMeta{
				Name: "light", Icon: "mdi:lightbulb", Property: "light",
			}},
			device.Select{
				ComponentMeta: device.ComponentMeta{
					Name: "mode", Icon: "mdi:format-list-bulleted", Property: "mode",
				},
				Options: fanModes.names(),
			},
		},
	}
}

func (f *CeilingFan) Constraints() device.Constraints {
	// Speed is device-managed in temperature mode.
	return device.Constraints{
		{
			Trigger: fanMode, TriggerValue: "temprature",
			Forbids: []device.Forbidden{device.All(fanSpeed)},
		},
	}
}

func (f *CeilingFan) FromWire(values message.Values) (message.Values, error) {
	decoded := message.Values{}
	for key, value := range values {
		var (
			name string
			out  message.Value
			err  error
		)
		switch key {
		case fanPower:
			name = "power"
			out, err = asBool(value)
		case fanLight:
			name = "light"
			out, err = asBool(value)
		case fanSpeed:
			var s string
			if s, err = asString(value); err == nil {
				out, err = fanSpeeds.decode(s)
			}
			name = "speed"
		case fanDirection:
			var s string
			if s, err = asString(value); err == nil {
				out, err = fanDirections.decode(s)
			}
			name = "direction"
		case fanMode:
			var s string
			if s, err = asString(value); err == nil {
				out, err = fanModes.decode(s)
			}
			name = "mode"
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		decoded[name] = out
	}
	return decoded, nil
}

func (f *CeilingFan) ToWire(payload message.Values) (message.Values, error) {
	encoded := message.Values{}
	for name, value := range payload {
		var (
			key string
			out message.Value
			err error
		)
		switch name {
		case "power":
			key = fanPower
			out, err = asBool(value)
		case "light":
			key = fanLight
			out, err = asBool(value)
		case "speed":
			var s string
			if s, err = asString(value); err == nil {
				out, err = fanSpeeds.encode(s)
			}
			key = fanSpeed
		case "direction":
			var s string
			if s, err = asString(value); err == nil {
				out, err = fanDirections.encode(s)
			}
			key = fanDirection
		case "mode":
			var s string
			if s, err = asString(value); err == nil {
				out, err = fanModes.encode(s)
			}
			key = fanMode
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		encoded[key] = out
	}
	return encoded, nil
}
