package contrib

import (
	"math"
	"time"

	"local-tuya/device"
	"local-tuya/message"
)

// AirtonACModel is the registry name of the Airton air conditioner model.
const AirtonACModel = "Airton AC"

// Airton AC datapoints.
const (
	acPower          = "1"
	acSetPoint       = "2"
	acTemperature    = "3"
	acMode           = "4"
	acFan            = "5"
	acEco            = "8"
	acLight          = "13"
	acSwing          = "15"
	acSwingDirection = "107"
	acSleep          = "109"
	acHealth         = "110"
)

var acModes = options{
	{"auto", "auto"},
	{"cool", "cold"},
	{"heat", "heat"},
	{"dry", "wet"},
	{"vent", "fan"},
}

var acFanSpeeds = options{
	{"auto", "auto"},
	{"quiet", "mute"},
	{"L1", "low"},
	{"L2", "low_mid"},
	{"L3", "mid"},
	{"L4", "mid_high"},
	{"L5", "high"},
	{"turbo", "turbo"},
}

// AirtonAC models an Airton split air conditioner.
//
// The swing property pairs two datapoints: the swing switch and the swing
// direction, which is set to the swing datapoint number when oscillating
// up/down.
type AirtonAC struct {
	temperature device.ValueProcessor
}

func NewAirtonAC() *AirtonAC {
	return &AirtonAC{
		// Temperature can oscillate a lot as it is reported in 0.5 steps.
		temperature: device.Compose(
			device.MovingAverage(4),
			device.Debounce(30*time.Second),
			device.Round(1),
		),
	}
}

func (a *AirtonAC) Discovery() device.Discovery {
	return device.Discovery{
		Model: AirtonACModel,
		Components: []device.Component{
			device.Switch{ComponentMeta: device.ComponentMeta{
				Name: "power", Icon: "mdi:air-conditioner", Property: "power",
			}},
			device.Climate{
				ComponentMeta: device.ComponentMeta{
					Name: "set_point", Icon: "mdi:thermometer-lines", Property: "set_point",
				},
				Min: 16, Max: 31, Step: 1, Unit: "C",
			},
			device.Sensor{
				ComponentMeta: device.ComponentMeta{
					Name: "temperature", Icon: "mdi:thermometer", Property: "temperature",
				},
				Class: "temperature", Unit: "°C",
			},
			device.Select{
				ComponentMeta: device.ComponentMeta{
					Name: "mode", Icon: "mdi:format-list-bulleted", Property: "mode",
				},
				Options: acModes.names(),
			},
			device.Select{
				ComponentMeta: device.ComponentMeta{
					Name: "fan", Icon: "mdi:fan", Property: "fan",
				},
				Options: acFanSpeeds.names(),
			},
			device.Switch{ComponentMeta: device.ComponentMeta{
				Name: "eco", Icon: "mdi:sprout", Property: "eco",
			}},
			device.Switch{ComponentMeta: device.ComponentMeta{
				Name: "light", Icon: "mdi:lightbulb", Property: "light",
			}},
			device.Switch{ComponentMeta: device.ComponentMeta{
				Name: "swing", Icon: "mdi:arrow-oscillating", Property: "swing",
			}},
			device.Switch{ComponentMeta: device.ComponentMeta{
				Name: "sleep", Icon: "mdi:power-sleep", Property: "sleep",
			}},
			device.Switch{ComponentMeta: device.ComponentMeta{
				Name: "health", Icon: "mdi:air-purifier", Property: "health",
			}},
		},
	}
}

func (a *AirtonAC) Constraints() device.Constraints {
	return device.Constraints{
		{
			Trigger: acEco, TriggerValue: true,
			Forbids: []device.Forbidden{
				device.All(acSetPoint),
				device.Only(acFan, "turbo"),
				device.All(acSleep),
			},
		},
		{
			Trigger: acMode, TriggerValue: "auto",
			Forbids: []device.Forbidden{
				device.All(acSetPoint),
				device.Only(acFan, "turbo"),
				device.All(acEco),
				device.All(acSleep),
			},
		},
		{
			Trigger: acMode, TriggerValue: "fan",
			Forbids: []device.Forbidden{
				device.All(acSetPoint),
				device.All(acEco),
				device.All(acSleep),
			},
		},
		{
			Trigger: acMode, TriggerValue: "wet",
			Forbids: []device.Forbidden{
				device.All(acFan),
				device.All(acEco),
			},
		},
	}
}

func (a *AirtonAC) FromWire(values message.Values) (message.Values, error) {
	decoded := message.Values{}
	for key, value := range values {
		var (
			name string
			out  message.Value
			err  error
		)
		switch key {
		case acPower, acEco, acLight, acSleep, acHealth:
			name = acPropertyName(key)
			out, err = asBool(value)
		case acSetPoint:
			var n float64
			n, err = asFloat(value)
			name, out = "set_point", n/10
		case acTemperature:
			var n float64
			n, err = asFloat(value)
			name, out = "temperature", a.temperature(n/10)
		case acMode:
			var s string
			if s, err = asString(value); err == nil {
				out, err = acModes.decode(s)
			}
			name = "mode"
		case acFan:
			var s string
			if s, err = asString(value); err == nil {
				out, err = acFanSpeeds.decode(s)
			}
			name = "fan"
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		decoded[name] = out
	}
	// Swing is only meaningful with both datapoints present.
	if swing, ok := values[acSwing]; ok {
		if direction, ok := values[acSwingDirection]; ok {
			decoded["swing"] = message.Equal(swing, "un_down") &&
				message.Equal(direction, acSwing)
		}
	}
	return decoded, nil
}

func (a *AirtonAC) ToWire(payload message.Values) (message.Values, error) {
	encoded := message.Values{}
	for name, value := range payload {
		var (
			key string
			out message.Value
			err error
		)
		switch name {
		case "power", "eco", "light", "sleep", "health":
			key = acDataPoint(name)
			out, err = asBool(value)
		case "set_point":
			var n float64
			if n, err = asFloat(value); err == nil {
				out = int(math.Max(math.Min(math.Round(n), 31), 16)) * 10
			}
			key = acSetPoint
		case "mode":
			var s string
			if s, err = asString(value); err == nil {
				out, err = acModes.encode(s)
			}
			key = acMode
		case "fan":
			var s string
			if s, err = asString(value); err == nil {
				out, err = acFanSpeeds.encode(s)
			}
			key = acFan
		case "swing":
			var on bool
			if on, err = asBool(value); err == nil {
				if on {
					encoded[acSwing] = "un_down"
					encoded[acSwingDirection] = acSwing
				} else {
					encoded[acSwing] = "off"
					encoded[acSwingDirection] = "off"
				}
			}
			if err != nil {
				return nil, err
			}
			continue
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

func acPropertyName(key string) string {
	switch key {
	case acPower:
		return "power"
	case acEco:
		return "eco"
	case acLight:
		return "light"
	case acSleep:
		return "sleep"
	default:
		return "health"
	}
}

func acDataPoint(name string) string {
	switch name {
	case "power":
		return acPower
	case "eco":
		return acEco
	case "light":
		return acLight
	case "sleep":
		return acSleep
	default:
		return acHealth
	}
}
