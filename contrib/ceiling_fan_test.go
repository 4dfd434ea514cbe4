package contrib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-tuya/message"
)

func TestCeilingFanToWire(t *testing.T) {
	fan := NewCeilingFan()
	wire, err := fan.ToWire(message.Values{
		"power":     true,
		"speed":     "L3",
		"direction": "reverse",
		"light":     false,
		"mode":      "temperature",
	})
	require.NoError(t, err)
	assert.True(t, wire.Equal(message.Values{
		"1":   true,
		"3":   "3",
		"4":   "reverse",
		"9":   false,
		"102": "temprature", // device-side typo
	}), "got %v", wire)
}

func TestCeilingFanFromWire(t *testing.T) {
	fan := NewCeilingFan()
	decoded, err := fan.FromWire(message.Values{
		"1":   false,
		"3":   "6",
		"4":   "forward",
		"9":   true,
		"102": "temprature",
	})
	require.NoError(t, err)
	assert.True(t, decoded.Equal(message.Values{
		"power":     false,
		"speed":     "L6",
		"direction": "forward",
		"light":     true,
		"mode":      "temperature",
	}), "got %v", decoded)
}

func TestCeilingFanUnknownValues(t *testing.T) {
	fan := NewCeilingFan()
	_, err := fan.FromWire(message.Values{"3": "7"})
	assert.Error(t, err)
	_, err = fan.ToWire(message.Values{"speed": "L7"})
	assert.Error(t, err)
}

func TestCeilingFanConstraints(t *testing.T) {
	constraints := NewCeilingFan().Constraints()
	// The device manages the speed itself in temperature mode.
	filtered := constraints.Filter(
		message.Values{"3": "2", "9": true},
		message.Values{"102": "temprature"},
	)
	assert.True(t, filtered.Equal(message.Values{"9": true}), "got %v", filtered)
}
