package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRetriesDefaults(t *testing.T) {
	tests := []struct {
		name     string
		retries  *int
		expected int
	}{
		{name: "unset means five", retries: nil, expected: 5},
		{name: "explicit zero disables", retries: intPtr(0), expected: 0},
		{name: "explicit value kept", retries: intPtr(3), expected: 3},
		{name: "negative clamped to zero", retries: intPtr(-1), expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Retries: tt.retries}.WithDefaults()
			require.NotNil(t, cfg.Retries)
			assert.Equal(t, tt.expected, *cfg.Retries)
		})
	}
}

func intPtr(i int) *int { return &i }
