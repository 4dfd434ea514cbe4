package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  hostname: broker.local
  port: 1884
  username: user
  password: secret
  timeout: 2.5
devices:
  - name: living-room-ac
    model: Airton AC
    config:
      tuya:
        id: bf1234567890
        address: 192.168.1.40
        key: 9efe59a10acd6ccf
        heartbeat_interval: 10
        connection_backoff: [0, 1, 5]
      debounce_updates: 0.5
      retries: 3
      retry_backoff: [5, 10]
      enable_discovery: true
      included_components: [power, set_point]
debug: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "broker.local", cfg.MQTT.Hostname)
	assert.Equal(t, 1884, cfg.MQTT.Port)
	assert.Equal(t, "user", cfg.MQTT.Username)
	assert.Equal(t, 2500*time.Millisecond, cfg.MQTT.Timeout)
	assert.True(t, cfg.Debug)

	require.Len(t, cfg.Devices, 1)
	d := cfg.Devices[0]
	assert.Equal(t, "living-room-ac", d.Name)
	assert.Equal(t, "Airton AC", d.Model)
	assert.Equal(t, "bf1234567890", d.Config.Tuya.ID)
	assert.Equal(t, "192.168.1.40", d.Config.Tuya.Address)
	assert.Equal(t, []byte("9efe59a10acd6ccf"), d.Config.Tuya.Key)
	assert.Equal(t, 10*time.Second, d.Config.Tuya.HeartbeatInterval)
	assert.Equal(t, []time.Duration{0, time.Second, 5 * time.Second}, d.Config.Tuya.ConnectionBackoff)
	assert.Equal(t, 500*time.Millisecond, d.Config.DebounceUpdates)
	require.NotNil(t, d.Config.Retries)
	assert.Equal(t, 3, *d.Config.Retries)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, d.Config.RetryBackoff)
	assert.True(t, d.Config.EnableDiscovery)
	assert.Equal(t, []string{"power", "set_point"}, d.Config.IncludedComponents)
}

// An explicit `retries: 0` disables confirmation and must survive loading;
// only an absent key leaves the default to the device layer.
func TestLoadRetries(t *testing.T) {
	template := `
mqtt:
  hostname: broker
devices:
  - name: ac
    model: Airton AC
    config:
%s      tuya:
        id: bf1234567890
        address: 192.168.1.40
        key: 9efe59a10acd6ccf
`
	t.Run("explicit zero", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, fmt.Sprintf(template, "      retries: 0\n")))
		require.NoError(t, err)
		require.Len(t, cfg.Devices, 1)
		require.NotNil(t, cfg.Devices[0].Config.Retries)
		assert.Equal(t, 0, *cfg.Devices[0].Config.Retries)
	})
	t.Run("absent", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, fmt.Sprintf(template, "")))
		require.NoError(t, err)
		require.Len(t, cfg.Devices, 1)
		assert.Nil(t, cfg.Devices[0].Config.Retries)
	})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing broker",
			content: "devices: []\n",
		},
		{
			name: "unnamed device",
			content: `
mqtt:
  hostname: broker
devices:
  - model: Airton AC
`,
		},
		{
			name: "duplicate device name",
			content: `
mqtt:
  hostname: broker
devices:
  - name: ac
    model: Airton AC
  - name: ac
    model: Ceiling Fan
`,
		},
		{
			name:    "invalid yaml",
			content: "mqtt: [",
		},
		{
			name: "duration is not a number",
			content: `
mqtt:
  hostname: broker
  timeout: fast
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
