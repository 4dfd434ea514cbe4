// Package config loads the driver configuration from a YAML file.
// Durations are expressed in seconds and may be fractional.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"local-tuya/device"
	"local-tuya/mqtt"
	"local-tuya/tuya"
)

// Config is the full driver configuration.
type Config struct {
	MQTT    mqtt.Config
	Devices []DeviceConfig
	Debug   bool
}

// DeviceConfig binds a named device to its model and connection settings.
type DeviceConfig struct {
	Name   string
	Model  string
	Config device.Config
}

// Load reads and parses the configuration file. Defaults are filled in by
// the packages owning each section.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config file")
	}
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, errors.Wrap(err, "parsing config file")
	}
	cfg, err := file.convert()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// seconds decodes a YAML number of seconds into a duration.
type seconds time.Duration

func (s *seconds) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err != nil {
		return errors.Wrap(err, "durations are numbers of seconds")
	}
	*s = seconds(time.Duration(f * float64(time.Second)))
	return nil
}

func durations(in []seconds) []time.Duration {
	if in == nil {
		return nil
	}
	out := make([]time.Duration, len(in))
	for i, s := range in {
		out[i] = time.Duration(s)
	}
	return out
}

type configFile struct {
	MQTT    mqttFile `yaml:"mqtt"`
	Devices []struct {
		Name   string     `yaml:"name"`
		Model  string     `yaml:"model"`
		Config deviceFile `yaml:"config"`
	} `yaml:"devices"`
	Debug bool `yaml:"debug"`
}

type mqttFile struct {
	Hostname        string  `yaml:"hostname"`
	Port            int     `yaml:"port"`
	Username        string  `yaml:"username"`
	Password        string  `yaml:"password"`
	DiscoveryPrefix string  `yaml:"discovery_prefix"`
	DriverPrefix    string  `yaml:"driver_prefix"`
	Timeout         seconds `yaml:"timeout"`
	KeepAlive       seconds `yaml:"keep_alive"`
	CommandRate     float64 `yaml:"command_rate"`
	CommandBurst    int     `yaml:"command_burst"`
}

type deviceFile struct {
	Tuya struct {
		ID                   string    `yaml:"id"`
		Address              string    `yaml:"address"`
		Port                 int       `yaml:"port"`
		Key                  string    `yaml:"key"`
		Version              string    `yaml:"version"`
		ConnectionBackoff    []seconds `yaml:"connection_backoff"`
		Timeout              seconds   `yaml:"timeout"`
		HeartbeatInterval    seconds   `yaml:"heartbeat_interval"`
		StateRefreshInterval seconds   `yaml:"state_refresh_interval"`
	} `yaml:"tuya"`
	DebounceUpdates    seconds   `yaml:"debounce_updates"`
	Retries            *int      `yaml:"retries"`
	RetryBackoff       []seconds `yaml:"retry_backoff"`
	EnableDiscovery    bool      `yaml:"enable_discovery"`
	IncludedComponents []string  `yaml:"included_components"`
}

func (f configFile) convert() (Config, error) {
	cfg := Config{
		MQTT: mqtt.Config{
			Hostname:        f.MQTT.Hostname,
			Port:            f.MQTT.Port,
			Username:        f.MQTT.Username,
			Password:        f.MQTT.Password,
			DiscoveryPrefix: f.MQTT.DiscoveryPrefix,
			DriverPrefix:    f.MQTT.DriverPrefix,
			Timeout:         time.Duration(f.MQTT.Timeout),
			KeepAlive:       time.Duration(f.MQTT.KeepAlive),
			CommandRate:     f.MQTT.CommandRate,
			CommandBurst:    f.MQTT.CommandBurst,
		},
		Debug: f.Debug,
	}
	if f.MQTT.Hostname == "" {
		return Config{}, errors.New("mqtt.hostname is required")
	}
	seen := make(map[string]bool, len(f.Devices))
	for _, d := range f.Devices {
		if d.Name == "" {
			return Config{}, errors.New("devices require a name")
		}
		if seen[d.Name] {
			return Config{}, errors.Errorf("duplicate device name %q", d.Name)
		}
		seen[d.Name] = true
		cfg.Devices = append(cfg.Devices, DeviceConfig{
			Name:  d.Name,
			Model: d.Model,
			Config: device.Config{
				Tuya: tuya.Config{
					ID:                   d.Config.Tuya.ID,
					Address:              d.Config.Tuya.Address,
					Port:                 d.Config.Tuya.Port,
					Key:                  []byte(d.Config.Tuya.Key),
					Version:              d.Config.Tuya.Version,
					ConnectionBackoff:    durations(d.Config.Tuya.ConnectionBackoff),
					Timeout:              time.Duration(d.Config.Tuya.Timeout),
					HeartbeatInterval:    time.Duration(d.Config.Tuya.HeartbeatInterval),
					StateRefreshInterval: time.Duration(d.Config.Tuya.StateRefreshInterval),
				},
				DebounceUpdates:    time.Duration(d.Config.DebounceUpdates),
				Retries:            d.Config.Retries,
				RetryBackoff:       durations(d.Config.RetryBackoff),
				EnableDiscovery:    d.Config.EnableDiscovery,
				IncludedComponents: d.Config.IncludedComponents,
			},
		})
	}
	return cfg, nil
}
