package tuya

import (
	"time"

	"github.com/pkg/errors"

	"local-tuya/codec"
)

// Config holds the per-device connection settings.
type Config struct {
	// ID is the Tuya device id, used in MQTT topics.
	ID string
	// Address is the device IP or hostname on the local network.
	Address string
	Port    int
	// Key is the 16-byte local encryption key. It is treated as opaque and
	// never logged.
	Key []byte
	// Version of the Tuya protocol; only 3.3 is supported.
	Version string

	// ConnectionBackoff is the wait sequence between connection attempts.
	ConnectionBackoff []time.Duration
	// Timeout bounds each connection attempt and each wait for a response.
	Timeout time.Duration
	// HeartbeatInterval is the period of the liveness command.
	HeartbeatInterval time.Duration
	// StateRefreshInterval is the period of full state refreshes. State is
	// maintained via status pushes, so a low value is not required.
	StateRefreshInterval time.Duration
}

// WithDefaults returns the config with unset options filled in.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 6668
	}
	if c.Version == "" {
		c.Version = codec.Version
	}
	if len(c.ConnectionBackoff) == 0 {
		c.ConnectionBackoff = []time.Duration{
			0,
			time.Second,
			5 * time.Second,
			10 * time.Second,
			30 * time.Second,
			time.Minute,
			5 * time.Minute,
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.StateRefreshInterval == 0 {
		c.StateRefreshInterval = time.Hour
	}
	return c
}

// Validate checks the options that cannot be defaulted.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.New("device id is required")
	}
	if c.Address == "" {
		return errors.New("device address is required")
	}
	if len(c.Key) != codec.KeySize {
		return errors.Errorf("device key must be %d bytes, got %d", codec.KeySize, len(c.Key))
	}
	if c.Version != codec.Version {
		return errors.Errorf("unsupported protocol version %q", c.Version)
	}
	return nil
}
