package device

import (
	"time"

	"local-tuya/tuya"
)

// Config holds the device-level options on top of the connection settings.
type Config struct {
	Tuya tuya.Config

	// DebounceUpdates is how long to wait for more update commands in order
	// to group them.
	DebounceUpdates time.Duration
	// Retries bounds the confirmation/retry loop after an update; nil means
	// the default of 5, an explicit 0 disables confirmation entirely.
	Retries *int
	// RetryBackoff is the wait sequence between confirmation checks.
	RetryBackoff []time.Duration

	// EnableDiscovery publishes Home-Assistant discovery config on start.
	EnableDiscovery bool
	// IncludedComponents restricts the exposed components; nil means all.
	IncludedComponents []string
}

// WithDefaults returns the config with unset options filled in.
func (c Config) WithDefaults() Config {
	c.Tuya = c.Tuya.WithDefaults()
	if c.DebounceUpdates == 0 {
		c.DebounceUpdates = 500 * time.Millisecond
	}
	if c.Retries == nil {
		retries := 5
		c.Retries = &retries
	} else if *c.Retries < 0 {
		retries := 0
		c.Retries = &retries
	}
	if len(c.RetryBackoff) == 0 {
		c.RetryBackoff = []time.Duration{
			5 * time.Second,
			10 * time.Second,
			30 * time.Second,
			time.Minute,
		}
	}
	return c
}
