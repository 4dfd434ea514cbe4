package mqtt

import (
	"fmt"
	"time"
)

// Config holds the broker connection and topic settings.
type Config struct {
	Hostname string
	Port     int
	Username string
	Password string
	// ClientID defaults to the driver prefix.
	ClientID string

	// DiscoveryPrefix roots the Home-Assistant discovery topics.
	DiscoveryPrefix string
	// DriverPrefix roots the state/status/set topics.
	DriverPrefix string

	// Timeout bounds each publish.
	Timeout   time.Duration
	KeepAlive time.Duration

	// CommandRate limits inbound commands per second across all devices;
	// 0 disables the limiter. CommandBurst defaults to the rate.
	CommandRate  float64
	CommandBurst int
}

// WithDefaults returns the config with unset options filled in.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.DiscoveryPrefix == "" {
		c.DiscoveryPrefix = "homeassistant"
	}
	if c.DriverPrefix == "" {
		c.DriverPrefix = "local-tuya"
	}
	if c.ClientID == "" {
		c.ClientID = c.DriverPrefix
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = time.Minute
	}
	if c.CommandBurst == 0 && c.CommandRate > 0 {
		c.CommandBurst = int(c.CommandRate) + 1
	}
	return c
}

func (c Config) broker() string {
	return fmt.Sprintf("tcp://%s:%d", c.Hostname, c.Port)
}

func stateTopic(driverPrefix, deviceID string) string {
	return fmt.Sprintf("%s/get/%s", driverPrefix, deviceID)
}

func statusTopic(driverPrefix, deviceID string) string {
	return fmt.Sprintf("%s/status/%s", driverPrefix, deviceID)
}

func commandTopic(driverPrefix, deviceID, property string) string {
	return fmt.Sprintf("%s/set/%s/%s", driverPrefix, deviceID, property)
}
