// Package mqtt connects the device layer to an MQTT broker: it publishes
// state, availability and Home-Assistant discovery, and turns messages on
// the set topics into device commands.
package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"local-tuya/device"
	"local-tuya/message"
)

const driverID = "driver"

// Command is one inbound set request for a device property.
type Command struct {
	DeviceID string
	Property string
	Value    message.Value
}

// Client wraps the paho client with the driver's topic conventions. It
// implements device.Publisher.
type Client struct {
	log      *log.Entry
	cfg      Config
	client   paho.Client
	limiter  *rate.Limiter
	commands chan Command

	// closeMu orders handler sends against Close: onMessage holds the read
	// lock around the channel send, Close flips closed under the write lock
	// before closing the channel.
	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewClient(cfg Config) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		log:      log.WithField("component", "mqtt"),
		cfg:      cfg,
		commands: make(chan Command, 16),
	}
	if cfg.CommandRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.CommandRate), cfg.CommandBurst)
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.broker()).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(cfg.KeepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetWill(statusTopic(cfg.DriverPrefix, driverID), "offline", 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.log.WithError(err).Warn("broker connection lost")
		})
	c.client = paho.NewClient(opts)
	return c
}

// Connect blocks until the first broker connection is up or the context
// expires. The client keeps reconnecting on its own afterwards.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-token.Done():
		return errors.Wrap(token.Error(), "connecting to broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close announces the driver offline and disconnects.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if err := c.publish(statusTopic(c.cfg.DriverPrefix, driverID), []byte("offline"), true); err != nil {
			c.log.WithError(err).Warn("could not set driver offline")
		}
		c.client.Disconnect(250)
		c.closeMu.Lock()
		c.closed = true
		c.closeMu.Unlock()
		close(c.commands)
	})
}

// Commands streams the inbound device commands. The channel is closed by
// Close.
func (c *Client) Commands() <-chan Command {
	return c.commands
}

// onConnect runs on every (re)connection: birth message and the shared set
// subscription.
func (c *Client) onConnect(client paho.Client) {
	c.log.Debug("connected to broker")
	if token := client.Publish(
		statusTopic(c.cfg.DriverPrefix, driverID), 1, true, "online",
	); token.Wait() && token.Error() != nil {
		c.log.WithError(token.Error()).Warn("could not set driver online")
	}
	topic := c.cfg.DriverPrefix + "/set/#"
	if token := client.Subscribe(topic, 1, c.onMessage); token.Wait() && token.Error() != nil {
		c.log.WithError(token.Error()).Errorf("could not subscribe to %s", topic)
	}
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) != 4 || parts[1] != "set" {
		c.log.Warnf("ignoring message on unexpected topic %s", msg.Topic())
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.log.Warnf("command rate exceeded, dropping message on %s", msg.Topic())
		return
	}
	cmd := Command{
		DeviceID: parts[2],
		Property: parts[3],
		Value:    decodeValue(msg.Payload()),
	}
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.commands <- cmd:
	default:
		c.log.Warnf("command queue full, dropping message on %s", msg.Topic())
	}
}

// decodeValue interprets a set payload: empty means null, JSON is decoded,
// anything else is kept as a raw string.
func decodeValue(payload []byte) message.Value {
	if len(payload) == 0 {
		return nil
	}
	var value message.Value
	if err := json.Unmarshal(payload, &value); err == nil {
		return value
	}
	return string(payload)
}

// PublishState sends the decoded device state with a millisecond timestamp.
func (c *Client) PublishState(deviceID string, values message.Values) error {
	payload := make(map[string]any, len(values)+1)
	for k, v := range values {
		payload[k] = v
	}
	payload["time"] = time.Now().UnixMilli()
	encoded, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	return c.publish(stateTopic(c.cfg.DriverPrefix, deviceID), encoded, false)
}

// PublishAvailability sets the retained online/offline marker of a device.
func (c *Client) PublishAvailability(deviceID string, online bool) error {
	payload := "offline"
	if online {
		payload = "online"
	}
	return c.publish(statusTopic(c.cfg.DriverPrefix, deviceID), []byte(payload), true)
}

// PublishDiscovery sends the retained Home-Assistant config of every
// component.
func (c *Client) PublishDiscovery(discovery device.Discovery, deviceID, deviceName string) error {
	msgs, err := discoveryMessages(c.cfg, discovery, deviceID, deviceName)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := c.publish(msg.topic, msg.payload, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(c.cfg.Timeout) {
		return errors.Errorf("publish to %s timed out", topic)
	}
	return errors.Wrapf(token.Error(), "publishing to %s", topic)
}
