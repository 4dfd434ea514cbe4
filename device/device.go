// Package device orchestrates a per-device session: it bridges the Tuya
// client stack to the external publisher and model codec, debounces and
// confirms user updates, and republishes state and availability.
package device

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"local-tuya/backoff"
	"local-tuya/events"
	"local-tuya/message"
	"local-tuya/tuya"
)

// Model converts between external values (semantic property names) and wire
// values (numeric datapoint keys), and describes the device to the outside.
// Encoders and decoders may fail; the device logs and drops the offending
// payload.
type Model interface {
	Discovery() Discovery
	Constraints() Constraints
	// FromWire decodes a wire snapshot into external values.
	FromWire(values message.Values) (message.Values, error)
	// ToWire encodes an external command into wire values.
	ToWire(values message.Values) (message.Values, error)
}

// Publisher announces device state to the outside world. Failures are
// logged and never tear down the session.
type Publisher interface {
	PublishState(deviceID string, values message.Values) error
	PublishAvailability(deviceID string, online bool) error
	PublishDiscovery(discovery Discovery, deviceID, deviceName string) error
}

// Device assembles the session for one physical device.
type Device struct {
	log       *log.Entry
	name      string
	cfg       Config
	model     Model
	publisher Publisher
	session   *tuya.Session
	buffer    *UpdateBuffer
	state     *stateHandler

	closeMu sync.RWMutex
	closed  bool

	// Publishes run on a dedicated worker so slow broker round trips do not
	// block the transport's read loop.
	publishQueue chan func()
	publishDone  chan struct{}
}

func New(name string, cfg Config, model Model, publisher Publisher) (*Device, error) {
	cfg = cfg.WithDefaults()
	logger := log.WithField("device", name)
	notifier := events.NewNotifier(logger)
	session, err := tuya.NewSession(name, cfg.Tuya, notifier)
	if err != nil {
		return nil, err
	}
	d := &Device{
		log:          logger,
		name:         name,
		cfg:          cfg,
		model:        model,
		publisher:    publisher,
		session:      session,
		state:        newStateHandler(),
		publishQueue: make(chan func(), 8),
		publishDone:  make(chan struct{}),
	}
	d.buffer = NewUpdateBuffer(
		name,
		cfg.DebounceUpdates,
		session.Protocol,
		notifier,
		model.Constraints(),
		*cfg.Retries,
		backoff.NewSequence(cfg.RetryBackoff...),
	)
	go d.publishLoop()
	events.Register(notifier, d.publishState)
	events.Register(notifier, func(tuya.ConnectionEstablished) error {
		d.publishAvailability(true)
		return nil
	})
	events.Register(notifier, func(e tuya.ConnectionClosed) error {
		d.publishAvailability(false)
		return nil
	})
	return d, nil
}

// Start publishes discovery if enabled and opens the device session.
func (d *Device) Start() {
	if d.cfg.EnableDiscovery {
		discovery := d.model.Discovery().Filter(d.cfg.IncludedComponents)
		d.publish("sending discovery", func() error {
			return d.publisher.PublishDiscovery(discovery, d.cfg.Tuya.ID, d.name)
		})
	}
	d.session.Start()
}

// Close tears down the session and waits for pending publishes.
func (d *Device) Close() {
	d.session.Close()
	d.buffer.Close()
	d.closeMu.Lock()
	d.closed = true
	d.closeMu.Unlock()
	close(d.publishQueue)
	<-d.publishDone
}

// ID returns the Tuya device id.
func (d *Device) ID() string { return d.cfg.Tuya.ID }

// Update encodes an external command and hands it to the update buffer. The
// returned error reflects the device send outcome; encoding failures are
// logged and dropped.
func (d *Device) Update(ctx context.Context, payload message.Values) error {
	wire, err := d.model.ToWire(payload)
	if err != nil {
		d.log.WithError(err).Errorf("could not encode command %v", payload)
		return nil
	}
	d.log.Debugf("received command: %v", wire)
	return d.buffer.Update(ctx, wire)
}

// State returns the decoded device state, waiting for the first snapshot.
func (d *Device) State(ctx context.Context) (message.Values, error) {
	return d.state.get(ctx)
}

func (d *Device) publishState(e tuya.StateUpdated) error {
	decoded, err := d.model.FromWire(e.Values)
	if err != nil {
		d.log.WithError(err).Errorf("could not decode device state %v", e.Values)
		return nil
	}
	d.state.updated(decoded)
	d.log.Debugf("received new device state: %v", decoded)
	d.publish("sending state update", func() error {
		return d.publisher.PublishState(d.cfg.Tuya.ID, decoded)
	})
	return nil
}

func (d *Device) publishAvailability(online bool) {
	d.publish("setting availability", func() error {
		return d.publisher.PublishAvailability(d.cfg.Tuya.ID, online)
	})
}

// publish queues a publisher call on the worker, blocking for backpressure
// when the queue is full.
func (d *Device) publish(task string, fn func() error) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return
	}
	d.publishQueue <- func() {
		if err := fn(); err != nil {
			d.log.WithError(err).Errorf("error %s", task)
		}
	}
}

func (d *Device) publishLoop() {
	defer close(d.publishDone)
	for fn := range d.publishQueue {
		fn()
	}
}
