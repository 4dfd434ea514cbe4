// Package bridge runs the full driver: every configured device session plus
// the MQTT side, dispatching inbound commands to the right device.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"local-tuya/config"
	"local-tuya/contrib"
	"local-tuya/device"
	"local-tuya/message"
	"local-tuya/mqtt"
)

// commandTimeout bounds one inbound command end to end, including the
// debounce window and the device send.
const commandTimeout = time.Minute

// Manager owns the devices and the MQTT client.
type Manager struct {
	log     *log.Entry
	client  *mqtt.Client
	devices map[string]*device.Device
}

// NewManager builds the devices from the configuration. All of them publish
// through a single broker connection.
func NewManager(cfg config.Config) (*Manager, error) {
	client := mqtt.NewClient(cfg.MQTT)
	devices := make(map[string]*device.Device, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		model, err := contrib.Model(dc.Model)
		if err != nil {
			return nil, errors.Wrapf(err, "device %q", dc.Name)
		}
		dev, err := device.New(dc.Name, dc.Config, model, client)
		if err != nil {
			return nil, errors.Wrapf(err, "device %q", dc.Name)
		}
		if _, ok := devices[dev.ID()]; ok {
			return nil, errors.Errorf("duplicate device id %q", dev.ID())
		}
		devices[dev.ID()] = dev
	}
	return &Manager{
		log:     log.WithField("component", "manager"),
		client:  client,
		devices: devices,
	}, nil
}

// Run connects to the broker, starts every device and dispatches commands
// until the context is cancelled, then tears everything down.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.client.Connect(ctx); err != nil {
		return err
	}
	for _, d := range m.devices {
		d.Start()
	}
	m.log.Infof("initialized %d device(s)", len(m.devices))

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.dispatch(dispatchCtx)
	}()

	<-ctx.Done()
	m.log.Info("shutting down...")
	for _, d := range m.devices {
		d.Close()
	}
	// Closing the client ends the command stream and unblocks dispatch.
	m.client.Close()
	cancelDispatch()
	wg.Wait()
	return nil
}

// dispatch routes inbound commands to their device. Updates block for the
// debounce and send cycle, so each command runs on its own goroutine.
func (m *Manager) dispatch(ctx context.Context) {
	m.log.Debug("receiving commands...")
	var wg sync.WaitGroup
	defer wg.Wait()
	for cmd := range m.client.Commands() {
		dev, ok := m.devices[cmd.DeviceID]
		if !ok {
			m.log.Warnf("received command for unknown device: %s", cmd.DeviceID)
			continue
		}
		wg.Add(1)
		go func(cmd mqtt.Command) {
			defer wg.Done()
			cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
			defer cancel()
			payload := message.Values{cmd.Property: cmd.Value}
			if err := dev.Update(cmdCtx, payload); err != nil {
				m.log.WithError(err).Errorf(
					"error updating device %s with %v", cmd.DeviceID, payload,
				)
			}
		}(cmd)
	}
}
