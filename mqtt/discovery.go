package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"local-tuya/device"
)

// discoveryMessage is one retained Home-Assistant config payload.
type discoveryMessage struct {
	topic   string
	payload []byte
}

// discoveryMessages renders one config message per component, rooted under
// the discovery prefix as {prefix}/{type}/{deviceID}/{property}/config.
func discoveryMessages(cfg Config, d device.Discovery, deviceID, deviceName string) ([]discoveryMessage, error) {
	msgs := make([]discoveryMessage, 0, len(d.Components))
	for _, component := range d.Components {
		meta := component.Meta()
		componentType, payload := componentConfig(cfg, component, deviceID)
		if componentType == "" {
			return nil, errors.Errorf("unsupported component type %T", component)
		}
		for k, v := range commonConfig(cfg, d, meta, deviceID, deviceName) {
			payload[k] = v
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding discovery for %q", meta.Property)
		}
		msgs = append(msgs, discoveryMessage{
			topic: fmt.Sprintf(
				"%s/%s/%s/%s/config",
				cfg.DiscoveryPrefix, componentType, deviceID, meta.Property,
			),
			payload: encoded,
		})
	}
	return msgs, nil
}

// commonConfig holds the keys shared by every component type: identity,
// availability and the state template extracting the component property.
func commonConfig(cfg Config, d device.Discovery, meta device.ComponentMeta, deviceID, deviceName string) map[string]any {
	payload := map[string]any{
		"name":      meta.Name,
		"unique_id": fmt.Sprintf("%s_%s", deviceID, meta.Property),
		"device": map[string]any{
			"identifiers": []string{deviceID},
			"name":        deviceName,
			"model":       d.Model,
		},
		"availability": []map[string]any{
			{"topic": statusTopic(cfg.DriverPrefix, deviceID)},
			{"topic": statusTopic(cfg.DriverPrefix, "driver")},
		},
		"availability_mode": "all",
		"state_topic":       stateTopic(cfg.DriverPrefix, deviceID),
		"value_template":    fmt.Sprintf("{{ value_json.%s }}", meta.Property),
	}
	if meta.Icon != "" {
		payload["icon"] = meta.Icon
	}
	return payload
}

// componentConfig returns the Home-Assistant component type and its specific
// keys. An empty type means the component is not supported.
func componentConfig(cfg Config, component device.Component, deviceID string) (string, map[string]any) {
	meta := component.Meta()
	command := commandTopic(cfg.DriverPrefix, deviceID, meta.Property)
	switch c := component.(type) {
	case device.Switch:
		return "switch", map[string]any{
			"command_topic": command,
			"payload_on":    "true",
			"payload_off":   "false",
			"state_on":      "True",
			"state_off":     "False",
		}
	case device.Sensor:
		payload := map[string]any{
			"state_class": "measurement",
		}
		if c.Class != "" {
			payload["device_class"] = c.Class
		}
		if c.Unit != "" {
			payload["unit_of_measurement"] = c.Unit
		}
		return "sensor", payload
	case device.Select:
		return "select", map[string]any{
			"command_topic": command,
			"options":       c.Options,
		}
	case device.Climate:
		return "climate", map[string]any{
			"temperature_command_topic": command,
			"temperature_state_topic":   stateTopic(cfg.DriverPrefix, deviceID),
			"temperature_state_template": fmt.Sprintf(
				"{{ value_json.%s }}", meta.Property,
			),
			"min_temp":         c.Min,
			"max_temp":         c.Max,
			"temp_step":        c.Step,
			"temperature_unit": c.Unit,
		}
	default:
		return "", nil
	}
}
