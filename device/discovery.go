package device

// Discovery describes the Home-Assistant components a device model exposes.
// The MQTT layer turns it into per-component retained config payloads.
type Discovery struct {
	Model      string
	Components []Component
}

// Filter keeps only the components whose property is in included. A nil
// slice keeps everything.
func (d Discovery) Filter(included []string) Discovery {
	if included == nil {
		return d
	}
	keep := make(map[string]bool, len(included))
	for _, p := range included {
		keep[p] = true
	}
	filtered := Discovery{Model: d.Model}
	for _, c := range d.Components {
		if keep[c.Meta().Property] {
			filtered.Components = append(filtered.Components, c)
		}
	}
	return filtered
}

// ComponentMeta is shared by every component type.
type ComponentMeta struct {
	Name     string
	Icon     string
	Property string
}

// Component is one Home-Assistant entity of the device.
type Component interface {
	Meta() ComponentMeta
}

// Switch is an on/off component.
type Switch struct {
	ComponentMeta
}

// Sensor is a read-only measurement.
type Sensor struct {
	ComponentMeta
	Class string
	Unit  string
}

// Select offers a fixed set of options.
type Select struct {
	ComponentMeta
	Options []string
}

// Climate is a temperature set point.
type Climate struct {
	ComponentMeta
	Min  float64
	Max  float64
	Step float64
	Unit string
}

func (c Switch) Meta() ComponentMeta  { return c.ComponentMeta }
func (c Sensor) Meta() ComponentMeta  { return c.ComponentMeta }
func (c Select) Meta() ComponentMeta  { return c.ComponentMeta }
func (c Climate) Meta() ComponentMeta { return c.ComponentMeta }
