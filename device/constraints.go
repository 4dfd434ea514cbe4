package device

import "local-tuya/message"

// Constraint forbids datapoint values while a trigger datapoint holds a
// given value. A Forbidden entry with no values blocks the datapoint
// entirely while the constraint is active.
type Constraint struct {
	// Trigger datapoint and the value activating the constraint.
	Trigger      string
	TriggerValue message.Value
	Forbids      []Forbidden
}

// Forbidden names datapoint values excluded by an active constraint.
// An empty Values slice means every value of the datapoint is forbidden.
type Forbidden struct {
	DataPoint string
	Values    []message.Value
}

// All marks a datapoint as fully blocked while its constraint is active.
func All(dataPoint string) Forbidden {
	return Forbidden{DataPoint: dataPoint}
}

// Only blocks specific values of a datapoint while its constraint is active.
func Only(dataPoint string, values ...message.Value) Forbidden {
	return Forbidden{DataPoint: dataPoint, Values: values}
}

// Constraints is the ordered rule set of a device.
type Constraints []Constraint

type blacklistEntry struct {
	all    bool
	values []message.Value
}

// Filter drops candidate values forbidden by the constraints. Activation is
// checked on the merged view current ∪ values, so a candidate that moves the
// trigger away from its activating value deactivates the constraint in the
// same pass. Unknown datapoints pass through.
func (cs Constraints) Filter(values, current message.Values) message.Values {
	if len(cs) == 0 || len(values) == 0 {
		return values
	}
	merged := current.Merge(values)
	blacklist := make(map[string]*blacklistEntry)
	for _, c := range cs {
		if !message.Equal(merged[c.Trigger], c.TriggerValue) {
			continue
		}
		for _, f := range c.Forbids {
			entry := blacklist[f.DataPoint]
			if entry == nil {
				entry = &blacklistEntry{}
				blacklist[f.DataPoint] = entry
			}
			if len(f.Values) == 0 {
				entry.all = true
			} else {
				entry.values = append(entry.values, f.Values...)
			}
		}
	}
	filtered := make(message.Values, len(values))
	for k, v := range values {
		if entry, ok := blacklist[k]; ok {
			if entry.all || containsValue(entry.values, v) {
				continue
			}
		}
		filtered[k] = v
	}
	return filtered
}

func containsValue(values []message.Value, v message.Value) bool {
	for _, candidate := range values {
		if message.Equal(candidate, v) {
			return true
		}
	}
	return false
}
