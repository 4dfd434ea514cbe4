package device

import (
	"math"
	"time"
)

// ValueProcessor alters how a numeric datapoint is reported. Processors are
// stateful closures owned by a single device and are not safe for concurrent
// use; the device applies them on its publishing path only.
type ValueProcessor func(float64) float64

// Compose chains processors, applied in the order given.
func Compose(processors ...ValueProcessor) ValueProcessor {
	return func(value float64) float64 {
		for _, p := range processors {
			value = p(value)
		}
		return value
	}
}

// MovingAverage returns the average over the last n values.
func MovingAverage(n int) ValueProcessor {
	var window []float64
	return func(value float64) float64 {
		if len(window) >= n {
			window = window[len(window)-n+1:]
		}
		window = append(window, value)
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		return sum / float64(len(window))
	}
}

// Debounce keeps reporting the first value seen within each period.
func Debounce(period time.Duration) ValueProcessor {
	var (
		last     float64
		lastTime time.Time
		seen     bool
	)
	return func(value float64) float64 {
		now := time.Now()
		if !seen || !now.Before(lastTime.Add(period)) {
			last = value
			lastTime = now
			seen = true
		}
		return last
	}
}

// Round rounds to n decimals.
func Round(n int) ValueProcessor {
	factor := math.Pow(10, float64(n))
	return func(value float64) float64 {
		return math.Round(value*factor) / factor
	}
}
