package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMovingAverage(t *testing.T) {
	avg := MovingAverage(2)
	assert.Equal(t, 10.0, avg(10))
	assert.Equal(t, 15.0, avg(20))
	assert.Equal(t, 25.0, avg(30)) // 10 left the window
}

func TestDebounce(t *testing.T) {
	deb := Debounce(time.Hour)
	assert.Equal(t, 10.0, deb(10))
	// Within the period the first value keeps being reported.
	assert.Equal(t, 10.0, deb(20))

	deb = Debounce(0)
	assert.Equal(t, 10.0, deb(10))
	assert.Equal(t, 20.0, deb(20))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 10.6, Round(1)(10.55))
	assert.Equal(t, 11.0, Round(0)(10.5))
}

func TestCompose(t *testing.T) {
	double := func(v float64) float64 { return v * 2 }
	plusOne := func(v float64) float64 { return v + 1 }
	assert.Equal(t, 21.0, Compose(double, plusOne)(10))
}
