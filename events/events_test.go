package events

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type eventA struct{ n int }
type eventB struct{}

func TestEmitInOrder(t *testing.T) {
	n := NewNotifier(nil)
	var calls []string
	Register(n, func(eventA) error {
		calls = append(calls, "first")
		return nil
	})
	Register(n, func(eventA) error {
		calls = append(calls, "second")
		return nil
	})
	n.Emit(eventA{})
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestEmitDispatchesByType(t *testing.T) {
	n := NewNotifier(nil)
	var gotA, gotB int
	Register(n, func(e eventA) error {
		gotA = e.n
		return nil
	})
	Register(n, func(eventB) error {
		gotB++
		return nil
	})
	n.Emit(eventA{n: 42})
	assert.Equal(t, 42, gotA)
	assert.Zero(t, gotB)

	// No listener for the type is a no-op.
	n.Emit("unrelated")
}

func TestEmitIsolatesFailures(t *testing.T) {
	n := NewNotifier(nil)
	var called bool
	Register(n, func(eventA) error {
		return errors.New("boom")
	})
	Register(n, func(eventA) error {
		called = true
		return nil
	})
	n.Emit(eventA{})
	assert.True(t, called)
}

func TestRegisterDuringEmit(t *testing.T) {
	n := NewNotifier(nil)
	var nested bool
	Register(n, func(eventA) error {
		// Listeners may register more listeners while an emit is running.
		Register(n, func(eventB) error {
			nested = true
			return nil
		})
		return nil
	})
	n.Emit(eventA{})
	n.Emit(eventB{})
	assert.True(t, nested)
}
