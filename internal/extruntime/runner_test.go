package extruntime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_PrefersCapturedPanicMessage(t *testing.T) {
	underlying := errors.New("wasm trap: unreachable")
	payload := "index out of range"

	rtErr := &RuntimeError{Underlying: underlying, CapturedPanic: &payload}
	assert.Contains(t, rtErr.Error(), payload)
	assert.Same(t, underlying, rtErr.Unwrap())
}

func TestRuntimeError_FallsBackToUnderlyingWithoutPanic(t *testing.T) {
	underlying := errors.New("wasm trap: out of bounds memory access")
	rtErr := &RuntimeError{Underlying: underlying}
	assert.Equal(t, underlying.Error(), rtErr.Error())
}
