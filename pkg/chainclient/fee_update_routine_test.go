package chainclient

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeeUpdateRoutine(t *testing.T) {
	backend := &fakeBackend{tip: big.NewInt(10), baseFee: big.NewInt(90)}
	c := newTestClient(t, backend, 1.0)

	r := NewFeeUpdateRoutine(c, 5*time.Millisecond)
	assert.False(t, r.IsRunning())

	r.Start()
	r.Start() // second start is a no-op
	assert.True(t, r.IsRunning())

	assert.Eventually(t, func() bool { return backend.calls() >= 2 }, time.Second, time.Millisecond)

	r.Stop()
	assert.False(t, r.IsRunning())
	stopped := backend.calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, backend.calls())

	c.mu.RLock()
	defer c.mu.RUnlock()
	assert.Equal(t, int64(100), c.fees.MaxFeePerGas.Int64())
}

func TestFeeUpdateRoutineStopWhenIdle(t *testing.T) {
	c := newTestClient(t, &fakeBackend{tip: big.NewInt(1), baseFee: big.NewInt(1)}, 1.0)
	r := NewFeeUpdateRoutine(c, time.Hour)
	r.Stop()
	assert.False(t, r.IsRunning())
}
