package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerRunsLastOnly(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var got atomic.Value
	var runs atomic.Int32
	for _, v := range []string{"a", "al", "ali"} {
		d.Trigger(func() {
			got.Store(v)
			runs.Add(1)
		})
	}
	require.Eventually(t, func() bool { return runs.Load() == 1 }, waitFor, tick)
	assert.Equal(t, "ali", got.Load())

	time.Sleep(40 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())
}

func TestDebouncerFlushAndStop(t *testing.T) {
	d := NewDebouncer(time.Hour)
	var runs atomic.Int32
	d.Trigger(func() { runs.Add(1) })
	d.Flush()
	assert.EqualValues(t, 1, runs.Load())

	d.Flush()
	assert.EqualValues(t, 1, runs.Load())

	d.Trigger(func() { runs.Add(1) })
	d.Stop()
	d.Flush()
	d.Trigger(func() { runs.Add(1) })
	d.Flush()
	assert.EqualValues(t, 1, runs.Load())
}
