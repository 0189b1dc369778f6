package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStallPolicy_FastSampleResets(t *testing.T) {
	t.Parallel()

	p := DefaultStallPolicy()
	for _, prior := range []int{0, 1, 10, 49} {
		count, stalled := p.Next(prior, 0.1)
		assert.Equal(t, 0, count, "prior=%d", prior)
		assert.False(t, stalled, "prior=%d", prior)

		count, stalled = p.Next(prior, 5.0)
		assert.Equal(t, 0, count, "prior=%d", prior)
		assert.False(t, stalled, "prior=%d", prior)
	}
}

func TestStallPolicy_SlowSamplesAccumulate(t *testing.T) {
	t.Parallel()

	p := DefaultStallPolicy()
	count := 0
	var stalled bool
	for i := 1; i < p.StepThreshold; i++ {
		count, stalled = p.Next(count, 0.0999)
		assert.Equal(t, i, count)
		assert.False(t, stalled, "tripped early at sample %d", i)
	}

	count, stalled = p.Next(count, 0)
	assert.Equal(t, p.StepThreshold, count)
	assert.True(t, stalled)
}

func TestStallPolicy_OneShortOfThresholdThenFast(t *testing.T) {
	t.Parallel()

	p := StallPolicy{SpeedThreshold: 0.1, StepThreshold: 50}
	count := 0
	for i := 0; i < 49; i++ {
		count, _ = p.Next(count, 0)
	}

	count, stalled := p.Next(count, 0.2)
	assert.Equal(t, 0, count)
	assert.False(t, stalled)

	count, stalled = p.Next(count, 0)
	assert.Equal(t, 1, count)
	assert.False(t, stalled)
}

func TestProbeVehicleID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, VehicleID("veh_route_7"), ProbeVehicleID("route_7"))
}
