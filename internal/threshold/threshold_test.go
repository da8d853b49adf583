package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbfc-linux/nbfcd/internal/config"
)

func sampleRows() []config.TemperatureThreshold {
	return []config.TemperatureThreshold{
		{UpThreshold: 0, DownThreshold: 0, FanSpeed: 0},
		{UpThreshold: 55, DownThreshold: 50, FanSpeed: 30},
		{UpThreshold: 65, DownThreshold: 60, FanSpeed: 60},
		{UpThreshold: 75, DownThreshold: 70, FanSpeed: 100},
	}
}

func TestUpdateBelowFirstRowSelectsIdle(t *testing.T) {
	m := New(sampleRows())
	speed, critical := m.Update(20, 90)
	assert.Equal(t, 0.0, speed)
	assert.False(t, critical)
}

func TestUpdateAdvancesOnUpThreshold(t *testing.T) {
	m := New(sampleRows())
	m.Update(20, 90)
	speed, _ := m.Update(56, 90)
	assert.Equal(t, 30.0, speed)
}

func TestUpdateHoldsUntilDownThreshold(t *testing.T) {
	m := New(sampleRows())
	m.Update(56, 90) // advance to 30%
	speed, _ := m.Update(51, 90)
	assert.Equal(t, 30.0, speed, "temperature above DownThreshold should hold the current row")
}

func TestUpdateDescendsBelowDownThreshold(t *testing.T) {
	m := New(sampleRows())
	m.Update(56, 90) // advance to 30%
	speed, _ := m.Update(40, 90)
	assert.Equal(t, 0.0, speed)
}

func TestUpdateCriticalBypassesTable(t *testing.T) {
	m := New(sampleRows())
	speed, critical := m.Update(95, 90)
	require.True(t, critical)
	assert.Equal(t, 100.0, speed)
}

func TestUpdateCriticalLatchClearsOnceBelow100(t *testing.T) {
	m := New(sampleRows())
	m.Update(95, 90)
	_, stillCritical := m.Update(76, 90)
	assert.True(t, stillCritical, "the 100% table row should keep the latch set")

	speed, critical := m.Update(40, 90)
	assert.False(t, critical)
	assert.Equal(t, 0.0, speed)
}

func TestResetClearsHysteresisState(t *testing.T) {
	m := New(sampleRows())
	m.Update(56, 90)
	m.Reset()
	speed, critical := m.Update(20, 90)
	assert.Equal(t, 0.0, speed)
	assert.False(t, critical)
}

func TestUpdateWithNoRowsReturnsZero(t *testing.T) {
	m := New(nil)
	speed, critical := m.Update(30, 90)
	assert.Equal(t, 0.0, speed)
	assert.False(t, critical)
}
