package regwrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/ec"
)

func TestApplySet(t *testing.T) {
	d := ec.NewDummy()
	require.NoError(t, d.WriteByte(0x10, 0xFF))
	require.NoError(t, Apply(d, 0x10, 0x42, config.WriteModeSet))

	v, err := d.ReadByte(0x10)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), v)
}

func TestApplyAnd(t *testing.T) {
	d := ec.NewDummy()
	require.NoError(t, d.WriteByte(0x10, 0xF0))
	require.NoError(t, Apply(d, 0x10, 0x0F, config.WriteModeAnd))

	v, err := d.ReadByte(0x10)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), v)
}

func TestApplyOr(t *testing.T) {
	d := ec.NewDummy()
	require.NoError(t, d.WriteByte(0x10, 0xF0))
	require.NoError(t, Apply(d, 0x10, 0x0F, config.WriteModeOr))

	v, err := d.ReadByte(0x10)
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), v)
}

func TestApplyAllInitializingRunsEveryEntry(t *testing.T) {
	d := ec.NewDummy()
	program := []config.RegisterWriteConfiguration{
		{Register: 0x10, Value: 1, WriteMode: config.WriteModeSet, WriteOccasion: config.OccasionOnInitialization},
		{Register: 0x11, Value: 2, WriteMode: config.WriteModeSet, WriteOccasion: config.OccasionOnWriteFanSpeed},
	}
	require.NoError(t, ApplyAll(d, program, true))

	v0, _ := d.ReadByte(0x10)
	v1, _ := d.ReadByte(0x11)
	assert.Equal(t, byte(1), v0)
	assert.Equal(t, byte(2), v1)
}

func TestApplyAllNonInitializingSkipsInitOnlyEntries(t *testing.T) {
	d := ec.NewDummy()
	program := []config.RegisterWriteConfiguration{
		{Register: 0x10, Value: 1, WriteMode: config.WriteModeSet, WriteOccasion: config.OccasionOnInitialization},
		{Register: 0x11, Value: 2, WriteMode: config.WriteModeSet, WriteOccasion: config.OccasionOnWriteFanSpeed},
	}
	require.NoError(t, ApplyAll(d, program, false))

	v0, _ := d.ReadByte(0x10)
	v1, _ := d.ReadByte(0x11)
	assert.Equal(t, byte(0), v0, "OnInitialization-only entry must not be reapplied on a regular tick")
	assert.Equal(t, byte(2), v1)
}

func TestResetAppliesOnlyResetRequiredEntries(t *testing.T) {
	d := ec.NewDummy()
	program := []config.RegisterWriteConfiguration{
		{Register: 0x10, ResetRequired: true, ResetValue: 9, ResetWriteMode: config.WriteModeSet},
		{Register: 0x11, ResetRequired: false, ResetValue: 9, ResetWriteMode: config.WriteModeSet},
	}
	require.NoError(t, Reset(d, program))

	v0, _ := d.ReadByte(0x10)
	v1, _ := d.ReadByte(0x11)
	assert.Equal(t, byte(9), v0)
	assert.Equal(t, byte(0), v1)
}
