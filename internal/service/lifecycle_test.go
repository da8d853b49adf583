package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/ec"
	"github.com/nbfc-linux/nbfcd/internal/sensors"
)

func newLifecycleTestService(t *testing.T) *Service {
	t.Helper()
	modelCfg := &config.ModelConfig{
		EcPollInterval:      3000,
		CriticalTemperature: 90,
		FanConfigurations: []config.FanConfiguration{
			{FanDisplayName: "Fan 0", ReadRegister: 0x10, WriteRegister: 0x20, MinSpeedValue: 0, MaxSpeedValue: 100, ResetRequired: true, FanSpeedResetValue: 255},
		},
	}
	svc := New(modelCfg, &config.ServiceConfig{}, "", false, zerolog.Nop())
	svc.SensorRegistry = sensors.NewWithBasePath(t.TempDir())
	return svc
}

func TestLifecycleInitAdvancesToFilters(t *testing.T) {
	svc := newLifecycleTestService(t)
	l := NewLifecycle(svc, func() (ec.EC, error) { return ec.NewDummy(), nil })

	require.NoError(t, l.Init(context.Background()))
	assert.Equal(t, stateFilters, l.State())
	assert.NotNil(t, svc.EC)
	assert.Len(t, svc.TempControls, 1)
}

func TestLifecycleInitFailureTearsDownAcquiredStages(t *testing.T) {
	svc := newLifecycleTestService(t)
	l := NewLifecycle(svc, func() (ec.EC, error) { return nil, errors.New("no EC available") })

	err := l.Init(context.Background())
	assert.Error(t, err)
	assert.Equal(t, stateNone, l.State())
}

// closeRecordingEC is a Dummy that remembers whether Close was called.
type closeRecordingEC struct {
	*ec.Dummy
	closed bool
}

func (c *closeRecordingEC) Close() error {
	c.closed = true
	return c.Dummy.Close()
}

func TestLifecycleTeardownClosesEC(t *testing.T) {
	svc := newLifecycleTestService(t)
	recorder := &closeRecordingEC{Dummy: ec.NewDummy()}
	l := NewLifecycle(svc, func() (ec.EC, error) { return recorder, nil })

	require.NoError(t, l.Init(context.Background()))
	require.NoError(t, l.Teardown(context.Background()))
	assert.Equal(t, stateNone, l.State())
	assert.True(t, recorder.closed, "teardown must close the EC backend")
}

func TestLifecycleReadOnlySkipsResetProgram(t *testing.T) {
	modelCfg := &config.ModelConfig{
		EcPollInterval:      3000,
		CriticalTemperature: 90,
		FanConfigurations: []config.FanConfiguration{
			{FanDisplayName: "Fan 0", ReadRegister: 0x10, WriteRegister: 0x20, MinSpeedValue: 0, MaxSpeedValue: 100, ResetRequired: true, FanSpeedResetValue: 255},
		},
	}
	svc := New(modelCfg, &config.ServiceConfig{}, "", true, zerolog.Nop())
	svc.SensorRegistry = sensors.NewWithBasePath(t.TempDir())

	d := ec.NewDummy()
	l := NewLifecycle(svc, func() (ec.EC, error) { return d, nil })
	require.NoError(t, l.Init(context.Background()))
	require.NoError(t, l.Teardown(context.Background()))

	raw, err := d.ReadByte(0x20)
	require.NoError(t, err)
	assert.Equal(t, byte(0), raw, "read-only mode must never write FanSpeedResetValue")
}
