package ipc

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/ec"
	"github.com/nbfc-linux/nbfcd/internal/fan"
	"github.com/nbfc-linux/nbfcd/internal/sensors"
	"github.com/nbfc-linux/nbfcd/internal/service"
)

func testService(t *testing.T) *service.Service {
	t.Helper()
	modelCfg := &config.ModelConfig{
		EcPollInterval: 3000,
		FanConfigurations: []config.FanConfiguration{
			{FanDisplayName: "Fan 0", ReadRegister: 0x10, WriteRegister: 0x20, MinSpeedValue: 0, MaxSpeedValue: 100},
			{FanDisplayName: "Fan 1", ReadRegister: 0x12, WriteRegister: 0x22, MinSpeedValue: 0, MaxSpeedValue: 100},
		},
	}
	svc := service.New(modelCfg, &config.ServiceConfig{SelectedConfigId: "Test"}, "", false, zerolog.Nop())
	svc.EC = ec.NewDummy()
	svc.SensorRegistry = sensors.NewWithBasePath(t.TempDir())
	svc.TempControls = make([]*fan.TemperatureControl, len(svc.Fans))
	for i, f := range svc.Fans {
		svc.TempControls[i] = fan.NewTemperatureControl(f, nil, config.AlgorithmAverage, 3000)
	}
	return svc
}

func req(pairs ...any) Request {
	r := make(Request)
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		raw, err := json.Marshal(pairs[i+1])
		if err != nil {
			panic(err)
		}
		r[key] = raw
	}
	return r
}

func TestHandleSetFanSpeedFixedValue(t *testing.T) {
	svc := testService(t)
	resp, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Fan", 0, "Speed", 42.0))
	require.NoError(t, err)
	assert.Equal(t, SetFanSpeedResponse{Status: "OK"}, resp)
	assert.Equal(t, fan.Manual, svc.Fans[0].Mode)
	assert.Equal(t, 42.0, svc.Fans[0].RequestedSpeed)
	assert.Equal(t, fan.Auto, svc.Fans[1].Mode, "unaffected fan must stay untouched")
}

func TestHandleSetFanSpeedAuto(t *testing.T) {
	svc := testService(t)
	svc.Fans[0].SetFixedSpeed(10)

	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Fan", 0, "Speed", "auto"))
	require.NoError(t, err)
	assert.Equal(t, fan.Auto, svc.Fans[0].Mode)
}

func TestHandleSetFanSpeedAllFansWhenFanOmitted(t *testing.T) {
	svc := testService(t)
	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Speed", 30.0))
	require.NoError(t, err)
	assert.Equal(t, 30.0, svc.Fans[0].RequestedSpeed)
	assert.Equal(t, 30.0, svc.Fans[1].RequestedSpeed)
}

func TestHandleSetFanSpeedRejectsNonIntegerFan(t *testing.T) {
	svc := testService(t)
	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Fan", "zero", "Speed", 10.0))
	assert.EqualError(t, err, "Fan: Not an integer")
}

func TestHandleSetFanSpeedRejectsNegativeFan(t *testing.T) {
	svc := testService(t)
	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Fan", -1, "Speed", 10.0))
	assert.EqualError(t, err, "Fan: Cannot be negative")
}

func TestHandleSetFanSpeedRejectsOutOfRangeFan(t *testing.T) {
	svc := testService(t)
	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Fan", 99, "Speed", 10.0))
	assert.EqualError(t, err, "Fan: No such fan available")
}

func TestHandleSetFanSpeedRejectsInvalidSpeedType(t *testing.T) {
	svc := testService(t)
	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Speed", "warp-nine"))
	assert.EqualError(t, err, "Speed: Invalid type. Either float or 'auto'")
}

func TestHandleSetFanSpeedRejectsOutOfRangeSpeed(t *testing.T) {
	svc := testService(t)
	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Speed", 150.0))
	assert.EqualError(t, err, "Speed: Invalid value")
}

func TestHandleSetFanSpeedRejectsMissingSpeed(t *testing.T) {
	svc := testService(t)
	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Fan", 0))
	assert.EqualError(t, err, "Missing argument: Speed")
}

func TestHandleSetFanSpeedRejectsUnknownKey(t *testing.T) {
	svc := testService(t)
	_, err := handleSetFanSpeed(svc, req("Command", "set-fan-speed", "Speed", 10.0, "Bogus", 1))
	assert.EqualError(t, err, "Unknown arguments")
}

func TestHandleStatusReportsFans(t *testing.T) {
	svc := testService(t)
	resp, err := handleStatus(svc, req("Command", "status"))
	require.NoError(t, err)

	status := resp.(StatusResponse)
	assert.Equal(t, "Test", status.SelectedConfigId)
	assert.Len(t, status.Fans, 2)
	assert.Equal(t, "Fan 0", status.Fans[0].Name)
}

func TestHandleStatusRejectsExtraKeys(t *testing.T) {
	svc := testService(t)
	_, err := handleStatus(svc, req("Command", "status", "Bogus", 1))
	assert.EqualError(t, err, "Unknown arguments")
}

func TestCommandExtractsCommandField(t *testing.T) {
	r := req("Command", "status")
	assert.Equal(t, "status", r.command())
}

func TestCommandMissingReturnsEmpty(t *testing.T) {
	r := req("Fan", 0)
	assert.Equal(t, "", r.command())
}
