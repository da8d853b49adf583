package fan

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/sensors"
)

func fakeSensors(t *testing.T, readings ...int) []*sensors.Sensor {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "hwmon0")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "name"), []byte("fake"), 0644))
	for i, v := range readings {
		name := "temp" + strconv.Itoa(i+1) + "_input"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strconv.Itoa(v)), 0644))
	}
	r := sensors.NewWithBasePath(base)
	require.NoError(t, r.Discover())
	return r.All()
}

func TestUpdateFanTemperatureAveragesSensors(t *testing.T) {
	list := fakeSensors(t, 40000, 60000)
	tc := NewTemperatureControl(New(&config.FanConfiguration{MinSpeedValue: 0, MaxSpeedValue: 100}), list, config.AlgorithmAverage, 1000)

	require.NoError(t, tc.UpdateFanTemperature())
	assert.Equal(t, 50.0, tc.Temperature())
}

func TestUpdateFanTemperatureMin(t *testing.T) {
	list := fakeSensors(t, 40000, 60000)
	tc := NewTemperatureControl(New(&config.FanConfiguration{MinSpeedValue: 0, MaxSpeedValue: 100}), list, config.AlgorithmMin, 1000)

	require.NoError(t, tc.UpdateFanTemperature())
	assert.Equal(t, 40.0, tc.Temperature())
}

func TestUpdateFanTemperatureMax(t *testing.T) {
	list := fakeSensors(t, 40000, 60000)
	tc := NewTemperatureControl(New(&config.FanConfiguration{MinSpeedValue: 0, MaxSpeedValue: 100}), list, config.AlgorithmMax, 1000)

	require.NoError(t, tc.UpdateFanTemperature())
	assert.Equal(t, 60.0, tc.Temperature())
}

func TestUpdateFanTemperatureAllSensorsFailErrors(t *testing.T) {
	tc := NewTemperatureControl(New(&config.FanConfiguration{MinSpeedValue: 0, MaxSpeedValue: 100}), nil, config.AlgorithmAverage, 1000)
	assert.Error(t, tc.UpdateFanTemperature())
}
