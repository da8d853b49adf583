package fan

import (
	"fmt"
	"time"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/sensors"
	"github.com/nbfc-linux/nbfcd/internal/tempfilter"
)

// TemperatureControl binds a Fan to the sensors that feed it and the
// algorithm used to combine their readings, plus the time-windowed
// filter smoothing the aggregate.
type TemperatureControl struct {
	Fan       *Fan
	Sensors   []*sensors.Sensor
	Algorithm config.TemperatureAlgorithmType
	Filter    *tempfilter.Filter
}

// NewTemperatureControl builds a TemperatureControl whose filter window
// is window milliseconds; the service passes the model's poll interval
// so the smoothing tracks the poll cadence.
func NewTemperatureControl(f *Fan, sensorList []*sensors.Sensor, algo config.TemperatureAlgorithmType, window int) *TemperatureControl {
	return &TemperatureControl{
		Fan:       f,
		Sensors:   sensorList,
		Algorithm: algo,
		Filter:    tempfilter.New(time.Duration(window) * time.Millisecond),
	}
}

// UpdateFanTemperature reads every bound sensor, aggregates the
// successful subset via Algorithm, and pushes the result into the
// filter. An error is returned only if every sensor read failed.
func (t *TemperatureControl) UpdateFanTemperature() error {
	var readings []float64
	var lastErr error
	for _, s := range t.Sensors {
		v, err := s.Read()
		if err != nil {
			lastErr = err
			continue
		}
		readings = append(readings, v)
	}
	if len(readings) == 0 {
		return fmt.Errorf("all sensors failed for fan %q: %w", t.Fan.Config.FanDisplayName, lastErr)
	}

	t.Filter.Push(aggregate(readings, t.Algorithm))
	return nil
}

// Temperature returns the filter's current smoothed aggregate.
func (t *TemperatureControl) Temperature() float64 {
	return t.Filter.Filtered()
}

func aggregate(readings []float64, algo config.TemperatureAlgorithmType) float64 {
	switch algo {
	case config.AlgorithmMin:
		min := readings[0]
		for _, r := range readings[1:] {
			if r < min {
				min = r
			}
		}
		return min
	case config.AlgorithmMax:
		max := readings[0]
		for _, r := range readings[1:] {
			if r > max {
				max = r
			}
		}
		return max
	default: // Average
		var sum float64
		for _, r := range readings {
			sum += r
		}
		return sum / float64(len(readings))
	}
}
