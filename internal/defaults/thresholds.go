// Package defaults holds the built-in temperature threshold tables used
// when a fan configuration does not define its own.
package defaults

// Threshold is the minimal (up, down, speed) triple needed to seed a
// fan's threshold table; config.TemperatureThreshold is built from it.
type Threshold struct {
	UpThreshold   float64
	DownThreshold float64
	FanSpeed      float64
}

// Modern is used for models with LegacyTemperatureThresholdsBehaviour
// unset or false.
var Modern = []Threshold{
	{UpThreshold: 60, DownThreshold: 0, FanSpeed: 0},
	{UpThreshold: 63, DownThreshold: 48, FanSpeed: 10},
	{UpThreshold: 66, DownThreshold: 55, FanSpeed: 20},
	{UpThreshold: 68, DownThreshold: 59, FanSpeed: 50},
	{UpThreshold: 71, DownThreshold: 63, FanSpeed: 70},
	{UpThreshold: 75, DownThreshold: 67, FanSpeed: 100},
}

// Legacy is used for models with LegacyTemperatureThresholdsBehaviour
// set to true, matching older nbfc-linux model configs.
var Legacy = []Threshold{
	{UpThreshold: 0, DownThreshold: 0, FanSpeed: 0},
	{UpThreshold: 60, DownThreshold: 48, FanSpeed: 10},
	{UpThreshold: 63, DownThreshold: 55, FanSpeed: 20},
	{UpThreshold: 66, DownThreshold: 59, FanSpeed: 50},
	{UpThreshold: 68, DownThreshold: 63, FanSpeed: 70},
	{UpThreshold: 71, DownThreshold: 67, FanSpeed: 100},
}

// For picks the default table for a model's legacy-behaviour flag.
func For(legacy bool) []Threshold {
	if legacy {
		return Legacy
	}
	return Modern
}
