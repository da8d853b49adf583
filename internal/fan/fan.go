// Package fan holds per-fan runtime state: mode, requested/target/
// current speed, quantization between percent and raw EC values, and
// the EC flush/reset/readback operations.
package fan

import (
	"fmt"
	"math"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/ec"
	"github.com/nbfc-linux/nbfcd/internal/regwrite"
	"github.com/nbfc-linux/nbfcd/internal/threshold"
)

// Mode selects whether RequestedSpeed tracks the threshold manager or
// a fixed value set over IPC.
type Mode int

const (
	Auto Mode = iota
	Manual
)

// Fan is one physical fan's controller state.
type Fan struct {
	Config *config.FanConfiguration

	Mode           Mode
	RequestedSpeed float64
	TargetSpeed    float64
	CurrentSpeed   float64
	Temperature    float64
	IsCritical     bool

	lastWrittenRaw  int
	haveWrittenOnce bool

	threshold *threshold.Manager
}

// New builds a Fan bound to cfg, with its own hysteresis state
// machine seeded from cfg's threshold table.
func New(cfg *config.FanConfiguration) *Fan {
	return &Fan{
		Config:    cfg,
		Mode:      Auto,
		threshold: threshold.New(cfg.TemperatureThresholds),
	}
}

// SpeedSteps is the number of distinct raw values this fan's write
// register can represent.
func (f *Fan) SpeedSteps() int {
	return int(math.Abs(float64(f.Config.MaxSpeedValue-f.Config.MinSpeedValue))) + 1
}

// SetAutoSpeed switches the fan back to threshold-driven control.
func (f *Fan) SetAutoSpeed() {
	f.Mode = Auto
}

// SetFixedSpeed switches to manual control at a clamped percent.
func (f *Fan) SetFixedSpeed(percent float64) {
	f.Mode = Manual
	f.RequestedSpeed = clamp(percent, 0, 100)
}

// SetTemperature records the fan's latest aggregated temperature and,
// in Auto mode, re-evaluates the threshold manager to update
// RequestedSpeed.
func (f *Fan) SetTemperature(t, criticalTemp float64) {
	f.Temperature = t
	if f.Mode != Auto {
		return
	}
	speed, critical := f.threshold.Update(t, criticalTemp)
	f.RequestedSpeed = speed
	f.IsCritical = critical
}

// percentToRaw converts a percent in [0,100] to the nearest
// representable raw write value.
func percentToRaw(percent float64, min, max int) int {
	raw := float64(min) + (float64(max-min))*percent/100.0
	return int(math.Round(raw))
}

// rawToPercent is the inverse of percentToRaw.
func rawToPercent(raw, min, max int) float64 {
	if max == min {
		return 0
	}
	return (float64(raw) - float64(min)) / float64(max-min) * 100.0
}

// writeOverride returns the raw value a FanSpeedPercentageOverride
// substitutes for percent, if one matches exactly.
func writeOverride(cfg *config.FanConfiguration, percent float64) (int, bool) {
	for _, o := range cfg.FanSpeedPercentageOverrides {
		if o.TargetOperation.Writable() && o.FanSpeedPercentage == percent {
			return o.TargetValue, true
		}
	}
	return 0, false
}

// readOverride returns the percent a FanSpeedPercentageOverride maps
// raw back to, if one matches exactly.
func readOverride(cfg *config.FanConfiguration, raw int) (float64, bool) {
	for _, o := range cfg.FanSpeedPercentageOverrides {
		if o.TargetOperation.Readable() && o.TargetValue == raw {
			return o.FanSpeedPercentage, true
		}
	}
	return 0, false
}

// quantizedTarget computes the raw write value for RequestedSpeed and
// the externally-visible TargetSpeed that raw value actually
// represents, applying write-side percentage overrides first.
func (f *Fan) quantizedTarget() (raw int, target float64) {
	if rawOverride, ok := writeOverride(f.Config, f.RequestedSpeed); ok {
		return rawOverride, f.RequestedSpeed
	}
	raw = percentToRaw(f.RequestedSpeed, f.Config.MinSpeedValue, f.Config.MaxSpeedValue)
	target = rawToPercent(raw, f.Config.MinSpeedValue, f.Config.MaxSpeedValue)
	return raw, target
}

// ECFlush writes the quantized target speed to the EC if it differs
// from the last value written, then re-applies the OnWriteFanSpeed
// register writes.
func (f *Fan) ECFlush(controller ec.EC, readWriteWords bool, program []config.RegisterWriteConfiguration) error {
	raw, target := f.quantizedTarget()
	f.TargetSpeed = target

	if f.haveWrittenOnce && raw == f.lastWrittenRaw {
		return nil
	}

	if readWriteWords {
		if err := controller.WriteWord(f.Config.WriteRegister, uint16(raw)); err != nil {
			return fmt.Errorf("write fan speed word: %w", err)
		}
	} else {
		if err := controller.WriteByte(f.Config.WriteRegister, byte(raw)); err != nil {
			return fmt.Errorf("write fan speed byte: %w", err)
		}
	}
	f.lastWrittenRaw = raw
	f.haveWrittenOnce = true

	if err := regwrite.ApplyAll(controller, program, false); err != nil {
		return fmt.Errorf("on-write-fan-speed register writes: %w", err)
	}
	return nil
}

// UpdateCurrentSpeed reads the fan's current raw speed back from the
// EC and translates it to CurrentSpeed using the read-side min/max
// (independent if configured, otherwise the write-side min/max),
// honoring read-side percentage overrides.
func (f *Fan) UpdateCurrentSpeed(controller ec.EC, readWriteWords bool) error {
	var raw int
	if readWriteWords {
		v, err := controller.ReadWord(f.Config.ReadRegister)
		if err != nil {
			return fmt.Errorf("read fan speed word: %w", err)
		}
		raw = int(v)
	} else {
		v, err := controller.ReadByte(f.Config.ReadRegister)
		if err != nil {
			return fmt.Errorf("read fan speed byte: %w", err)
		}
		raw = int(v)
	}

	if percent, ok := readOverride(f.Config, raw); ok {
		f.CurrentSpeed = percent
		return nil
	}

	min, max := f.Config.MinSpeedValue, f.Config.MaxSpeedValue
	if f.Config.IndependentReadMinMaxValues {
		min, max = f.Config.MinSpeedValueRead, f.Config.MaxSpeedValueRead
	}
	f.CurrentSpeed = rawToPercent(raw, min, max)
	return nil
}

// ECReset writes FanSpeedResetValue if the fan requires a reset.
func (f *Fan) ECReset(controller ec.EC, readWriteWords bool) error {
	if !f.Config.ResetRequired {
		return nil
	}
	if readWriteWords {
		if err := controller.WriteWord(f.Config.WriteRegister, uint16(f.Config.FanSpeedResetValue)); err != nil {
			return fmt.Errorf("reset fan speed word: %w", err)
		}
		return nil
	}
	if err := controller.WriteByte(f.Config.WriteRegister, byte(f.Config.FanSpeedResetValue)); err != nil {
		return fmt.Errorf("reset fan speed byte: %w", err)
	}
	return nil
}

// DivergesFromTarget reports whether CurrentSpeed has drifted from
// TargetSpeed by more than the given percent, the signal the service
// loop uses to decide whether to re-apply the full register-write
// program.
func (f *Fan) DivergesFromTarget(percent float64) bool {
	return math.Abs(f.CurrentSpeed-f.TargetSpeed) > percent
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
