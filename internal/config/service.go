package config

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// FanTemperatureSource binds a fan index to the sensors that feed its
// hysteresis decision and the algorithm used to combine their readings.
type FanTemperatureSource struct {
	FanIndex                 int                      `koanf:"FanIndex" json:"FanIndex"`
	TemperatureAlgorithmType TemperatureAlgorithmType `koanf:"TemperatureAlgorithmType" json:"TemperatureAlgorithmType"`
	Sensors                  []string                 `koanf:"Sensors" json:"Sensors"`
}

// ServiceConfig is the mutable, per-run state read once at startup and
// rewritten whenever the IPC server changes a target speed: the
// selected model config, an optional EC backend override, per-fan
// manual speed overrides, and the fan-to-sensor bindings.
type ServiceConfig struct {
	SelectedConfigId       string                 `koanf:"SelectedConfigId" json:"SelectedConfigId,omitempty"`
	EmbeddedControllerType EmbeddedControllerType `koanf:"EmbeddedControllerType" json:"EmbeddedControllerType,omitempty"`
	TargetFanSpeeds        []float64              `koanf:"TargetFanSpeeds" json:"TargetFanSpeeds,omitempty"`
	FanTemperatureSources  []FanTemperatureSource `koanf:"FanTemperatureSources" json:"FanTemperatureSources,omitempty"`
}

// ModeAuto is the TargetFanSpeeds sentinel meaning "let the threshold
// manager drive this fan".
const ModeAuto = -1.0

// Normalize clamps out-of-range TargetFanSpeeds entries: values above
// 100 are capped, negative values other than ModeAuto are reset to
// ModeAuto. Returns the warnings it generated.
func (c *ServiceConfig) Normalize() []string {
	var warnings []string
	for i, f := range c.TargetFanSpeeds {
		switch {
		case f > 100.0:
			warnings = append(warnings, fmt.Sprintf("TargetFanSpeeds[%d]: value cannot be greater than 100.0", i))
			c.TargetFanSpeeds[i] = 100.0
		case f < 0.0 && f != ModeAuto:
			warnings = append(warnings, fmt.Sprintf("TargetFanSpeeds[%d]: use -1 for selecting auto mode", i))
			c.TargetFanSpeeds[i] = ModeAuto
		}
	}
	return warnings
}

// Validate checks fan temperature source bindings against the number
// of fans the selected model defines.
func (c *ServiceConfig) Validate(fanCount int) error {
	for i, ftsc := range c.FanTemperatureSources {
		if ftsc.FanIndex < 0 || ftsc.FanIndex >= fanCount {
			return fmt.Errorf("FanTemperatureSources[%d]: FanIndex %d out of range for %d configured fans", i, ftsc.FanIndex, fanCount)
		}
		if !ftsc.TemperatureAlgorithmType.Valid() {
			return fmt.Errorf("FanTemperatureSources[%d]: invalid TemperatureAlgorithmType %q", i, ftsc.TemperatureAlgorithmType)
		}
		if len(ftsc.Sensors) == 0 {
			return fmt.Errorf("FanTemperatureSources[%d]: Sensors must not be empty", i)
		}
	}
	return nil
}

// WriteAtomic replaces the file at path with data (the already
// serialized config, see SaveServiceConfig) via a temp file plus
// unix.Renameat2, so a crash mid-write never
// leaves a truncated or partially-written service config behind.
func (c *ServiceConfig) WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".service.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp service config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp service config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp service config: %w", err)
	}
	if err := os.Chmod(tmpName, 0664); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp service config: %w", err)
	}
	if err := unix.Renameat2(unix.AT_FDCWD, tmpName, unix.AT_FDCWD, path, 0); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp service config into place: %w", err)
	}
	return nil
}
