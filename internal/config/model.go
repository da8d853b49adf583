// Package config defines the on-disk schema for model and service
// configuration and the loading/validation/persistence logic for both.
//
// Model configs are loaded once at startup with koanf, defaults merged
// with the on-disk JSON file by layering a structs.Provider default
// underneath a file.Provider overlay; service configs are read from
// their JSON file with koanf too, without a defaults layer, and are
// re-written to disk whenever the IPC server changes a target speed.
package config

import (
	"fmt"

	"github.com/nbfc-linux/nbfcd/internal/defaults"
)

// RegisterWriteMode selects how a register write combines with the
// register's existing value.
type RegisterWriteMode string

const (
	WriteModeSet RegisterWriteMode = "Set"
	WriteModeAnd RegisterWriteMode = "And"
	WriteModeOr  RegisterWriteMode = "Or"
)

func (m RegisterWriteMode) Valid() bool {
	switch m {
	case WriteModeSet, WriteModeAnd, WriteModeOr:
		return true
	}
	return false
}

// RegisterWriteOccasion selects when a RegisterWriteConfiguration entry
// is re-applied during the service loop.
type RegisterWriteOccasion string

const (
	OccasionOnInitialization RegisterWriteOccasion = "OnInitialization"
	OccasionOnWriteFanSpeed  RegisterWriteOccasion = "OnWriteFanSpeed"
)

func (o RegisterWriteOccasion) Valid() bool {
	switch o {
	case OccasionOnInitialization, OccasionOnWriteFanSpeed:
		return true
	}
	return false
}

// OverrideTargetOperation selects whether a FanSpeedPercentageOverride
// applies to EC reads, writes, or both.
type OverrideTargetOperation string

const (
	OverrideRead      OverrideTargetOperation = "Read"
	OverrideWrite     OverrideTargetOperation = "Write"
	OverrideReadWrite OverrideTargetOperation = "ReadWrite"
)

func (o OverrideTargetOperation) Valid() bool {
	switch o {
	case OverrideRead, OverrideWrite, OverrideReadWrite:
		return true
	}
	return false
}

// Readable reports whether this override applies when interpreting a
// raw EC readback into a percentage.
func (o OverrideTargetOperation) Readable() bool {
	return o == OverrideRead || o == OverrideReadWrite
}

// Writable reports whether this override applies when substituting a
// raw value for an EC write.
func (o OverrideTargetOperation) Writable() bool {
	return o == OverrideWrite || o == OverrideReadWrite
}

// EmbeddedControllerType names one of the four EC backends.
type EmbeddedControllerType string

const (
	ECSysLinux     EmbeddedControllerType = "ec_sys"
	ECSysLinuxACPI EmbeddedControllerType = "acpi_ec"
	ECDevPort      EmbeddedControllerType = "dev_port"
	ECDummy        EmbeddedControllerType = "dummy"
)

// ParseEmbeddedControllerType accepts both the current spellings and
// the legacy aliases used by older nbfc-linux model configs.
func ParseEmbeddedControllerType(s string) (EmbeddedControllerType, error) {
	switch s {
	case "ec_sys", "ec_sys_linux":
		return ECSysLinux, nil
	case "acpi_ec", "ec_acpi":
		return ECSysLinuxACPI, nil
	case "dev_port", "ec_linux":
		return ECDevPort, nil
	case "dummy":
		return ECDummy, nil
	}
	return "", fmt.Errorf("invalid value for EmbeddedControllerType: %q", s)
}

// TemperatureAlgorithmType selects how multiple sensor readings feeding
// one fan are aggregated into a single value.
type TemperatureAlgorithmType string

const (
	AlgorithmAverage TemperatureAlgorithmType = "Average"
	AlgorithmMin     TemperatureAlgorithmType = "Min"
	AlgorithmMax     TemperatureAlgorithmType = "Max"
)

func (t TemperatureAlgorithmType) Valid() bool {
	switch t {
	case AlgorithmAverage, AlgorithmMin, AlgorithmMax:
		return true
	}
	return false
}

// TemperatureThreshold is one row of a fan's hysteresis table.
type TemperatureThreshold struct {
	UpThreshold   float64 `koanf:"UpThreshold" json:"UpThreshold"`
	DownThreshold float64 `koanf:"DownThreshold" json:"DownThreshold"`
	FanSpeed      float64 `koanf:"FanSpeed" json:"FanSpeed"`
}

// FanSpeedPercentageOverride substitutes a fixed raw EC value for a
// specific fan-speed percentage, used for idle-off tricks.
type FanSpeedPercentageOverride struct {
	FanSpeedPercentage float64                 `koanf:"FanSpeedPercentage" json:"FanSpeedPercentage"`
	TargetValue        int                     `koanf:"TargetValue" json:"TargetValue"`
	TargetOperation    OverrideTargetOperation `koanf:"TargetOperation" json:"TargetOperation"`
}

// RegisterWriteConfiguration is one entry of the register-write program
// (internal/regwrite).
type RegisterWriteConfiguration struct {
	Register       int                   `koanf:"Register" json:"Register"`
	Value          int                   `koanf:"Value" json:"Value"`
	WriteMode      RegisterWriteMode     `koanf:"WriteMode" json:"WriteMode"`
	WriteOccasion  RegisterWriteOccasion `koanf:"WriteOccasion" json:"WriteOccasion"`
	ResetRequired  bool                  `koanf:"ResetRequired" json:"ResetRequired"`
	ResetValue     int                   `koanf:"ResetValue" json:"ResetValue"`
	ResetWriteMode RegisterWriteMode     `koanf:"ResetWriteMode" json:"ResetWriteMode"`
	Description    string                `koanf:"Description" json:"Description"`
}

// FanConfiguration describes one physical fan controlled through the EC.
type FanConfiguration struct {
	FanDisplayName              string                       `koanf:"FanDisplayName" json:"FanDisplayName"`
	ReadRegister                int                          `koanf:"ReadRegister" json:"ReadRegister"`
	WriteRegister               int                          `koanf:"WriteRegister" json:"WriteRegister"`
	MinSpeedValue               int                          `koanf:"MinSpeedValue" json:"MinSpeedValue"`
	MaxSpeedValue               int                          `koanf:"MaxSpeedValue" json:"MaxSpeedValue"`
	IndependentReadMinMaxValues bool                         `koanf:"IndependentReadMinMaxValues" json:"IndependentReadMinMaxValues"`
	MinSpeedValueRead           int                          `koanf:"MinSpeedValueRead" json:"MinSpeedValueRead"`
	MaxSpeedValueRead           int                          `koanf:"MaxSpeedValueRead" json:"MaxSpeedValueRead"`
	ResetRequired               bool                         `koanf:"ResetRequired" json:"ResetRequired"`
	FanSpeedResetValue          int                          `koanf:"FanSpeedResetValue" json:"FanSpeedResetValue"`
	TemperatureThresholds       []TemperatureThreshold       `koanf:"TemperatureThresholds" json:"TemperatureThresholds"`
	FanSpeedPercentageOverrides []FanSpeedPercentageOverride `koanf:"FanSpeedPercentageOverrides" json:"FanSpeedPercentageOverrides"`
}

// ModelConfig is the immutable, per-notebook-model configuration loaded
// once at startup.
type ModelConfig struct {
	NotebookModel                        string                       `koanf:"NotebookModel" json:"NotebookModel"`
	Author                               string                       `koanf:"Author" json:"Author"`
	EcPollInterval                       int                          `koanf:"EcPollInterval" json:"EcPollInterval"`
	CriticalTemperature                  float64                      `koanf:"CriticalTemperature" json:"CriticalTemperature"`
	ReadWriteWords                       bool                         `koanf:"ReadWriteWords" json:"ReadWriteWords"`
	LegacyTemperatureThresholdsBehaviour bool                         `koanf:"LegacyTemperatureThresholdsBehaviour" json:"LegacyTemperatureThresholdsBehaviour"`
	FanConfigurations                    []FanConfiguration           `koanf:"FanConfigurations" json:"FanConfigurations"`
	RegisterWriteConfigurations          []RegisterWriteConfiguration `koanf:"RegisterWriteConfigurations" json:"RegisterWriteConfigurations"`
}

// Validate checks a freshly-loaded ModelConfig for internal consistency
// and fills defaulted fields (FanDisplayName, TemperatureThresholds).
// Errors name the offending path, e.g.
// "FanConfigurations[1]: TemperatureThresholds[3]: UpThreshold cannot be less than DownThreshold".
func (m *ModelConfig) Validate() error {
	if m.EcPollInterval <= 0 {
		return fmt.Errorf("EcPollInterval: must be positive")
	}
	if len(m.FanConfigurations) == 0 {
		return fmt.Errorf("FanConfigurations: must not be empty")
	}

	defaultTable := defaults.For(m.LegacyTemperatureThresholdsBehaviour)

	for i := range m.FanConfigurations {
		fc := &m.FanConfigurations[i]
		path := fmt.Sprintf("FanConfigurations[%d]", i)

		if fc.FanDisplayName == "" {
			fc.FanDisplayName = fmt.Sprintf("Fan #%d", i)
		}

		if fc.MinSpeedValue == fc.MaxSpeedValue {
			return fmt.Errorf("%s: MinSpeedValue and MaxSpeedValue cannot be the same", path)
		}

		if fc.IndependentReadMinMaxValues && fc.MinSpeedValueRead == fc.MaxSpeedValueRead {
			return fmt.Errorf("%s: MinSpeedValueRead and MaxSpeedValueRead cannot be the same", path)
		}

		if len(fc.TemperatureThresholds) == 0 {
			for _, t := range defaultTable {
				fc.TemperatureThresholds = append(fc.TemperatureThresholds, TemperatureThreshold{
					UpThreshold:   t.UpThreshold,
					DownThreshold: t.DownThreshold,
					FanSpeed:      t.FanSpeed,
				})
			}
		}

		seenUp := make(map[float64]bool, len(fc.TemperatureThresholds))
		for j := range fc.TemperatureThresholds {
			t := &fc.TemperatureThresholds[j]
			tpath := fmt.Sprintf("%s: TemperatureThresholds[%d]", path, j)

			if t.UpThreshold < t.DownThreshold {
				return fmt.Errorf("%s: UpThreshold cannot be less than DownThreshold", tpath)
			}
			if seenUp[t.UpThreshold] {
				return fmt.Errorf("%s: UpThreshold must be unique within a fan", tpath)
			}
			seenUp[t.UpThreshold] = true
		}

		for j := range fc.FanSpeedPercentageOverrides {
			o := &fc.FanSpeedPercentageOverrides[j]
			opath := fmt.Sprintf("%s: FanSpeedPercentageOverrides[%d]", path, j)
			if !o.TargetOperation.Valid() {
				return fmt.Errorf("%s: invalid TargetOperation %q", opath, o.TargetOperation)
			}
		}
	}

	for i := range m.RegisterWriteConfigurations {
		r := &m.RegisterWriteConfigurations[i]
		rpath := fmt.Sprintf("RegisterWriteConfigurations[%d]", i)
		if !r.WriteMode.Valid() {
			return fmt.Errorf("%s: invalid WriteMode %q", rpath, r.WriteMode)
		}
		if !r.WriteOccasion.Valid() {
			return fmt.Errorf("%s: invalid WriteOccasion %q", rpath, r.WriteOccasion)
		}
		if r.ResetRequired && !r.ResetWriteMode.Valid() {
			return fmt.Errorf("%s: ResetRequired set but ResetWriteMode invalid %q", rpath, r.ResetWriteMode)
		}
	}

	return nil
}

// Warnings returns non-fatal validation warnings: a threshold table
// missing a 0% or 100% row, or a row whose UpThreshold exceeds
// CriticalTemperature.
func (m *ModelConfig) Warnings() []string {
	var warnings []string
	for i, fc := range m.FanConfigurations {
		has0, has100 := false, false
		for _, t := range fc.TemperatureThresholds {
			if t.FanSpeed == 0 {
				has0 = true
			}
			if t.FanSpeed == 100 {
				has100 = true
			}
			if t.UpThreshold > m.CriticalTemperature {
				warnings = append(warnings, fmt.Sprintf(
					"FanConfigurations[%d]: TemperatureThresholds row with UpThreshold=%.1f exceeds CriticalTemperature=%.1f",
					i, t.UpThreshold, m.CriticalTemperature))
			}
		}
		if !has0 {
			warnings = append(warnings, fmt.Sprintf("FanConfigurations[%d]: TemperatureThresholds has no 0%% row", i))
		}
		if !has100 {
			warnings = append(warnings, fmt.Sprintf("FanConfigurations[%d]: TemperatureThresholds has no 100%% row", i))
		}
	}
	return warnings
}
