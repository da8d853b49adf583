// Package service wires together the EC, register-write program,
// fans, sensors, and threshold managers into the periodic control
// tick and the state IPC handlers mutate.
package service

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/ec"
	"github.com/nbfc-linux/nbfcd/internal/fan"
	"github.com/nbfc-linux/nbfcd/internal/regwrite"
	"github.com/nbfc-linux/nbfcd/internal/sensors"
)

// DivergenceThreshold is the 15% drift between CurrentSpeed and
// TargetSpeed past which the tick re-applies the full
// register-write program instead of only the OnWriteFanSpeed subset,
// the self-healing heuristic for ECs that lose state across suspend.
const DivergenceThreshold = 15.0

// MaxConsecutiveFailures bounds how many failed ticks in a row the
// service tolerates before giving up and exiting.
const MaxConsecutiveFailures = 100

// RetryDelay is how soon the control loop should retry after a failed
// tick, short enough that a transient sensor or EC hiccup doesn't
// stall the fan response, instead of waiting a full PollInterval.
const RetryDelay = 10 * time.Millisecond

// Service owns every piece of mutable runtime state the tick and the
// IPC handlers touch. Lock serializes all of it, mirroring the single
// Service_Lock mutex the control loop and the IPC handler both hold
// for the full duration of their critical section.
type Service struct {
	Lock sync.Mutex

	Log zerolog.Logger

	ModelConfig       *config.ModelConfig
	ServiceConfig     *config.ServiceConfig
	ServiceConfigPath string

	EC       ec.EC
	ReadOnly bool

	Fans           []*fan.Fan
	TempControls   []*fan.TemperatureControl
	SensorRegistry *sensors.Registry

	consecutiveFailures int
}

// New wires a Service from already-loaded, already-validated configs.
// EC is left nil until a Lifecycle advances it into the ec stage; call
// NewLifecycle(s, ...).Init before the first Tick.
func New(modelCfg *config.ModelConfig, serviceCfg *config.ServiceConfig, serviceCfgPath string, readOnly bool, log zerolog.Logger) *Service {
	s := &Service{
		Log:               log,
		ModelConfig:       modelCfg,
		ServiceConfig:     serviceCfg,
		ServiceConfigPath: serviceCfgPath,
		ReadOnly:          readOnly,
		SensorRegistry:    sensors.New(),
	}

	s.Fans = make([]*fan.Fan, len(modelCfg.FanConfigurations))
	for i := range modelCfg.FanConfigurations {
		s.Fans[i] = fan.New(&modelCfg.FanConfigurations[i])
		if i < len(serviceCfg.TargetFanSpeeds) {
			if target := serviceCfg.TargetFanSpeeds[i]; target == config.ModeAuto {
				s.Fans[i].SetAutoSpeed()
			} else {
				s.Fans[i].SetFixedSpeed(target)
			}
		}
	}

	return s
}

// bindTemperatureSources resolves each fan's FanTemperatureSources
// entry (or, absent one, every discovered sensor averaged) into a
// fan.TemperatureControl, once sensors have been discovered.
func (s *Service) bindTemperatureSources() error {
	bound := make(map[int]config.FanTemperatureSource)
	for _, src := range s.ServiceConfig.FanTemperatureSources {
		bound[src.FanIndex] = src
	}

	s.TempControls = make([]*fan.TemperatureControl, len(s.Fans))
	for i, f := range s.Fans {
		algo := config.AlgorithmAverage
		var sensorNames []string
		if src, ok := bound[i]; ok {
			algo = src.TemperatureAlgorithmType
			sensorNames = src.Sensors
		}

		var resolved []*sensors.Sensor
		if len(sensorNames) == 0 {
			resolved = s.SensorRegistry.All()
		} else {
			for _, name := range sensorNames {
				sensor, err := s.SensorRegistry.Resolve(name)
				if err != nil {
					return fmt.Errorf("fan %q: %w", f.Config.FanDisplayName, err)
				}
				resolved = append(resolved, sensor)
			}
		}

		s.TempControls[i] = fan.NewTemperatureControl(f, resolved, algo, s.ModelConfig.EcPollInterval)
	}
	return nil
}

// Tick runs one iteration of the periodic control loop: read current
// speeds, decide whether the register-write program needs a full
// re-init, read temperatures, re-evaluate thresholds, and flush.
//
// A failed tick is logged and absorbed, the same discipline the IPC
// listener applies to accept failures: only once MaxConsecutiveFailures
// ticks have failed back to back does Tick return an error, telling
// the caller to give up. Use Failing to decide whether to retry sooner
// than the next normal poll interval.
func (s *Service) Tick() error {
	s.Lock.Lock()
	defer s.Lock.Unlock()

	if err := s.tickLocked(); err != nil {
		s.consecutiveFailures++
		s.Log.Warn().Err(err).Int("failures", s.consecutiveFailures).Msg("control tick failed")
		if s.consecutiveFailures >= MaxConsecutiveFailures {
			return fmt.Errorf("%d consecutive tick failures, last: %w", s.consecutiveFailures, err)
		}
		return nil
	}
	s.consecutiveFailures = 0
	return nil
}

// Failing reports whether the most recent Tick absorbed a failure, so
// the caller can retry after RetryDelay instead of the full
// PollInterval.
func (s *Service) Failing() bool {
	s.Lock.Lock()
	defer s.Lock.Unlock()
	return s.consecutiveFailures > 0
}

func (s *Service) tickLocked() error {
	readWriteWords := s.ModelConfig.ReadWriteWords

	for _, f := range s.Fans {
		if err := f.UpdateCurrentSpeed(s.EC, readWriteWords); err != nil {
			return fmt.Errorf("update current speed: %w", err)
		}
	}

	reInit := false
	for _, f := range s.Fans {
		if f.DivergesFromTarget(DivergenceThreshold) {
			reInit = true
			break
		}
	}

	if !s.ReadOnly {
		if err := regwrite.ApplyAll(s.EC, s.ModelConfig.RegisterWriteConfigurations, reInit); err != nil {
			return fmt.Errorf("apply register write program: %w", err)
		}
	}

	for i, tc := range s.TempControls {
		if err := tc.UpdateFanTemperature(); err != nil {
			return fmt.Errorf("update fan temperature: %w", err)
		}
		s.Fans[i].SetTemperature(tc.Temperature(), s.ModelConfig.CriticalTemperature)
		if !s.ReadOnly {
			if err := s.Fans[i].ECFlush(s.EC, readWriteWords, s.ModelConfig.RegisterWriteConfigurations); err != nil {
				return fmt.Errorf("ec flush: %w", err)
			}
		}
	}

	return nil
}

// PollInterval is how long the caller should sleep between ticks.
func (s *Service) PollInterval() time.Duration {
	return time.Duration(s.ModelConfig.EcPollInterval) * time.Millisecond
}

// PID returns the daemon's own process id, reported over IPC so
// clients can confirm which instance they reached.
func (s *Service) PID() int {
	return os.Getpid()
}

// WriteTargetFanSpeeds persists every fan's current RequestedSpeed
// (auto fans write ModeAuto) into the service config file, so a
// restart resumes the speeds an IPC client last requested.
func (s *Service) WriteTargetFanSpeeds() error {
	targets := make([]float64, len(s.Fans))
	for i, f := range s.Fans {
		if f.Mode == fan.Auto {
			targets[i] = config.ModeAuto
		} else {
			targets[i] = f.RequestedSpeed
		}
	}
	s.ServiceConfig.TargetFanSpeeds = targets

	if s.ServiceConfigPath == "" {
		return nil
	}
	if err := config.SaveServiceConfig(s.ServiceConfigPath, s.ServiceConfig); err != nil {
		return fmt.Errorf("write target fan speeds: %w", err)
	}
	return nil
}
