package service

import (
	"context"
	"fmt"

	"github.com/qmuntal/stateless"

	"github.com/nbfc-linux/nbfcd/internal/ec"
	"github.com/nbfc-linux/nbfcd/internal/regwrite"
)

// Lifecycle states mirror the staged initialization enum the service
// walks through on startup and unwinds on shutdown, in order:
// service config, model config, fans, EC, sensors, filters.
const (
	stateNone          = "none"
	stateServiceConfig = "service_config"
	stateModelConfig   = "model_config"
	stateFans          = "fans"
	stateEC            = "ec"
	stateSensors       = "sensors"
	stateFilters       = "filters"
)

const (
	triggerAdvance  = "advance"
	triggerTeardown = "teardown"
)

// Lifecycle drives Service through its staged init/teardown using a
// stateless.StateMachine so a failure partway through only releases
// the resources already acquired, in reverse order, instead of
// requiring each caller to hand-roll that unwind.
type Lifecycle struct {
	svc     *Service
	machine *stateless.StateMachine

	ecFactory func() (ec.EC, error)
}

// NewLifecycle builds a Lifecycle for svc. ecFactory opens the EC
// backend (auto-selected or pinned by ServiceConfig) when the
// machine reaches the EC stage.
func NewLifecycle(svc *Service, ecFactory func() (ec.EC, error)) *Lifecycle {
	l := &Lifecycle{svc: svc, ecFactory: ecFactory}
	l.configure()
	return l
}

func (l *Lifecycle) configure() {
	m := stateless.NewStateMachine(stateNone)
	l.machine = m

	m.Configure(stateNone).
		Permit(triggerAdvance, stateServiceConfig)

	m.Configure(stateServiceConfig).
		Permit(triggerAdvance, stateModelConfig).
		Permit(triggerTeardown, stateNone)

	m.Configure(stateModelConfig).
		Permit(triggerAdvance, stateFans).
		Permit(triggerTeardown, stateNone)

	m.Configure(stateFans).
		Permit(triggerAdvance, stateEC).
		Permit(triggerTeardown, stateNone)

	m.Configure(stateEC).
		OnEntry(func(ctx context.Context, _ ...any) error {
			controller, err := l.ecFactory()
			if err != nil {
				return fmt.Errorf("open EC backend: %w", err)
			}
			l.svc.EC = controller
			return nil
		}).
		OnExit(func(ctx context.Context, _ ...any) error {
			if l.svc.EC == nil {
				return nil
			}
			return l.svc.EC.Close()
		}).
		Permit(triggerAdvance, stateSensors).
		Permit(triggerTeardown, stateNone)

	m.Configure(stateSensors).
		SubstateOf(stateEC).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if err := l.svc.SensorRegistry.Discover(); err != nil {
				return fmt.Errorf("discover sensors: %w", err)
			}
			return nil
		}).
		OnExit(func(ctx context.Context, _ ...any) error {
			l.svc.SensorRegistry.Close()
			return nil
		}).
		Permit(triggerAdvance, stateFilters).
		Permit(triggerTeardown, stateNone)

	m.Configure(stateFilters).
		SubstateOf(stateSensors).
		OnEntry(func(ctx context.Context, _ ...any) error {
			return l.svc.bindTemperatureSources()
		}).
		Permit(triggerTeardown, stateNone)
}

// Init walks the machine from none to filters, applying the
// OnInitialization register writes once every stage has succeeded. On
// any failure it tears down whatever was already acquired and returns
// the original error.
func (l *Lifecycle) Init(ctx context.Context) error {
	for l.machine.MustState() != stateFilters {
		if err := l.machine.FireCtx(ctx, triggerAdvance); err != nil {
			stage := l.machine.MustState()
			if tErr := l.Teardown(ctx); tErr != nil {
				l.svc.Log.Warn().Err(tErr).Msg("teardown after failed init also failed")
			}
			return fmt.Errorf("service init failed at stage %v: %w", stage, err)
		}
	}

	if !l.svc.ReadOnly {
		if err := applyInitProgram(l.svc); err != nil {
			if tErr := l.Teardown(ctx); tErr != nil {
				l.svc.Log.Warn().Err(tErr).Msg("teardown after failed init also failed")
			}
			return fmt.Errorf("apply initialization register writes: %w", err)
		}
	}
	return nil
}

// Teardown fires the reset program (three tries, last error kept) and
// then unwinds the state machine back to none, releasing resources in
// reverse acquisition order via each state's OnExit.
func (l *Lifecycle) Teardown(ctx context.Context) error {
	var lastErr error
	if l.svc.EC != nil && !l.svc.ReadOnly {
		for tries := 0; tries < 3; tries++ {
			if err := resetAll(l.svc); err != nil {
				lastErr = err
			}
		}
	}

	if l.machine.MustState() != stateNone {
		if err := l.machine.FireCtx(ctx, triggerTeardown); err != nil {
			if lastErr == nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// State returns the lifecycle's current stage, for logging.
func (l *Lifecycle) State() string {
	return fmt.Sprintf("%v", l.machine.MustState())
}

// applyInitProgram applies every RegisterWriteConfigurations entry
// once, the OnInitialization pass that happens before the first tick.
func applyInitProgram(s *Service) error {
	return regwrite.ApplyAll(s.EC, s.ModelConfig.RegisterWriteConfigurations, true)
}

// resetAll applies every ResetRequired register-write entry and every
// fan's ECReset, keeping only the last error so a single flaky
// register doesn't stop the rest of the reset from being attempted.
func resetAll(s *Service) error {
	var lastErr error
	if err := regwrite.Reset(s.EC, s.ModelConfig.RegisterWriteConfigurations); err != nil {
		lastErr = err
	}
	for _, f := range s.Fans {
		if err := f.ECReset(s.EC, s.ModelConfig.ReadWriteWords); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
