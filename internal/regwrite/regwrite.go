// Package regwrite applies a model config's register-write "program":
// an ordered list of register writes applied at initialization, on
// every fan-speed update, and (in reverse sense) at shutdown.
package regwrite

import (
	"fmt"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/ec"
)

// Apply writes value into register under mode, combining it with the
// register's current contents for And/Or modes. Set ignores the
// current value entirely.
func Apply(controller ec.EC, register int, value byte, mode config.RegisterWriteMode) error {
	if mode != config.WriteModeSet {
		current, err := controller.ReadByte(register)
		if err != nil {
			return fmt.Errorf("read register %#x before %s write: %w", register, mode, err)
		}
		switch mode {
		case config.WriteModeAnd:
			value &= current
		case config.WriteModeOr:
			value |= current
		}
	}
	if err := controller.WriteByte(register, value); err != nil {
		return fmt.Errorf("write register %#x: %w", register, err)
	}
	return nil
}

// ApplyAll runs every entry of program against controller.
// initializing true applies every entry; false applies only the ones
// marked OccasionOnWriteFanSpeed, which is what happens on every tick
// after startup.
func ApplyAll(controller ec.EC, program []config.RegisterWriteConfiguration, initializing bool) error {
	for i := range program {
		entry := &program[i]
		if !initializing && entry.WriteOccasion != config.OccasionOnWriteFanSpeed {
			continue
		}
		if err := Apply(controller, entry.Register, byte(entry.Value), entry.WriteMode); err != nil {
			return fmt.Errorf("register write program entry %d (%s): %w", i, entry.Description, err)
		}
	}
	return nil
}

// Reset applies every ResetRequired entry's ResetValue under its
// ResetWriteMode. Every entry is attempted even if an earlier one
// fails; only the last error is returned, matching the teardown
// behavior that absorbs transient EC flakiness while still trying
// every register that asked to be reset.
func Reset(controller ec.EC, program []config.RegisterWriteConfiguration) error {
	var lastErr error
	for i := range program {
		entry := &program[i]
		if !entry.ResetRequired {
			continue
		}
		if err := Apply(controller, entry.Register, byte(entry.ResetValue), entry.ResetWriteMode); err != nil {
			lastErr = fmt.Errorf("reset register write program entry %d (%s): %w", i, entry.Description, err)
		}
	}
	return lastErr
}
