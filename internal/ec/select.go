package ec

import "fmt"

// FindWorking probes variants in order {ec_sys, acpi_ec, dev_port} and
// returns the first whose Open succeeds. The caller owns the returned
// EC and must Close it.
func FindWorking() (EC, error) {
	candidates := []EC{NewECSys(), NewACPIEc(), NewDevPort()}

	var lastErr error
	for _, c := range candidates {
		if err := c.Open(); err != nil {
			lastErr = err
			continue
		}
		return c, nil
	}
	return nil, fmt.Errorf("no working EC backend found: %w", lastErr)
}

// ByType opens a specific backend by its configured type, used when a
// ServiceConfig pins EmbeddedControllerType instead of auto-selecting.
func ByType(t string) (EC, error) {
	var backend EC
	switch t {
	case "ec_sys":
		backend = NewECSys()
	case "acpi_ec":
		backend = NewACPIEc()
	case "dev_port":
		backend = NewDevPort()
	case "dummy":
		backend = NewDummy()
	default:
		return nil, fmt.Errorf("unknown EC backend %q", t)
	}
	if err := backend.Open(); err != nil {
		return nil, fmt.Errorf("open %s backend: %w", t, err)
	}
	return backend, nil
}
