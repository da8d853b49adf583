// Package threshold implements the per-fan hysteresis state machine
// that maps a filtered temperature to a target fan-speed percentage.
package threshold

import (
	"sort"

	"github.com/nbfc-linux/nbfcd/internal/config"
)

// Manager tracks one fan's selected-row hysteresis state across
// ticks. The zero value is ready to use, with no row selected yet.
type Manager struct {
	rows []config.TemperatureThreshold

	current    *int
	isCritical bool
}

// New builds a Manager over rows, sorted ascending by UpThreshold so
// index arithmetic ("largest index with UpThreshold <= T") is a
// straightforward scan.
func New(rows []config.TemperatureThreshold) *Manager {
	sorted := make([]config.TemperatureThreshold, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpThreshold < sorted[j].UpThreshold })
	return &Manager{rows: sorted}
}

// largestUpLE returns the largest index whose UpThreshold <= t, or -1
// if t is below every row's UpThreshold.
func (m *Manager) largestUpLE(t float64) int {
	best := -1
	for i, row := range m.rows {
		if row.UpThreshold <= t {
			best = i
		}
	}
	return best
}

// largestDownLE returns the largest index whose DownThreshold <= t, or
// -1 if none.
func (m *Manager) largestDownLE(t float64) int {
	best := -1
	for i, row := range m.rows {
		if row.DownThreshold <= t {
			best = i
		}
	}
	return best
}

func (m *Manager) selectIndex(t float64) int {
	if m.current == nil {
		i := m.largestUpLE(t)
		if i < 0 {
			i = 0
		}
		return i
	}

	i := *m.current
	if i+1 < len(m.rows) && t >= m.rows[i+1].UpThreshold {
		advanced := m.largestUpLE(t)
		if advanced < 0 {
			advanced = 0
		}
		return advanced
	}
	if t < m.rows[i].DownThreshold {
		descended := m.largestDownLE(t)
		if descended < 0 {
			descended = 0
		}
		return descended
	}
	return i
}

// Update evaluates temperature t against the threshold table and
// returns the target fan-speed percentage plus whether the fan is now
// in the critical state. At or above criticalTemp it bypasses the
// table entirely, forcing 100% and latching isCritical; the latch is
// only cleared once normal table evaluation would pick a row below
// 100%.
func (m *Manager) Update(t, criticalTemp float64) (speed float64, isCritical bool) {
	if t >= criticalTemp {
		m.isCritical = true
		return 100, true
	}

	if len(m.rows) == 0 {
		return 0, m.isCritical
	}

	i := m.selectIndex(t)
	m.current = &i
	speed = m.rows[i].FanSpeed

	if speed < 100 {
		m.isCritical = false
	}
	return speed, m.isCritical
}

// Reset discards hysteresis state, forcing the next Update to select
// fresh from scratch.
func (m *Manager) Reset() {
	m.current = nil
	m.isCritical = false
}
