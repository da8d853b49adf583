// Package sensors enumerates Linux hwmon temperature inputs and
// resolves configured sensor names to live readings.
package sensors

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var tempInputRe = regexp.MustCompile(`^temp(\d+)_input$`)

// Sensor is one discovered temperature input, holding an open file
// handle so a tick's read is a pread rather than an open+read+close.
type Sensor struct {
	ChipName string
	Label    string
	File     string

	f *os.File
}

// Registry resolves a configured sensor name (chip name, temp label,
// or exact sysfs path) to a Sensor and reads its value in Celsius.
type Registry struct {
	basePath string
	sensors  []*Sensor
}

// New builds an empty registry rooted at the standard hwmon path.
func New() *Registry {
	return &Registry{basePath: "/sys/class/hwmon"}
}

// NewWithBasePath builds a registry rooted at a non-standard path, for
// tests that fake up a hwmon tree.
func NewWithBasePath(basePath string) *Registry {
	return &Registry{basePath: basePath}
}

// Discover walks basePath/hwmon*/temp*_input, opening a handle for
// every temperature input it finds and recording the chip name (the
// sibling "name" file) and the input's own "label" file if present.
func (r *Registry) Discover() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return fmt.Errorf("read hwmon directory %s: %w", r.basePath, err)
	}

	var found []*Sensor
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "hwmon") {
			continue
		}
		dir := filepath.Join(r.basePath, entry.Name())

		chipName := readTrimmed(filepath.Join(dir, "name"))

		inputs, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, input := range inputs {
			m := tempInputRe.FindStringSubmatch(input.Name())
			if m == nil {
				continue
			}
			path := filepath.Join(dir, input.Name())
			label := readTrimmed(filepath.Join(dir, "temp"+m[1]+"_label"))

			f, err := os.Open(path)
			if err != nil {
				continue
			}
			found = append(found, &Sensor{
				ChipName: chipName,
				Label:    label,
				File:     path,
				f:        f,
			})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].File < found[j].File })
	r.sensors = found
	return nil
}

// Close releases every open sensor file handle.
func (r *Registry) Close() {
	for _, s := range r.sensors {
		if s.f != nil {
			_ = s.f.Close()
		}
	}
}

// All returns every sensor the last Discover call found.
func (r *Registry) All() []*Sensor {
	return r.sensors
}

// Resolve finds the sensor matching name by chip name, temp label, or
// exact file path, in that order.
func (r *Registry) Resolve(name string) (*Sensor, error) {
	for _, s := range r.sensors {
		if s.ChipName == name {
			return s, nil
		}
	}
	for _, s := range r.sensors {
		if s.Label == name {
			return s, nil
		}
	}
	for _, s := range r.sensors {
		if s.File == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("sensor %q not found", name)
}

// Read returns the sensor's current reading in Celsius. The sysfs
// file holds millidegrees.
func (s *Sensor) Read() (float64, error) {
	if s.f == nil {
		return 0, fmt.Errorf("sensor %s: no open handle", s.File)
	}
	buf := make([]byte, 32)
	n, err := s.f.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return 0, fmt.Errorf("read sensor %s: %w", s.File, err)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(buf[:n])), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sensor %s: %w", s.File, err)
	}
	return float64(milli) / 1000.0, nil
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
