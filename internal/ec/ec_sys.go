package ec

import (
	"fmt"
	"os"
	"strings"
)

// ecSysIOFile is the debugfs file exposed by the ec_sys kernel module
// once loaded with its write_support parameter enabled.
const ecSysIOFile = "/sys/kernel/debug/ec/ec0/io"

const ecSysWriteSupportParam = "/sys/module/ec_sys/parameters/write_support"

// ECSys reads and writes EC registers through ec_sys's debugfs file,
// keeping the file open across calls instead of reopening it per
// access, since the service loop calls ReadByte/WriteByte every tick.
type ECSys struct {
	path string
	f    *os.File
}

// NewECSys builds an ec_sys backend for the default debugfs path.
func NewECSys() *ECSys {
	return &ECSys{path: ecSysIOFile}
}

// ecSysWriteSupportEnabled reports whether the loaded ec_sys module
// was given write_support=1. Without it the debugfs file opens fine
// but every WriteByte silently no-ops, so callers should skip this
// backend entirely rather than discover that at the first write.
func ecSysWriteSupportEnabled() bool {
	content, err := os.ReadFile(ecSysWriteSupportParam)
	if err != nil {
		return false
	}
	val := strings.TrimSpace(string(content))
	return val == "Y" || val == "1"
}

func (e *ECSys) Open() error {
	if !ecSysWriteSupportEnabled() {
		return fmt.Errorf("ec_sys module not loaded with write_support=1")
	}
	f, err := os.OpenFile(e.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.path, err)
	}
	e.f = f
	return nil
}

func (e *ECSys) Close() error {
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}

func (e *ECSys) ReadByte(register int) (byte, error) {
	buf := make([]byte, 1)
	if _, err := e.f.ReadAt(buf, int64(register)); err != nil {
		return 0, fmt.Errorf("read register %#x: %w", register, err)
	}
	return buf[0], nil
}

func (e *ECSys) WriteByte(register int, value byte) error {
	if _, err := e.f.WriteAt([]byte{value}, int64(register)); err != nil {
		return fmt.Errorf("write register %#x: %w", register, err)
	}
	return nil
}

func (e *ECSys) ReadWord(register int) (uint16, error) { return readWord(e, register) }

func (e *ECSys) WriteWord(register int, value uint16) error { return writeWord(e, register, value) }

var _ EC = (*ECSys)(nil)
