package ec

import (
	"fmt"
	"os"
)

// acpiECDevice is the character device exposed by the kernel's
// acpi_ec driver.
const acpiECDevice = "/dev/ec"

// ACPIEc reads and writes EC registers through /dev/ec.
type ACPIEc struct {
	path string
	f    *os.File
}

// NewACPIEc builds an acpi_ec backend for the default device node.
func NewACPIEc() *ACPIEc {
	return &ACPIEc{path: acpiECDevice}
}

func (e *ACPIEc) Open() error {
	f, err := os.OpenFile(e.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.path, err)
	}
	e.f = f
	return nil
}

func (e *ACPIEc) Close() error {
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}

func (e *ACPIEc) ReadByte(register int) (byte, error) {
	buf := make([]byte, 1)
	if _, err := e.f.ReadAt(buf, int64(register)); err != nil {
		return 0, fmt.Errorf("read register %#x: %w", register, err)
	}
	return buf[0], nil
}

func (e *ACPIEc) WriteByte(register int, value byte) error {
	if _, err := e.f.WriteAt([]byte{value}, int64(register)); err != nil {
		return fmt.Errorf("write register %#x: %w", register, err)
	}
	return nil
}

func (e *ACPIEc) ReadWord(register int) (uint16, error) { return readWord(e, register) }

func (e *ACPIEc) WriteWord(register int, value uint16) error { return writeWord(e, register, value) }

var _ EC = (*ACPIEc)(nil)
