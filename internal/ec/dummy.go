package ec

import "sync"

// Dummy is an in-memory 256-byte register space, used by tests and
// selected with --embedded-controller dummy when no real EC should be
// touched.
type Dummy struct {
	mu   sync.Mutex
	regs [256]byte
}

// NewDummy builds a dummy backend with every register zeroed.
func NewDummy() *Dummy {
	return &Dummy{}
}

func (d *Dummy) Open() error  { return nil }
func (d *Dummy) Close() error { return nil }

func (d *Dummy) ReadByte(register int) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[byte(register)], nil
}

func (d *Dummy) WriteByte(register int, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs[byte(register)] = value
	return nil
}

func (d *Dummy) ReadWord(register int) (uint16, error) { return readWord(d, register) }

func (d *Dummy) WriteWord(register int, value uint16) error { return writeWord(d, register, value) }

var _ EC = (*Dummy)(nil)
