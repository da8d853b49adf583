package ec

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	devPortPath = "/dev/port"

	ecDataPort    = 0x62
	ecCommandPort = 0x66

	ecCmdRead  = 0x80
	ecCmdWrite = 0x81

	ecStatusOBF = 1 << 0 // output buffer full: a byte is ready to be read
	ecStatusIBF = 1 << 1 // input buffer full: the EC hasn't consumed the last byte yet

	// ecPollAttempts bounds the OBF/IBF busy-poll loop so a wedged EC
	// surfaces as an error instead of hanging the service loop forever.
	ecPollAttempts = 10000
)

// DevPort reads and writes EC registers by speaking the EC command
// protocol over /dev/port's positional I/O ports 0x62 (data) and 0x66
// (command/status), the same handshake a kernel acpi_ec driver
// performs internally. Pread/Pwrite are used instead of seek+read so
// concurrent access to the shared /dev/port file descriptor can never
// race on the file offset.
type DevPort struct {
	f *os.File
}

// NewDevPort builds a dev_port backend.
func NewDevPort() *DevPort {
	return &DevPort{}
}

func (d *DevPort) Open() error {
	f, err := os.OpenFile(devPortPath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", devPortPath, err)
	}
	d.f = f
	return nil
}

func (d *DevPort) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func (d *DevPort) readPort(port int64) (byte, error) {
	buf := make([]byte, 1)
	if _, err := unix.Pread(int(d.f.Fd()), buf, port); err != nil {
		return 0, fmt.Errorf("pread port %#x: %w", port, err)
	}
	return buf[0], nil
}

func (d *DevPort) writePort(port int64, value byte) error {
	if _, err := unix.Pwrite(int(d.f.Fd()), []byte{value}, port); err != nil {
		return fmt.Errorf("pwrite port %#x: %w", port, err)
	}
	return nil
}

func (d *DevPort) waitStatus(mask byte, want byte) error {
	for i := 0; i < ecPollAttempts; i++ {
		status, err := d.readPort(ecCommandPort)
		if err != nil {
			return err
		}
		if status&mask == want {
			return nil
		}
	}
	return fmt.Errorf("timed out waiting for EC status bit %#x == %#x", mask, want)
}

func (d *DevPort) waitInputEmpty() error { return d.waitStatus(ecStatusIBF, 0) }

func (d *DevPort) waitOutputFull() error { return d.waitStatus(ecStatusOBF, ecStatusOBF) }

func (d *DevPort) ReadByte(register int) (byte, error) {
	if err := d.waitInputEmpty(); err != nil {
		return 0, fmt.Errorf("read register %#x: %w", register, err)
	}
	if err := d.writePort(ecCommandPort, ecCmdRead); err != nil {
		return 0, fmt.Errorf("read register %#x: %w", register, err)
	}

	if err := d.waitInputEmpty(); err != nil {
		return 0, fmt.Errorf("read register %#x: %w", register, err)
	}
	if err := d.writePort(ecDataPort, byte(register)); err != nil {
		return 0, fmt.Errorf("read register %#x: %w", register, err)
	}

	if err := d.waitOutputFull(); err != nil {
		return 0, fmt.Errorf("read register %#x: %w", register, err)
	}
	return d.readPort(ecDataPort)
}

func (d *DevPort) WriteByte(register int, value byte) error {
	if err := d.waitInputEmpty(); err != nil {
		return fmt.Errorf("write register %#x: %w", register, err)
	}
	if err := d.writePort(ecCommandPort, ecCmdWrite); err != nil {
		return fmt.Errorf("write register %#x: %w", register, err)
	}

	if err := d.waitInputEmpty(); err != nil {
		return fmt.Errorf("write register %#x: %w", register, err)
	}
	if err := d.writePort(ecDataPort, byte(register)); err != nil {
		return fmt.Errorf("write register %#x: %w", register, err)
	}

	if err := d.waitInputEmpty(); err != nil {
		return fmt.Errorf("write register %#x: %w", register, err)
	}
	return d.writePort(ecDataPort, value)
}

func (d *DevPort) ReadWord(register int) (uint16, error) { return readWord(d, register) }

func (d *DevPort) WriteWord(register int, value uint16) error { return writeWord(d, register, value) }

var _ EC = (*DevPort)(nil)
