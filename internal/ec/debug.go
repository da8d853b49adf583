package ec

import "github.com/rs/zerolog"

// Debug wraps an EC backend and logs every operation before
// forwarding it, for use under --debug. It implements the same EC
// interface as the backend it wraps.
type Debug struct {
	inner EC
	log   zerolog.Logger
}

// NewDebug wraps inner with a logging decorator.
func NewDebug(inner EC, log zerolog.Logger) *Debug {
	return &Debug{inner: inner, log: log}
}

func (d *Debug) Open() error {
	err := d.inner.Open()
	d.log.Debug().Err(err).Msg("ec: open")
	return err
}

func (d *Debug) Close() error {
	err := d.inner.Close()
	d.log.Debug().Err(err).Msg("ec: close")
	return err
}

func (d *Debug) ReadByte(register int) (byte, error) {
	v, err := d.inner.ReadByte(register)
	d.log.Debug().Int("register", register).Uint8("value", v).Err(err).Msg("ec: read byte")
	return v, err
}

func (d *Debug) WriteByte(register int, value byte) error {
	err := d.inner.WriteByte(register, value)
	d.log.Debug().Int("register", register).Uint8("value", value).Err(err).Msg("ec: write byte")
	return err
}

func (d *Debug) ReadWord(register int) (uint16, error) {
	v, err := d.inner.ReadWord(register)
	d.log.Debug().Int("register", register).Uint16("value", v).Err(err).Msg("ec: read word")
	return v, err
}

func (d *Debug) WriteWord(register int, value uint16) error {
	err := d.inner.WriteWord(register, value)
	d.log.Debug().Int("register", register).Uint16("value", value).Err(err).Msg("ec: write word")
	return err
}

var _ EC = (*Debug)(nil)
