// internal/reader/reader.go
package reader

import (
	"errors"
	"fmt"

	"github.com/tamzrod/modbus-telemetry/internal/gateway"
)

// ErrConventionUnsupported marks a calling convention a transport does not
// accept. The reader swallows it and probes the next convention; every other
// error is a genuine read failure and surfaces immediately.
var ErrConventionUnsupported = errors.New("reader: calling convention not supported by transport")

// ReadError reports a failed register read.
type ReadError struct {
	Host         string
	Port         int
	Unit         uint8
	Address      uint16
	FunctionCode uint8
	Err          error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s:%d unit=%d addr=%d fc=%d: %v",
		e.Host, e.Port, e.Unit, e.Address, e.FunctionCode, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Transports grew several shapes for passing the unit/slave id. Exactly one
// of these is accepted by a given transport instance.
type slaveConvention interface {
	ReadRegistersSlave(fc uint8, addr, qty uint16, slave uint8) ([]uint16, error)
}

type unitConvention interface {
	ReadRegistersUnit(fc uint8, addr, qty uint16, unit uint8) ([]uint16, error)
}

// perCallConvention passes the unit id trailing every read call.
type perCallConvention interface {
	ReadHoldingRegisters(addr, qty uint16, unit uint8) ([]uint16, error)
	ReadInputRegisters(addr, qty uint16, unit uint8) ([]uint16, error)
}

// statefulConvention sets the unit id on the transport, then reads without
// an argument (goburrow-style SlaveId field).
type statefulConvention interface {
	SetUnit(unit uint8)
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error)
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)
}

type strategy struct {
	name string
	read func(conn gateway.Conn, unit uint8, fc uint8, addr, qty uint16) ([]uint16, error)
}

// strategies is the fixed probe order.
var strategies = []strategy{
	{"slave", func(conn gateway.Conn, unit, fc uint8, addr, qty uint16) ([]uint16, error) {
		c, ok := conn.(slaveConvention)
		if !ok {
			return nil, ErrConventionUnsupported
		}
		return c.ReadRegistersSlave(fc, addr, qty, unit)
	}},
	{"unit", func(conn gateway.Conn, unit, fc uint8, addr, qty uint16) ([]uint16, error) {
		c, ok := conn.(unitConvention)
		if !ok {
			return nil, ErrConventionUnsupported
		}
		return c.ReadRegistersUnit(fc, addr, qty, unit)
	}},
	{"per-call", func(conn gateway.Conn, unit, fc uint8, addr, qty uint16) ([]uint16, error) {
		c, ok := conn.(perCallConvention)
		if !ok {
			return nil, ErrConventionUnsupported
		}
		if fc == 4 {
			return c.ReadInputRegisters(addr, qty, unit)
		}
		return c.ReadHoldingRegisters(addr, qty, unit)
	}},
	{"stateful", func(conn gateway.Conn, unit, fc uint8, addr, qty uint16) ([]uint16, error) {
		c, ok := conn.(statefulConvention)
		if !ok {
			return nil, ErrConventionUnsupported
		}
		c.SetUnit(unit)
		if fc == 4 {
			return c.ReadInputRegisters(addr, qty)
		}
		return c.ReadHoldingRegisters(addr, qty)
	}},
}

// PairReader reads adjacent register pairs from one connection. The calling
// convention is probed once and then pinned for the connection's lifetime.
type PairReader struct {
	strategy int
}

// New returns a reader with no convention selected yet.
func New() *PairReader {
	return &PairReader{strategy: -1}
}

// Convention returns the name of the pinned calling convention, or "" while
// unprobed.
func (r *PairReader) Convention() string {
	if r.strategy < 0 {
		return ""
	}
	return strategies[r.strategy].name
}

// ReadPair reads the two registers at start and start+1 with the given
// function code (3 = holding, 4 = input). It probes calling conventions in
// fixed order on first use; a convention the transport rejects structurally
// is skipped, while any real failure surfaces as a ReadError at once.
func (r *PairReader) ReadPair(conn gateway.Conn, unit uint8, start uint16, fc uint8) (uint16, uint16, error) {
	if fc != 3 && fc != 4 {
		return 0, 0, r.fail(conn, unit, start, fc, fmt.Errorf("unsupported function code %d", fc))
	}

	if r.strategy >= 0 {
		regs, err := strategies[r.strategy].read(conn, unit, fc, start, 2)
		if err != nil {
			return 0, 0, r.fail(conn, unit, start, fc, err)
		}
		return pair(regs, func(err error) error { return r.fail(conn, unit, start, fc, err) })
	}

	for i, s := range strategies {
		regs, err := s.read(conn, unit, fc, start, 2)
		if errors.Is(err, ErrConventionUnsupported) {
			continue
		}
		if err != nil {
			return 0, 0, r.fail(conn, unit, start, fc, err)
		}
		r.strategy = i
		return pair(regs, func(err error) error { return r.fail(conn, unit, start, fc, err) })
	}

	return 0, 0, r.fail(conn, unit, start, fc, errors.New("no supported calling convention"))
}

func (r *PairReader) fail(conn gateway.Conn, unit uint8, addr uint16, fc uint8, err error) error {
	return &ReadError{
		Host:         conn.Host(),
		Port:         conn.Port(),
		Unit:         unit,
		Address:      addr,
		FunctionCode: fc,
		Err:          err,
	}
}

func pair(regs []uint16, wrap func(error) error) (uint16, uint16, error) {
	if len(regs) < 2 {
		return 0, 0, wrap(fmt.Errorf("short response: %d registers", len(regs)))
	}
	return regs[0], regs[1], nil
}
