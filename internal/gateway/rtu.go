// internal/gateway/rtu.go
package gateway

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tamzrod/modbus-telemetry/internal/config"
)

// socketRTUConn speaks raw RTU frames inside a plain TCP socket, the framing
// transparent RS485-to-Ethernet bridges expect. The unit id travels in every
// frame, so reads take it per call.
type socketRTUConn struct {
	gw      config.GatewayConfig
	timeout time.Duration
	conn    net.Conn
}

func newSocketRTUConn(gw config.GatewayConfig, timeout time.Duration) *socketRTUConn {
	return &socketRTUConn{gw: gw, timeout: timeout}
}

func (c *socketRTUConn) Connect() error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", c.gw.Host, c.gw.Port), c.timeout)
	if err != nil {
		return &ConnectionError{Gateway: c.gw.Name, Host: c.gw.Host, Port: c.gw.Port, Err: err}
	}
	c.conn = conn
	return nil
}

func (c *socketRTUConn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *socketRTUConn) Connected() bool { return c.conn != nil }
func (c *socketRTUConn) Host() string    { return c.gw.Host }
func (c *socketRTUConn) Port() int       { return c.gw.Port }

func (c *socketRTUConn) ReadHoldingRegisters(addr, qty uint16, unit uint8) ([]uint16, error) {
	return c.readRegisters(3, addr, qty, unit)
}

func (c *socketRTUConn) ReadInputRegisters(addr, qty uint16, unit uint8) ([]uint16, error) {
	return c.readRegisters(4, addr, qty, unit)
}

func (c *socketRTUConn) readRegisters(fc uint8, addr, qty uint16, unit uint8) ([]uint16, error) {
	if c.conn == nil {
		return nil, errors.New("rtu: not connected")
	}

	req := buildReadFrame(unit, fc, addr, qty)

	deadline := time.Now().Add(c.timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := c.conn.Write(req); err != nil {
		return nil, fmt.Errorf("rtu: write: %w", err)
	}

	payload, err := c.readResponse(unit, fc)
	if err != nil {
		return nil, err
	}
	if len(payload) != int(qty)*2 {
		return nil, fmt.Errorf("rtu: expected %d data bytes, got %d", qty*2, len(payload))
	}

	out := make([]uint16, qty)
	for i := range out {
		out[i] = uint16(payload[2*i])<<8 | uint16(payload[2*i+1])
	}
	return out, nil
}

// readResponse consumes one RTU response frame and returns the data bytes.
func (c *socketRTUConn) readResponse(unit, fc uint8) ([]byte, error) {
	// unit + fc + (byte count | exception code)
	head := make([]byte, 3)
	if _, err := io.ReadFull(c.conn, head); err != nil {
		return nil, fmt.Errorf("rtu: read header: %w", err)
	}

	if head[0] != unit {
		return nil, fmt.Errorf("rtu: unit mismatch: got=%d want=%d", head[0], unit)
	}

	if head[1] == fc|0x80 {
		// exception frame: code already read, CRC remains
		crc := make([]byte, 2)
		if _, err := io.ReadFull(c.conn, crc); err != nil {
			return nil, fmt.Errorf("rtu: read exception crc: %w", err)
		}
		frame := append(head, crc...)
		if !checkCRC(frame) {
			return nil, errors.New("rtu: crc mismatch on exception frame")
		}
		return nil, fmt.Errorf("rtu: exception fc=%d code=%d", fc, head[2])
	}

	if head[1] != fc {
		return nil, fmt.Errorf("rtu: function mismatch: got=%d want=%d", head[1], fc)
	}

	byteCount := int(head[2])
	rest := make([]byte, byteCount+2)
	if _, err := io.ReadFull(c.conn, rest); err != nil {
		return nil, fmt.Errorf("rtu: read payload: %w", err)
	}

	frame := append(head, rest...)
	if !checkCRC(frame) {
		return nil, errors.New("rtu: crc mismatch")
	}
	return rest[:byteCount], nil
}

// buildReadFrame builds an RTU read request:
// unit(1) fc(1) addr(2) qty(2) crc(2, little-endian).
func buildReadFrame(unit, fc uint8, addr, qty uint16) []byte {
	pdu := []byte{unit, fc, byte(addr >> 8), byte(addr), byte(qty >> 8), byte(qty)}
	crc := crc16(pdu)
	return append(pdu, byte(crc&0xFF), byte(crc>>8))
}

func checkCRC(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	want := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	return crc16(frame[:len(frame)-2]) == want
}

// crc16 is the Modbus CRC-16 (poly 0xA001, init 0xFFFF).
func crc16(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
