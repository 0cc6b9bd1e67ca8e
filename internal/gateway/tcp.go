// internal/gateway/tcp.go
package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/modbus-telemetry/internal/config"
)

// tcpConn speaks Modbus TCP through a goburrow handler. The handler carries
// the slave id as connection state, so the read calling convention is
// set-then-read; the mutex serializes the id swap against the request.
type tcpConn struct {
	mu        sync.Mutex
	gw        config.GatewayConfig
	handler   *modbus.TCPClientHandler
	client    modbus.Client
	connected bool
}

func newTCPConn(gw config.GatewayConfig, timeout time.Duration) *tcpConn {
	h := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", gw.Host, gw.Port))
	h.Timeout = timeout
	return &tcpConn{
		gw:      gw,
		handler: h,
		client:  modbus.NewClient(h),
	}
}

func (c *tcpConn) Connect() error {
	if err := c.handler.Connect(); err != nil {
		return &ConnectionError{Gateway: c.gw.Name, Host: c.gw.Host, Port: c.gw.Port, Err: err}
	}
	c.connected = true
	return nil
}

func (c *tcpConn) Close() error {
	c.connected = false
	return c.handler.Close()
}

func (c *tcpConn) Connected() bool { return c.connected }
func (c *tcpConn) Host() string    { return c.gw.Host }
func (c *tcpConn) Port() int       { return c.gw.Port }

// SetUnit selects the slave id for subsequent reads.
func (c *tcpConn) SetUnit(unit uint8) {
	c.mu.Lock()
	c.handler.SlaveId = unit
	c.mu.Unlock()
}

func (c *tcpConn) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, qty)
}

func (c *tcpConn) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, qty)
}

// unpackRegisters decodes the big-endian register payload goburrow returns.
func unpackRegisters(raw []byte, qty uint16) ([]uint16, error) {
	if len(raw) < int(qty)*2 {
		return nil, fmt.Errorf("modbus: short register payload: %d bytes for %d registers", len(raw), qty)
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}
	return out, nil
}
