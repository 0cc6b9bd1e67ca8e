// internal/gateway/serial.go
package gateway

import (
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/modbus-telemetry/internal/config"
)

// serialConn speaks Modbus RTU on a local serial device (gateway host is a
// device path like /dev/ttyUSB0). Same set-then-read convention as tcpConn.
type serialConn struct {
	mu        sync.Mutex
	gw        config.GatewayConfig
	handler   *modbus.RTUClientHandler
	client    modbus.Client
	connected bool
}

func newSerialConn(gw config.GatewayConfig, timeout time.Duration) *serialConn {
	h := modbus.NewRTUClientHandler(gw.Host)
	h.BaudRate = gw.Serial.BaudRate
	h.DataBits = 8
	h.Parity = gw.Serial.Parity
	h.StopBits = gw.Serial.StopBits
	h.Timeout = timeout
	return &serialConn{
		gw:      gw,
		handler: h,
		client:  modbus.NewClient(h),
	}
}

func (c *serialConn) Connect() error {
	if err := c.handler.Connect(); err != nil {
		return &ConnectionError{Gateway: c.gw.Name, Host: c.gw.Host, Port: c.gw.Port, Err: err}
	}
	c.connected = true
	return nil
}

func (c *serialConn) Close() error {
	c.connected = false
	return c.handler.Close()
}

func (c *serialConn) Connected() bool { return c.connected }
func (c *serialConn) Host() string    { return c.gw.Host }
func (c *serialConn) Port() int       { return c.gw.Port }

func (c *serialConn) SetUnit(unit uint8) {
	c.mu.Lock()
	c.handler.SlaveId = unit
	c.mu.Unlock()
}

func (c *serialConn) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, qty)
}

func (c *serialConn) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, qty)
}
