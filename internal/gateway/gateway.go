// internal/gateway/gateway.go
package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/tamzrod/modbus-telemetry/internal/config"
)

// Conn is a connection to one gateway. Register-read calling conventions
// differ between transport implementations and are probed by the reader
// package; Conn itself carries only the lifecycle.
type Conn interface {
	Connect() error
	Close() error
	Connected() bool
	Host() string
	Port() int
}

// ConnectionError reports a failed gateway connection attempt.
type ConnectionError struct {
	Gateway string
	Host    string
	Port    int
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gateway %s (%s:%d): connect: %v", e.Gateway, e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Dialer builds connections for resolved gateway configs.
type Dialer struct {
	Timeout time.Duration
}

// Dial constructs an unconnected Conn for the gateway. Mode "tcp" speaks
// Modbus TCP. Mode "rtu" speaks raw RTU frames: over a local serial device
// when the host is a device path, otherwise inside a plain TCP socket
// (transparent RS485 bridges).
func (d Dialer) Dial(gw config.GatewayConfig) (Conn, error) {
	switch gw.Mode {
	case config.ModeTCP:
		return newTCPConn(gw, d.Timeout), nil
	case config.ModeRTU:
		if strings.HasPrefix(gw.Host, "/") {
			return newSerialConn(gw, d.Timeout), nil
		}
		return newSocketRTUConn(gw, d.Timeout), nil
	}
	return nil, fmt.Errorf("gateway %s: unsupported mode %q", gw.Name, gw.Mode)
}
