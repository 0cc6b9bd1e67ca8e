// internal/config/config.go
package config

import (
	"sort"

	"github.com/tamzrod/modbus-telemetry/internal/convert"
)

// TransportMode selects the framing used to reach a gateway.
type TransportMode string

const (
	ModeTCP TransportMode = "tcp" // Modbus TCP
	ModeRTU TransportMode = "rtu" // raw RTU frames, serial or inside a TCP socket
)

// SerialParams are the RTU line settings. Only consulted when the gateway
// mode is "rtu".
type SerialParams struct {
	BaudRate int
	Parity   string // "N", "E", "O"
	StopBits int
}

// SensorConfig describes one register-addressable sensor behind a gateway.
// Immutable once resolved.
type SensorConfig struct {
	DeviceID       string
	Type           string
	FunctionCode   uint8 // 3 = holding registers, 4 = input registers
	Scale          convert.Scale
	HumidityReg    uint16
	TemperatureReg uint16
	Conversion     convert.Mode
}

// GatewayConfig describes one gateway and the sensors behind it.
type GatewayConfig struct {
	Name    string
	Host    string
	Port    int
	Mode    TransportMode
	Serial  SerialParams
	Sensors map[uint8]SensorConfig // keyed by unit id
}

// UnitIDs returns the gateway's unit ids in ascending order.
func (g GatewayConfig) UnitIDs() []uint8 {
	ids := make([]uint8, 0, len(g.Sensors))
	for id := range g.Sensors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
