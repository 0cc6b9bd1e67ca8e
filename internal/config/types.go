// internal/config/types.go
package config

import "github.com/tamzrod/modbus-telemetry/internal/convert"

// TypeDefaults is the built-in register map for one sensor model.
type TypeDefaults struct {
	FunctionCode   uint8
	HumidityReg    uint16
	TemperatureReg uint16
	Conversion     convert.Mode
	Scale          convert.Scale
	Serial         SerialParams
}

// DefaultType is substituted for unknown sensor types.
const DefaultType = "SHT20"

// typeTable maps a sensor model to its default register layout.
//
// SHT20 modules on RS485 report x10 values via input registers:
// temperature at 0x0001, humidity at 0x0002. SHT30 boards report x100
// values via holding registers starting at 0x0000.
var typeTable = map[string]TypeDefaults{
	"SHT20": {
		FunctionCode:   4,
		HumidityReg:    2,
		TemperatureReg: 1,
		Conversion:     convert.ModeScaled,
		Scale:          convert.DefaultScale,
		Serial:         SerialParams{BaudRate: 9600, Parity: "N", StopBits: 1},
	},
	"SHT30": {
		FunctionCode:   3,
		HumidityReg:    1,
		TemperatureReg: 0,
		Conversion:     convert.ModeScaled,
		Scale:          convert.Scale{Value: 100},
		Serial:         SerialParams{BaudRate: 9600, Parity: "N", StopBits: 1},
	},
}

// TypeFor returns the defaults for a sensor type name. The second result
// reports whether the type was known.
func TypeFor(name string) (TypeDefaults, bool) {
	d, ok := typeTable[name]
	if !ok {
		return typeTable[DefaultType], false
	}
	return d, true
}
