// internal/convert/convert.go
package convert

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the formula turning raw register values into engineering units.
type Mode string

const (
	// ModeScaled divides raw values by a fixed factor (x10 / x100 sensors).
	ModeScaled Mode = "scaled"
	// ModeSHTFormula applies the SHT2x/3x manufacturer transfer function.
	ModeSHTFormula Mode = "sht_formula"
)

// ParseMode validates a conversion mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeScaled:
		return ModeScaled, nil
	case ModeSHTFormula:
		return ModeSHTFormula, nil
	}
	return "", fmt.Errorf("convert: unsupported conversion mode %q", s)
}

// Scale is a positive divisor or the "auto" sentinel.
type Scale struct {
	Auto  bool
	Value float64
}

// DefaultScale is the identity divisor.
var DefaultScale = Scale{Value: 1}

// ParseScale parses a scale setting. Accepts "auto" or a positive float.
func ParseScale(s string) (Scale, error) {
	if strings.EqualFold(strings.TrimSpace(s), "auto") {
		return Scale{Auto: true}, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Scale{}, fmt.Errorf("convert: invalid scale %q: %w", s, err)
	}
	if v <= 0 {
		return Scale{}, fmt.Errorf("convert: scale must be > 0, got %v", v)
	}
	return Scale{Value: v}, nil
}

func (s Scale) String() string {
	if s.Auto {
		return "auto"
	}
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}

// ApplyScale divides a raw register value by the configured scale.
//
// With the "auto" sentinel the divisor is picked by magnitude: values above
// 10000 are x100, values above 1000 are x10, anything else passes through.
// The thresholds are load-bearing for deployed sensors; do not adjust them.
func ApplyScale(raw uint16, scale Scale) float64 {
	v := float64(raw)
	if scale.Auto {
		switch {
		case raw > 10000:
			return v / 100
		case raw > 1000:
			return v / 10
		default:
			return v
		}
	}
	return v / scale.Value
}

// Convert turns a raw humidity/temperature register pair into percent RH and
// degrees Celsius.
func Convert(humidityRaw, temperatureRaw uint16, mode Mode, scale Scale) (humidity, temperature float64, err error) {
	switch mode {
	case ModeScaled:
		// x10 sensors report 235 for 23.5. An explicit or auto scale
		// overrides the /10 default.
		if !scale.Auto && scale.Value == 1 {
			return float64(humidityRaw) / 10, float64(temperatureRaw) / 10, nil
		}
		return ApplyScale(humidityRaw, scale), ApplyScale(temperatureRaw, scale), nil

	case ModeSHTFormula:
		h := ApplyScale(humidityRaw, scale)
		t := ApplyScale(temperatureRaw, scale)
		humidity = -6 + 125*h/65536.0
		temperature = -46.85 + 175.72*t/65536.0
		return humidity, temperature, nil
	}
	return 0, 0, fmt.Errorf("convert: unsupported conversion mode %q", mode)
}

// ToFahrenheit converts degrees Celsius to Fahrenheit.
func ToFahrenheit(celsius float64) float64 {
	return celsius*9/5 + 32
}
