// internal/config/resolve.go
package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-telemetry/internal/convert"
)

const (
	defaultHost = "localhost"
	defaultPort = 502
)

var sensorGroupRe = regexp.MustCompile(`^SENSOR(\d+)_GATEWAY$`)
var legacySensorRe = regexp.MustCompile(`^SENSOR(\d+)_ADDRESS$`)

// Resolve derives the gateway/sensor configuration from a flat key/value
// source. Malformed entries are replaced by type defaults or dropped with a
// warning; resolution itself never fails. The result is sorted by gateway
// name, with sensors keyed by unit id.
func Resolve(src Source, logger *zap.Logger) []GatewayConfig {
	groups := sensorGroups(src)

	byGateway := make(map[string]map[uint8]SensorConfig)

	for _, n := range groups {
		prefix := fmt.Sprintf("SENSOR%d_", n)

		gwName := strings.TrimSpace(src[prefix+"GATEWAY"])
		if gwName == "" {
			logger.Warn("sensor entry without gateway name dropped",
				zap.Int("sensor", n))
			continue
		}

		unit, ok := parseUnitID(src[prefix+"UNITID"])
		if !ok {
			logger.Warn("sensor entry without valid unit id dropped",
				zap.Int("sensor", n),
				zap.String("unitid", src[prefix+"UNITID"]))
			continue
		}

		sensor := resolveSensor(src, prefix, n, unit, logger)

		sensors := byGateway[gwName]
		if sensors == nil {
			sensors = make(map[uint8]SensorConfig)
			byGateway[gwName] = sensors
		}
		if _, dup := sensors[unit]; dup {
			logger.Warn("duplicate unit id within gateway, entry dropped",
				zap.Int("sensor", n),
				zap.String("gateway", gwName),
				zap.Uint8("unit", unit))
			continue
		}
		sensors[unit] = sensor
	}

	if len(byGateway) == 0 {
		return resolveLegacy(src, logger)
	}
	if hasLegacyKeys(src) {
		logger.Warn("legacy RS485 sensor keys present alongside gateway groups, legacy keys ignored")
	}

	names := make([]string, 0, len(byGateway))
	for name := range byGateway {
		names = append(names, name)
	}
	sort.Strings(names)

	gateways := make([]GatewayConfig, 0, len(names))
	for _, name := range names {
		gateways = append(gateways, resolveGateway(src, name, byGateway[name], logger))
	}
	return gateways
}

// sensorGroups returns the numeric suffixes of SENSOR<N>_GATEWAY keys in
// ascending order.
func sensorGroups(src Source) []int {
	var groups []int
	for key := range src {
		m := sensorGroupRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		groups = append(groups, n)
	}
	sort.Ints(groups)
	return groups
}

func resolveSensor(src Source, prefix string, n int, unit uint8, logger *zap.Logger) SensorConfig {
	typName := strings.ToUpper(strings.TrimSpace(src[prefix+"TYPE"]))
	if typName == "" {
		typName = DefaultType
	}
	defaults, known := TypeFor(typName)
	if !known {
		logger.Warn("unknown sensor type, using default type",
			zap.Int("sensor", n),
			zap.String("type", typName),
			zap.String("default", DefaultType))
		typName = DefaultType
	}

	sensor := SensorConfig{
		Type:           typName,
		FunctionCode:   defaults.FunctionCode,
		Scale:          defaults.Scale,
		HumidityReg:    defaults.HumidityReg,
		TemperatureReg: defaults.TemperatureReg,
		Conversion:     defaults.Conversion,
		DeviceID:       fmt.Sprintf("%s-%d", strings.ToLower(typName), unit),
	}

	if v, ok := src[prefix+"FC"]; ok {
		if fc, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && (fc == 3 || fc == 4) {
			sensor.FunctionCode = uint8(fc)
		} else {
			logger.Warn("invalid function code, using type default",
				zap.Int("sensor", n),
				zap.String("fc", v),
				zap.Uint8("default", defaults.FunctionCode))
		}
	}

	if v, ok := src[prefix+"SCALE"]; ok {
		if scale, err := convert.ParseScale(v); err == nil {
			sensor.Scale = scale
		} else {
			logger.Warn("invalid scale, using type default",
				zap.Int("sensor", n),
				zap.String("scale", v),
				zap.String("default", defaults.Scale.String()))
		}
	}

	if v, ok := src[prefix+"HUMID_REG"]; ok {
		if reg, ok := parseRegister(v); ok {
			sensor.HumidityReg = reg
		} else {
			logger.Warn("invalid humidity register, using type default",
				zap.Int("sensor", n),
				zap.String("register", v),
				zap.Uint16("default", defaults.HumidityReg))
		}
	}

	if v, ok := src[prefix+"TEMP_REG"]; ok {
		if reg, ok := parseRegister(v); ok {
			sensor.TemperatureReg = reg
		} else {
			logger.Warn("invalid temperature register, using type default",
				zap.Int("sensor", n),
				zap.String("register", v),
				zap.Uint16("default", defaults.TemperatureReg))
		}
	}

	if v, ok := src[prefix+"CONVERSION"]; ok {
		if mode, err := convert.ParseMode(v); err == nil {
			sensor.Conversion = mode
		} else {
			logger.Warn("invalid conversion mode, using type default",
				zap.Int("sensor", n),
				zap.String("conversion", v),
				zap.String("default", string(defaults.Conversion)))
		}
	}

	if v, ok := src[prefix+"DEVID"]; ok && strings.TrimSpace(v) != "" {
		sensor.DeviceID = strings.TrimSpace(v)
	}

	return sensor
}

func resolveGateway(src Source, name string, sensors map[uint8]SensorConfig, logger *zap.Logger) GatewayConfig {
	prefix := "GW_" + name + "_"

	gw := GatewayConfig{
		Name:    name,
		Host:    defaultHost,
		Port:    defaultPort,
		Mode:    ModeTCP,
		Sensors: sensors,
	}

	// Serial defaults come from the type table of the first sensor.
	units := gw.UnitIDs()
	if len(units) > 0 {
		defaults, _ := TypeFor(sensors[units[0]].Type)
		gw.Serial = defaults.Serial
	}

	if v, ok := src[prefix+"HOST"]; ok && strings.TrimSpace(v) != "" {
		gw.Host = strings.TrimSpace(v)
	}

	if v, ok := src[prefix+"PORT"]; ok {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && port > 0 && port <= 65535 {
			gw.Port = port
		} else {
			logger.Warn("invalid gateway port, using default",
				zap.String("gateway", name),
				zap.String("port", v),
				zap.Int("default", defaultPort))
		}
	}

	if v, ok := src[prefix+"MODE"]; ok {
		switch TransportMode(strings.ToLower(strings.TrimSpace(v))) {
		case ModeTCP:
			gw.Mode = ModeTCP
		case ModeRTU:
			gw.Mode = ModeRTU
		default:
			logger.Warn("invalid gateway mode, using tcp",
				zap.String("gateway", name),
				zap.String("mode", v))
		}
	}

	if v, ok := src[prefix+"BAUDRATE"]; ok {
		if baud, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && baud > 0 {
			gw.Serial.BaudRate = baud
		} else {
			logger.Warn("invalid baud rate, using default",
				zap.String("gateway", name),
				zap.String("baudrate", v),
				zap.Int("default", gw.Serial.BaudRate))
		}
	}

	if v, ok := src[prefix+"PARITY"]; ok {
		switch p := strings.ToUpper(strings.TrimSpace(v)); p {
		case "N", "E", "O":
			gw.Serial.Parity = p
		default:
			logger.Warn("invalid parity, using default",
				zap.String("gateway", name),
				zap.String("parity", v),
				zap.String("default", gw.Serial.Parity))
		}
	}

	if v, ok := src[prefix+"STOPBITS"]; ok {
		if sb, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && (sb == 1 || sb == 2) {
			gw.Serial.StopBits = sb
		} else {
			logger.Warn("invalid stop bits, using default",
				zap.String("gateway", name),
				zap.String("stopbits", v),
				zap.Int("default", gw.Serial.StopBits))
		}
	}

	return gw
}

// resolveLegacy handles the single-gateway layout that predates gateway
// groups: RS485_GATEWAY_HOST/PORT plus SENSOR<N>_ADDRESS/FC/SCALE, reading
// humidity at register 1 and temperature at register 2 with the SHT transfer
// function.
func resolveLegacy(src Source, logger *zap.Logger) []GatewayConfig {
	var groups []int
	for key := range src {
		m := legacySensorRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			groups = append(groups, n)
		}
	}
	if len(groups) == 0 {
		return nil
	}
	sort.Ints(groups)

	sensors := make(map[uint8]SensorConfig)
	for _, n := range groups {
		prefix := fmt.Sprintf("SENSOR%d_", n)

		unit, ok := parseUnitID(src[prefix+"ADDRESS"])
		if !ok {
			logger.Warn("legacy sensor entry without valid address dropped",
				zap.Int("sensor", n),
				zap.String("address", src[prefix+"ADDRESS"]))
			continue
		}
		if _, dup := sensors[unit]; dup {
			logger.Warn("duplicate legacy sensor address, entry dropped",
				zap.Int("sensor", n),
				zap.Uint8("unit", unit))
			continue
		}

		sensor := SensorConfig{
			Type:           DefaultType,
			FunctionCode:   3,
			Scale:          convert.DefaultScale,
			HumidityReg:    1,
			TemperatureReg: 2,
			Conversion:     convert.ModeSHTFormula,
			DeviceID:       fmt.Sprintf("%s-%d", strings.ToLower(DefaultType), unit),
		}

		if v, ok := src[prefix+"FC"]; ok {
			if fc, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && (fc == 3 || fc == 4) {
				sensor.FunctionCode = uint8(fc)
			} else {
				logger.Warn("invalid legacy function code, using 3",
					zap.Int("sensor", n),
					zap.String("fc", v))
			}
		}
		if v, ok := src[prefix+"SCALE"]; ok {
			if scale, err := convert.ParseScale(v); err == nil {
				sensor.Scale = scale
			} else {
				logger.Warn("invalid legacy scale, using 1",
					zap.Int("sensor", n),
					zap.String("scale", v))
			}
		}

		sensors[unit] = sensor
	}

	if len(sensors) == 0 {
		return nil
	}

	gw := GatewayConfig{
		Name:    "rs485",
		Host:    defaultHost,
		Port:    defaultPort,
		Mode:    ModeTCP,
		Serial:  SerialParams{BaudRate: 9600, Parity: "N", StopBits: 1},
		Sensors: sensors,
	}
	if v, ok := src["RS485_GATEWAY_HOST"]; ok && strings.TrimSpace(v) != "" {
		gw.Host = strings.TrimSpace(v)
	}
	if v, ok := src["RS485_GATEWAY_PORT"]; ok {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && port > 0 && port <= 65535 {
			gw.Port = port
		} else {
			logger.Warn("invalid legacy gateway port, using default",
				zap.String("port", v),
				zap.Int("default", defaultPort))
		}
	}

	return []GatewayConfig{gw}
}

func hasLegacyKeys(src Source) bool {
	if _, ok := src["RS485_GATEWAY_HOST"]; ok {
		return true
	}
	for key := range src {
		if legacySensorRe.MatchString(key) {
			return true
		}
	}
	return false
}

func parseUnitID(s string) (uint8, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 255 {
		return 0, false
	}
	return uint8(n), true
}

func parseRegister(s string) (uint16, bool) {
	// Register addresses may be given in hex (0x0001) like the vendor
	// datasheets write them.
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}
