// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-telemetry/internal/config"
	"github.com/tamzrod/modbus-telemetry/internal/convert"
	"github.com/tamzrod/modbus-telemetry/internal/gateway"
	"github.com/tamzrod/modbus-telemetry/internal/reader"
	"github.com/tamzrod/modbus-telemetry/internal/sink"
)

// Dialer builds a connection for one gateway. The real implementation lives
// in the gateway package; tests substitute fakes.
type Dialer interface {
	Dial(gw config.GatewayConfig) (gateway.Conn, error)
}

// Config is the scheduler's immutable runtime config.
type Config struct {
	Interval   time.Duration
	Fahrenheit bool
}

// Scheduler sweeps all configured gateways once per interval. Failures are
// contained at the narrowest granularity: a dead gateway skips its sensors
// for the cycle, a dead sensor skips only itself.
type Scheduler struct {
	cfg      Config
	gateways []config.GatewayConfig
	dialer   Dialer
	sink     sink.Sink
	logger   *zap.Logger
}

// New creates a scheduler over a resolved gateway list.
func New(cfg Config, gateways []config.GatewayConfig, dialer Dialer, s sink.Sink, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if dialer == nil {
		return nil, errors.New("poller: dialer required")
	}
	if s == nil {
		s = sink.Nop{}
	}
	return &Scheduler{
		cfg:      cfg,
		gateways: gateways,
		dialer:   dialer,
		sink:     s,
		logger:   logger,
	}, nil
}

// PollCycle performs one full sweep over all gateways.
func (s *Scheduler) PollCycle(ctx context.Context) {
	for _, gw := range s.gateways {
		if ctx.Err() != nil {
			return
		}
		s.pollGateway(ctx, gw)
	}
}

// pollGateway connects, reads every sensor, and closes. The connection never
// outlives the gateway's turn in the cycle.
func (s *Scheduler) pollGateway(ctx context.Context, gw config.GatewayConfig) {
	conn, err := s.dialer.Dial(gw)
	if err != nil {
		s.logger.Error("gateway skipped this cycle",
			zap.String("gateway", gw.Name),
			zap.Error(err))
		return
	}

	if err := conn.Connect(); err != nil {
		s.logger.Error("gateway connection failed, skipped this cycle",
			zap.String("gateway", gw.Name),
			zap.String("host", gw.Host),
			zap.Int("port", gw.Port),
			zap.Error(err))
		return
	}
	defer conn.Close()

	// One reader per connection: the calling convention is a property of
	// the transport instance.
	r := reader.New()

	for _, unit := range gw.UnitIDs() {
		if ctx.Err() != nil {
			return
		}
		if err := s.pollSensor(ctx, gw, conn, r, unit); err != nil {
			s.logger.Error("sensor skipped this cycle",
				zap.String("gateway", gw.Name),
				zap.Uint8("unit", unit),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) pollSensor(ctx context.Context, gw config.GatewayConfig, conn gateway.Conn, r *reader.PairReader, unit uint8) error {
	sensor := gw.Sensors[unit]

	start := sensor.HumidityReg
	if sensor.TemperatureReg < start {
		start = sensor.TemperatureReg
	}

	lo, hi, err := r.ReadPair(conn, unit, start, sensor.FunctionCode)
	if err != nil {
		return err
	}

	humidityRaw, temperatureRaw := lo, hi
	if sensor.HumidityReg > sensor.TemperatureReg {
		humidityRaw, temperatureRaw = hi, lo
	}

	humidity, celsius, err := convert.Convert(humidityRaw, temperatureRaw, sensor.Conversion, sensor.Scale)
	if err != nil {
		return err
	}

	at := time.Now().UTC()

	temperature := celsius
	unitMark := "°C"
	if s.cfg.Fahrenheit {
		temperature = convert.ToFahrenheit(celsius)
		unitMark = "°F"
	}

	s.logger.Info("sensor reading",
		zap.Uint8("unit", unit),
		zap.String("device_id", sensor.DeviceID),
		zap.String("channel", gw.Name),
		zap.String("timestamp", at.Format(time.RFC3339)),
		zap.String("humidity", fmt.Sprintf("%.2f%%", humidity)),
		zap.String("temperature", fmt.Sprintf("%.2f%s", temperature, unitMark)))

	// The reading is already logged; a sink failure must not undo that.
	if err := s.sink.Publish(ctx, sink.Reading{
		DeviceID:    sensor.DeviceID,
		Channel:     gw.Name,
		At:          at,
		Temperature: temperature,
		Humidity:    humidity,
	}); err != nil {
		s.logger.Warn("telemetry publish failed",
			zap.String("device_id", sensor.DeviceID),
			zap.Error(err))
	}

	return nil
}
