// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tamzrod/modbus-telemetry/internal/config"
	"github.com/tamzrod/modbus-telemetry/internal/convert"
	"github.com/tamzrod/modbus-telemetry/internal/gateway"
	"github.com/tamzrod/modbus-telemetry/internal/sink"
)

// fakeConn serves canned register pairs per unit, unit id trailing the call.
type fakeConn struct {
	host      string
	port      int
	regs      map[uint8][2]uint16 // unit -> pair at the read address
	failUnits map[uint8]bool
	connected bool
	closed    bool
}

func (c *fakeConn) Connect() error  { c.connected = true; return nil }
func (c *fakeConn) Close() error    { c.closed = true; c.connected = false; return nil }
func (c *fakeConn) Connected() bool { return c.connected }
func (c *fakeConn) Host() string    { return c.host }
func (c *fakeConn) Port() int       { return c.port }

func (c *fakeConn) read(unit uint8) ([]uint16, error) {
	if c.failUnits[unit] {
		return nil, errors.New("device timeout")
	}
	pair, ok := c.regs[unit]
	if !ok {
		return nil, errors.New("no such unit")
	}
	return []uint16{pair[0], pair[1]}, nil
}

func (c *fakeConn) ReadHoldingRegisters(addr, qty uint16, unit uint8) ([]uint16, error) {
	return c.read(unit)
}

func (c *fakeConn) ReadInputRegisters(addr, qty uint16, unit uint8) ([]uint16, error) {
	return c.read(unit)
}

// fakeDialer maps gateway names to conns or connect-time failures.
type fakeDialer struct {
	conns    map[string]*fakeConn
	failGWs  map[string]bool
	dialed   []string
}

func (d *fakeDialer) Dial(gw config.GatewayConfig) (gateway.Conn, error) {
	d.dialed = append(d.dialed, gw.Name)
	if d.failGWs[gw.Name] {
		return nil, &gateway.ConnectionError{Gateway: gw.Name, Host: gw.Host, Port: gw.Port,
			Err: errors.New("connection refused")}
	}
	return d.conns[gw.Name], nil
}

// recordingSink captures published readings.
type recordingSink struct {
	readings []sink.Reading
	err      error
}

func (s *recordingSink) Publish(_ context.Context, r sink.Reading) error {
	s.readings = append(s.readings, r)
	return s.err
}

func sht20Sensor(unit uint8) config.SensorConfig {
	return config.SensorConfig{
		DeviceID:       fmt.Sprintf("sht20-%d", unit),
		Type:           "SHT20",
		FunctionCode:   4,
		Scale:          convert.DefaultScale,
		HumidityReg:    2,
		TemperatureReg: 1,
		Conversion:     convert.ModeScaled,
	}
}

func testGateway(name string, sensors map[uint8]config.SensorConfig) config.GatewayConfig {
	return config.GatewayConfig{
		Name:    name,
		Host:    name + ".local",
		Port:    502,
		Mode:    config.ModeTCP,
		Sensors: sensors,
	}
}

func newScheduler(t *testing.T, gws []config.GatewayConfig, d Dialer, s sink.Sink) (*Scheduler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	sched, err := New(Config{Interval: time.Minute}, gws, d, s, zap.New(core))
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	return sched, logs
}

func TestPollCycle_ReadsConvertsPublishes(t *testing.T) {
	conn := &fakeConn{host: "g.local", port: 502,
		// temperature register 1 is the low address: pair = (temp, humidity)
		regs: map[uint8][2]uint16{1: {235, 470}}}
	dialer := &fakeDialer{conns: map[string]*fakeConn{"G": conn}}
	rec := &recordingSink{}

	gws := []config.GatewayConfig{testGateway("G", map[uint8]config.SensorConfig{1: sht20Sensor(1)})}
	sched, logs := newScheduler(t, gws, dialer, rec)

	sched.PollCycle(context.Background())

	if len(rec.readings) != 1 {
		t.Fatalf("expected 1 published reading, got %d", len(rec.readings))
	}
	r := rec.readings[0]
	if r.Temperature != 23.5 || r.Humidity != 47.0 {
		t.Errorf("reading = %+v, want 23.5 / 47.0", r)
	}
	if r.DeviceID != "sht20-1" || r.Channel != "G" {
		t.Errorf("identity = %s / %s", r.DeviceID, r.Channel)
	}
	if !conn.closed {
		t.Error("connection not closed after the cycle")
	}

	found := false
	for _, e := range logs.FilterMessage("sensor reading").All() {
		found = true
		fields := e.ContextMap()
		if fields["temperature"] != "23.50°C" {
			t.Errorf("temperature field = %v", fields["temperature"])
		}
		if fields["humidity"] != "47.00%" {
			t.Errorf("humidity field = %v", fields["humidity"])
		}
	}
	if !found {
		t.Error("no reading log record")
	}
}

func TestPollCycle_Fahrenheit(t *testing.T) {
	conn := &fakeConn{host: "g.local", port: 502, regs: map[uint8][2]uint16{1: {235, 470}}}
	dialer := &fakeDialer{conns: map[string]*fakeConn{"G": conn}}
	rec := &recordingSink{}

	core, logs := observer.New(zap.InfoLevel)
	gws := []config.GatewayConfig{testGateway("G", map[uint8]config.SensorConfig{1: sht20Sensor(1)})}
	sched, err := New(Config{Interval: time.Minute, Fahrenheit: true}, gws, dialer, rec, zap.New(core))
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	sched.PollCycle(context.Background())

	if len(rec.readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(rec.readings))
	}
	if rec.readings[0].Temperature != 74.3 {
		t.Errorf("temperature = %v, want 74.3", rec.readings[0].Temperature)
	}
	for _, e := range logs.FilterMessage("sensor reading").All() {
		if e.ContextMap()["temperature"] != "74.30°F" {
			t.Errorf("temperature field = %v", e.ContextMap()["temperature"])
		}
	}
}

func TestPollCycle_GatewayFailureIsolated(t *testing.T) {
	connB := &fakeConn{host: "b.local", port: 502, regs: map[uint8][2]uint16{1: {235, 470}}}
	dialer := &fakeDialer{
		conns:   map[string]*fakeConn{"B": connB},
		failGWs: map[string]bool{"A": true},
	}
	rec := &recordingSink{}

	gws := []config.GatewayConfig{
		testGateway("A", map[uint8]config.SensorConfig{1: sht20Sensor(1)}),
		testGateway("B", map[uint8]config.SensorConfig{1: sht20Sensor(1)}),
	}
	sched, logs := newScheduler(t, gws, dialer, rec)

	sched.PollCycle(context.Background())

	if len(rec.readings) != 1 || rec.readings[0].Channel != "B" {
		t.Fatalf("expected 1 reading from B, got %+v", rec.readings)
	}
	if len(dialer.dialed) != 2 {
		t.Errorf("dialed %v, want both gateways", dialer.dialed)
	}
	if logs.FilterMessage("gateway skipped this cycle").Len() != 1 {
		t.Error("expected a skip record for gateway A")
	}
}

func TestPollCycle_SensorFailureIsolated(t *testing.T) {
	conn := &fakeConn{host: "g.local", port: 502,
		regs:      map[uint8][2]uint16{2: {235, 470}},
		failUnits: map[uint8]bool{1: true},
	}
	dialer := &fakeDialer{conns: map[string]*fakeConn{"G": conn}}
	rec := &recordingSink{}

	gws := []config.GatewayConfig{testGateway("G", map[uint8]config.SensorConfig{
		1: sht20Sensor(1),
		2: sht20Sensor(2),
	})}
	sched, logs := newScheduler(t, gws, dialer, rec)

	sched.PollCycle(context.Background())

	if len(rec.readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(rec.readings))
	}
	if logs.FilterMessage("sensor skipped this cycle").Len() != 1 {
		t.Error("expected a skip record for unit 1")
	}
}

func TestPollCycle_SinkErrorSwallowed(t *testing.T) {
	conn := &fakeConn{host: "g.local", port: 502, regs: map[uint8][2]uint16{1: {235, 470}}}
	dialer := &fakeDialer{conns: map[string]*fakeConn{"G": conn}}
	rec := &recordingSink{err: errors.New("sink down")}

	gws := []config.GatewayConfig{testGateway("G", map[uint8]config.SensorConfig{1: sht20Sensor(1)})}
	sched, logs := newScheduler(t, gws, dialer, rec)

	sched.PollCycle(context.Background())

	if logs.FilterMessage("sensor reading").Len() != 1 {
		t.Error("reading should be logged before the sink failure")
	}
	if logs.FilterMessage("telemetry publish failed").Len() != 1 {
		t.Error("expected a publish failure record")
	}
	if logs.FilterMessage("sensor skipped this cycle").Len() != 0 {
		t.Error("sink failure must not skip the sensor")
	}
}

func TestRun_NoGatewaysReturns(t *testing.T) {
	dialer := &fakeDialer{}
	sched, logs := newScheduler(t, nil, dialer, &recordingSink{})

	done := make(chan struct{})
	go func() {
		sched.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return with zero gateways")
	}
	if logs.FilterMessage("no gateways configured").Len() != 1 {
		t.Error("expected a single no-work record")
	}
	if len(dialer.dialed) != 0 {
		t.Errorf("dialed %v with no gateways", dialer.dialed)
	}
}

func TestRun_CancelStops(t *testing.T) {
	conn := &fakeConn{host: "g.local", port: 502, regs: map[uint8][2]uint16{1: {235, 470}}}
	dialer := &fakeDialer{conns: map[string]*fakeConn{"G": conn}}

	gws := []config.GatewayConfig{testGateway("G", map[uint8]config.SensorConfig{1: sht20Sensor(1)})}
	sched, _ := newScheduler(t, gws, dialer, &recordingSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Interval: 0}, nil, &fakeDialer{}, nil, zap.NewNop()); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := New(Config{Interval: time.Second}, nil, nil, nil, zap.NewNop()); err == nil {
		t.Error("expected error for nil dialer")
	}
}
