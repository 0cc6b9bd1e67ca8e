// internal/convert/convert_test.go
package convert

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestApplyScale_Auto(t *testing.T) {
	cases := []struct {
		raw  uint16
		want float64
	}{
		{15000, 150.0},
		{5000, 500.0},
		{500, 500.0},
		{1000, 1000.0},
		{1001, 100.1},
		{10000, 1000.0},
		{10001, 100.01},
	}

	for _, c := range cases {
		got := ApplyScale(c.raw, Scale{Auto: true})
		if !almostEqual(got, c.want) {
			t.Errorf("ApplyScale(%d, auto) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestApplyScale_Numeric(t *testing.T) {
	if got := ApplyScale(235, Scale{Value: 10}); !almostEqual(got, 23.5) {
		t.Errorf("ApplyScale(235, 10) = %v, want 23.5", got)
	}
	if got := ApplyScale(235, DefaultScale); !almostEqual(got, 235) {
		t.Errorf("ApplyScale(235, 1) = %v, want 235", got)
	}
}

func TestConvert_SHTFormula_Boundaries(t *testing.T) {
	h, temp, err := Convert(0, 0, ModeSHTFormula, DefaultScale)
	if err != nil {
		t.Fatalf("Convert err=%v", err)
	}
	if !almostEqual(h, -6) {
		t.Errorf("humidity at raw=0: got %v, want -6", h)
	}
	if !almostEqual(temp, -46.85) {
		t.Errorf("temperature at raw=0: got %v, want -46.85", temp)
	}

	h, temp, err = Convert(65535, 65535, ModeSHTFormula, DefaultScale)
	if err != nil {
		t.Fatalf("Convert err=%v", err)
	}
	if !almostEqual(h, 118.998) {
		t.Errorf("humidity at raw=65535: got %v, want ~118.998", h)
	}
	if !almostEqual(temp, 128.867) {
		t.Errorf("temperature at raw=65535: got %v, want ~128.867", temp)
	}
}

func TestConvert_Scaled(t *testing.T) {
	h, temp, err := Convert(235, 235, ModeScaled, DefaultScale)
	if err != nil {
		t.Fatalf("Convert err=%v", err)
	}
	if !almostEqual(h, 23.5) || !almostEqual(temp, 23.5) {
		t.Errorf("scaled raw=235 scale=1: got (%v, %v), want (23.5, 23.5)", h, temp)
	}

	// explicit scale overrides the /10 default
	h, temp, err = Convert(2350, 2350, ModeScaled, Scale{Value: 100})
	if err != nil {
		t.Fatalf("Convert err=%v", err)
	}
	if !almostEqual(h, 23.5) || !almostEqual(temp, 23.5) {
		t.Errorf("scaled raw=2350 scale=100: got (%v, %v), want (23.5, 23.5)", h, temp)
	}
}

func TestConvert_UnsupportedMode(t *testing.T) {
	if _, _, err := Convert(1, 1, Mode("bogus"), DefaultScale); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestParseScale(t *testing.T) {
	s, err := ParseScale("auto")
	if err != nil || !s.Auto {
		t.Fatalf("ParseScale(auto) = %v, %v", s, err)
	}
	s, err = ParseScale("10")
	if err != nil || s.Auto || s.Value != 10 {
		t.Fatalf("ParseScale(10) = %v, %v", s, err)
	}
	if _, err := ParseScale("-1"); err == nil {
		t.Fatal("expected error for negative scale")
	}
	if _, err := ParseScale("x"); err == nil {
		t.Fatal("expected error for non-numeric scale")
	}
}

func TestToFahrenheit(t *testing.T) {
	if got := ToFahrenheit(0); !almostEqual(got, 32) {
		t.Errorf("ToFahrenheit(0) = %v, want 32", got)
	}
	if got := ToFahrenheit(23.5); !almostEqual(got, 74.3) {
		t.Errorf("ToFahrenheit(23.5) = %v, want 74.3", got)
	}
}
