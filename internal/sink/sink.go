// internal/sink/sink.go
package sink

import (
	"context"
	"time"
)

// Reading is one computed sensor reading handed to the sink.
type Reading struct {
	DeviceID    string
	Channel     string
	At          time.Time
	Temperature float64 // degrees Celsius
	Humidity    float64 // percent RH
}

// Sink publishes readings to an external destination. Publish failures are
// the caller's to log; a sink never retries within a cycle.
type Sink interface {
	Publish(ctx context.Context, r Reading) error
}

// Nop is the sink used when no destination is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Reading) error { return nil }
