// cmd/telemetry/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-telemetry/internal/config"
	"github.com/tamzrod/modbus-telemetry/internal/gateway"
	"github.com/tamzrod/modbus-telemetry/internal/poller"
	"github.com/tamzrod/modbus-telemetry/internal/sink"
)

func main() {
	interval := flag.Float64("interval", 60.0, "Polling interval in seconds")
	sourceFile := flag.String("config", "", "Optional YAML key/value file merged under the environment")
	flag.Parse()

	rt, err := config.LoadRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := rt.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	src := config.FromEnviron(os.Environ())
	if *sourceFile != "" {
		fileSrc, err := config.FromYAMLFile(*sourceFile)
		if err != nil {
			logger.Error("failed to load config file", zap.String("path", *sourceFile), zap.Error(err))
			os.Exit(1)
		}
		// environment wins over the file
		src = config.Merge(fileSrc, src)
	}

	gateways := config.Resolve(src, logger)

	timeout := time.Duration(rt.ModbusTimeoutMs) * time.Millisecond

	sched, err := poller.New(
		poller.Config{
			Interval:   time.Duration(*interval * float64(time.Second)),
			Fahrenheit: rt.DegreesF,
		},
		gateways,
		gateway.Dialer{Timeout: timeout},
		sink.FromURL(rt.SinkURL, timeout),
		logger,
	)
	if err != nil {
		logger.Error("failed to build poller", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Run(ctx)

	logger.Info("poller shut down")
}
