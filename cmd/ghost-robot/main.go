// Command ghost-robot runs the robot example. Start one process with "robot" to
// simulate the robot; every process prints the odometry it receives and reads
// commands such as "updateVel 1.0 0.0" from stdin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ghost-robot/app"
	"ghost-robot/config"
	"ghost-robot/connection"
	"ghost-robot/console"
	"ghost-robot/metric"
	"ghost-robot/middleware"
	"ghost-robot/registry"
)

const slowDispatchBudget = 100 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer logger.Sync()

	channel, err := cfg.ChannelConfiguration()
	if err != nil {
		logger.Error("invalid channel configuration", zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	managerOpts := []connection.Option{
		connection.WithMiddleware(
			middleware.RecoverMiddleware(),
			middleware.LoggingMiddleware(logger),
			middleware.SlowDispatchMiddleware(slowDispatchBudget, logger),
		),
	}
	if cfg.DispatchRate > 0 {
		managerOpts = append(managerOpts,
			connection.WithMiddleware(middleware.RateLimitMiddleware(cfg.DispatchRate, cfg.DispatchBurst)))
	}

	if cfg.MetricsAddr != "" {
		metrics, shutdown, err := serveMetrics(cfg.MetricsAddr, logger)
		if err != nil {
			logger.Error("failed to serve metrics", zap.Error(err))
			return 1
		}
		defer shutdown()
		managerOpts = append(managerOpts, connection.WithMetrics(metrics))
	}

	var consoleOpts []console.Option
	if len(cfg.EtcdEndpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, logger.Named("etcd"))
		if err != nil {
			logger.Error("failed to connect to etcd", zap.Error(err))
			return 1
		}
		defer reg.Close()
		managerOpts = append(managerOpts, connection.WithRegistry(reg, int64(cfg.AnnounceTTL/time.Second)))
		consoleOpts = append(consoleOpts, console.WithRegistry(reg, cfg.Channel))
		go watchChannel(ctx, reg, cfg.Channel, logger)
	}

	robotModule := app.New(app.Config{
		Channel:        channel,
		Robot:          cfg.Robot,
		Interval:       cfg.Interval,
		Output:         os.Stdout,
		ManagerOptions: managerOpts,
		Logger:         logger,
	})

	consoleOpts = append(consoleOpts, console.WithLogger(logger), console.WithExit(robotModule.Stop))
	c := console.New(robotModule.Module().Interpreter(), os.Stdout, consoleOpts...)
	go func() {
		if err := c.Run(ctx, os.Stdin); err != nil {
			logger.Warn("console stopped", zap.Error(err))
		}
	}()

	if err := robotModule.Start(ctx); err != nil {
		return 1
	}
	return 0
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if cfg.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func serveMetrics(addr string, logger *zap.Logger) (*metric.Metrics, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := metric.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// watchChannel logs every change to the set of announced publishers.
func watchChannel(ctx context.Context, reg registry.Registry, channel string, logger *zap.Logger) {
	for endpoints := range reg.Watch(ctx, channel) {
		addrs := make([]string, 0, len(endpoints))
		for _, ep := range endpoints {
			addrs = append(addrs, ep.Addr)
		}
		logger.Info("channel publishers changed", zap.String("channel", channel), zap.Strings("publishers", addrs))
	}
}
