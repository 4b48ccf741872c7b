// Package server implements the entry point for running the seat monitor web server.
package server

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"go.viam.com/utils/perf"

	"github.com/ysay/zari-vision/components/camera"
	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/services/seatmonitor"
	"github.com/ysay/zari-vision/services/vision"
	"github.com/ysay/zari-vision/web"
)

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=seat monitor config file"`
	Debug      bool   `flag:"debug"`
	Trace      bool   `flag:"trace,usage=log opencensus spans"`
	Version    bool   `flag:"version,usage=print version"`
	WebProfile bool   `flag:"webprofile,usage=include profiler in http server"`
}

// RunServer is an entry point to starting the web server that can be called by main or
// otherwise be used to initialize the server.
func RunServer(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	// Always log the version, return early if the '-version' flag was provided
	logger.Infof("zari-vision Version: %s, Hash: %s", config.Version, config.GitRevision)
	if argsParsed.Version {
		return nil
	}

	if argsParsed.Trace {
		exp := perf.NewNiceLoggingSpanExporter()
		trace.RegisterExporter(exp)
		trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})
	}

	initialReadCtx, cancel := context.WithTimeout(ctx, time.Second*5)
	cfg, err := config.Read(initialReadCtx, argsParsed.ConfigFile, logger)
	cancel()
	if err != nil {
		return err
	}
	if argsParsed.Debug {
		cfg.Debug = true
	}

	logger, err = logging.NewLoggerFromConfig("zari", cfg.Log)
	if err != nil {
		return err
	}
	if cfg.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	defer utils.UncheckedErrorFunc(logger.Sync)

	err = serveWeb(ctx, cfg, argsParsed, logger)
	if err != nil {
		logger.Errorw("error serving web", "error", err)
	}
	return err
}

func serveWeb(ctx context.Context, cfg *config.Config, argsParsed Arguments, logger logging.Logger) (err error) {
	source, err := camera.FromConfig(ctx, cfg.Camera, logger.Sublogger(camera.SubtypeName))
	if err != nil {
		return err
	}
	detector, err := vision.FromConfig(ctx, cfg.Detector, logger.Sublogger(vision.SubtypeName))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, detector.Close(context.Background()))
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := seatmonitor.NewMetrics(reg)

	monitor := seatmonitor.New(source, detector, seatmonitor.OptionsFromConfig(cfg), nil, metrics,
		logger.Sublogger("seatmonitor"))

	options := web.Options{
		BindAddress:        cfg.Network.BindAddress,
		CORSAllowedOrigins: cfg.Network.CORSAllowedOrigins,
		Debug:              cfg.Debug,
		Pprof:              argsParsed.WebProfile,
		Gatherer:           reg,
	}
	if host := bindHost(cfg.Network.BindAddress); host == "" || host == "0.0.0.0" || host == "::" {
		logger.Warn("binding to all interfaces")
	}
	logger.Infow("starting",
		"camera", cfg.Camera.Model,
		"detector", cfg.Detector.Model,
		"payload", cfg.Stream.Payload,
		"interval", time.Duration(cfg.Stream.Interval),
	)
	defer func() {
		logger.Infow("stopped", "active_sessions", metrics.ActiveSessions())
	}()
	return web.RunWeb(ctx, monitor, options, logger.Sublogger("web"))
}

func bindHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return host
}
