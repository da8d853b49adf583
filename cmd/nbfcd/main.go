// Command nbfcd is the notebook fan control daemon: it loads a model
// and service configuration, drives the EC on a fixed poll interval,
// and answers control requests over a UNIX socket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/nbfc-linux/nbfcd/internal/config"
	"github.com/nbfc-linux/nbfcd/internal/ec"
	"github.com/nbfc-linux/nbfcd/internal/ipc"
	"github.com/nbfc-linux/nbfcd/internal/metrics"
	"github.com/nbfc-linux/nbfcd/internal/service"
)

const defaultSocketPath = "/var/run/nbfc_service.socket"

func main() {
	configDir := flag.String("config-dir", "/etc/nbfc/configs", "directory holding model configuration files, named <SelectedConfigId>.json")
	serviceConfigPath := flag.String("service-config", "/var/run/nbfc/service.json", "path to the mutable service configuration file")
	socketPath := flag.String("socket", defaultSocketPath, "path of the UNIX control socket")
	readOnly := flag.Bool("read-only", false, "never write to the embedded controller")
	debug := flag.Bool("debug", false, "log every embedded controller operation")
	ecType := flag.String("embedded-controller", "", "pin the embedded controller backend (ec_sys, acpi_ec, dev_port, dummy); empty auto-selects")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if *debug {
		logLevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	logger := log.Logger

	serviceCfg, err := config.LoadServiceConfig(*serviceConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *serviceConfigPath).Msg("load service configuration")
	}
	for _, w := range serviceCfg.Normalize() {
		logger.Warn().Msg(w)
	}
	if serviceCfg.SelectedConfigId == "" {
		logger.Fatal().Msg("service configuration has no SelectedConfigId")
	}

	modelConfigPath := filepath.Join(*configDir, serviceCfg.SelectedConfigId+".json")
	modelCfg, err := config.LoadModelConfig(modelConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", modelConfigPath).Msg("load model configuration")
	}
	if err := serviceCfg.Validate(len(modelCfg.FanConfigurations)); err != nil {
		logger.Fatal().Err(err).Msg("validate service configuration")
	}
	for _, w := range modelCfg.Warnings() {
		logger.Warn().Msg(w)
	}

	pinnedType := *ecType
	if pinnedType == "" && serviceCfg.EmbeddedControllerType != "" {
		parsed, err := config.ParseEmbeddedControllerType(string(serviceCfg.EmbeddedControllerType))
		if err != nil {
			logger.Fatal().Err(err).Msg("validate service configuration")
		}
		pinnedType = string(parsed)
	}

	ecFactory := func() (ec.EC, error) {
		var backend ec.EC
		var err error
		if pinnedType != "" {
			backend, err = ec.ByType(pinnedType)
		} else {
			backend, err = ec.FindWorking()
		}
		if err != nil {
			return nil, err
		}
		if *debug {
			backend = ec.NewDebug(backend, logger)
		}
		return backend, nil
	}

	svc := service.New(modelCfg, serviceCfg, *serviceConfigPath, *readOnly, logger)
	lifecycle := service.NewLifecycle(svc, ecFactory)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := lifecycle.Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("service initialization failed")
	}
	logger.Info().Str("state", lifecycle.State()).Msg("service initialized")

	ipcServer := ipc.NewServer(*socketPath, svc, logger)
	if err := ipcServer.Listen(); err != nil {
		_ = lifecycle.Teardown(ctx)
		logger.Fatal().Err(err).Msg("ipc listen failed")
	}

	ipcErrs := make(chan error, 1)
	go func() { ipcErrs <- ipcServer.Serve() }()

	if *metricsAddr != "" {
		metrics.Register(svc)
		go func() {
			if err := metrics.Serve(ctx, *metricsAddr); err != nil {
				logger.Warn().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	timer := time.NewTimer(svc.PollInterval())
	defer timer.Stop()

	logger.Info().Msg("entering control loop")
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-ipcErrs:
			logger.Error().Err(err).Msg("ipc server stopped")
			break loop
		case <-timer.C:
			delay := svc.PollInterval()
			if err := svc.Tick(); err != nil {
				logger.Error().Err(err).Msg("control tick failed too many times, giving up")
				break loop
			}
			if svc.Failing() {
				delay = service.RetryDelay
			}
			timer.Reset(delay)
		}
	}

	logger.Info().Msg("shutting down")
	if err := ipcServer.Close(); err != nil {
		logger.Warn().Err(err).Msg("close ipc server")
	}
	if err := lifecycle.Teardown(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("teardown failed")
	}
	fmt.Fprintln(os.Stderr, "nbfcd stopped")
}
