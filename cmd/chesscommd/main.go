package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chesscomm/internal/commentary"
	"chesscomm/internal/config"
	"chesscomm/internal/device"
	"chesscomm/internal/httpapi"
	"chesscomm/internal/llm"
	"chesscomm/internal/manager"
	"chesscomm/internal/segment"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, addr, logLevel string
	root := &cobra.Command{
		Use:           "chesscommd",
		Short:         "Serve chess commentary and segmentation over HTTP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return fmt.Errorf("config: %w", err)
				}
			}
			if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			return serve(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "config file (.yaml, .json or .toml)")
	root.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error|off")
	return root
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if strings.EqualFold(level, "off") {
		lvl = zerolog.Disabled
	} else if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && l != zerolog.NoLevel {
		lvl = l
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("svc", "chesscommd").Logger()
}

func serve(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	opts := cfg.RuntimeOptions()
	opts.Logger = log
	rt, err := llm.NewRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	gen := commentary.New(commentary.Options{
		Runtime: rt,
		Probe:   device.NewSystemProbe(),
		ModelID: cfg.ModelID,
		Logger:  log,
	})
	mcfg := manager.ManagerConfig{
		Generator:     gen,
		MaxConcurrent: cfg.MaxConcurrent,
		MaxWait:       time.Duration(cfg.QueueWaitSec) * time.Second,
		Logger:        log,
	}
	if cfg.SegmentURL != "" {
		mcfg.Segmenter = segment.New(cfg.SegmentURL, time.Duration(cfg.RequestTimeoutSec)*time.Second)
	}
	if strings.EqualFold(cfg.Backend, llm.BackendServer) || cfg.Backend == "" {
		url, key := cfg.ServerURL, cfg.APIKey
		mcfg.ReadyCheck = func() bool { return llm.Healthy(url, key, 2*time.Second) }
	}
	mgr := manager.NewWithConfig(mcfg)

	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(cfg.LogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRequestTimeoutSeconds(int64(cfg.RequestTimeoutSec))
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Str("model", cfg.ModelID).Msg("chesscommd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	log.Info().Msg("shutting down")
	if !mgr.Drain() {
		cancelBase()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
