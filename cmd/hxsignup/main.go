// Package main provides the hxsignup binary: an HTTP server hosting the
// registration form, and optionally a development registration backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/hxsignup/lib/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "hxsignup"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Server-rendered registration form",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	return cmd
}

// flags are command-line overrides applied on top of the config file.
type flags struct {
	configPath string
	addr       string
	backendURL string
	logLevel   string
	devAPI     bool
}

func (f *flags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&f.addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&f.backendURL, "backend", "", "Registration backend base URL (overrides backend.base_url; empty means the dev API on --addr)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	cmd.Flags().BoolVar(&f.devAPI, "dev-api", false, "Serve the development /register backend (overrides devapi.enabled)")
}

// load reads the config file and applies flags that were set.
func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(f.configPath, func(cfg *config.Config) {
		if f.addr != "" {
			cfg.Server.Addr = f.addr
		}
		if f.backendURL != "" {
			cfg.Backend.BaseURL = f.backendURL
		}
		if f.logLevel != "" {
			cfg.Log.Level = f.logLevel
		}
		if cmd.Flags().Changed("dev-api") {
			cfg.DevAPI.Enabled = f.devAPI
		}
	})
}

func serveCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	f.register(cmd)
	return cmd
}

func configCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "backend", cfg.BackendURL(), "devapi", cfg.DevAPI.Enabled)
		errCh <- app.echo.Start(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.echo.Shutdown(shutdownCtx)
}
