package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	hxsignupecho "github.com/pthm/hxsignup/adapters/echo"
	"github.com/pthm/hxsignup/components/register"
	"github.com/pthm/hxsignup/internal/devapi"
	"github.com/pthm/hxsignup/lib/client"
	"github.com/pthm/hxsignup/lib/config"
	"github.com/pthm/hxsignup/lib/metrics"
)

// app is the wired server.
type app struct {
	echo    *echo.Echo
	store   *register.Store
	form    *register.Register
	metrics *prometheus.Registry
	cron    *cron.Cron
	users   *devapi.UserStore
	log     *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{log: logger}

	a.metrics = prometheus.NewRegistry()
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(appName, a.metrics)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.LogAttrs(c.Request().Context(), slog.LevelDebug, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	a.echo = e

	var key []byte
	if cfg.Server.Key != "" {
		key = []byte(cfg.Server.Key)
	} else {
		logger.Warn("server.key not set, using a random key; open forms will not survive a restart")
	}
	reg := hxsignupecho.Mount(e, hxsignupecho.WithKey(key), hxsignupecho.WithLogger(logger))

	a.store = register.NewStore(register.StoreOptions{
		Submitter: client.New(client.Options{BaseURL: cfg.BackendURL(), Timeout: cfg.Backend.Timeout}),
		LoginPath: cfg.Form.LoginPath,
		Logger:    logger,
		Metrics:   m,
	})
	a.form = register.New(a.store)
	reg.Add(a.form)

	a.cron = cron.New()
	if _, err := a.store.Schedule(a.cron, cfg.Form.SweepSchedule, cfg.Form.IdleTTL); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	a.cron.Start()

	if cfg.DevAPI.Enabled {
		users, err := devapi.OpenUserStore(ctx, cfg.DevAPI.DSN, 0)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("devapi: %w", err)
		}
		a.users = users
		devapi.NewServer(users, logger).Routes(e)
	}

	e.GET("/", a.handleIndex)
	e.GET(cfg.Form.LoginPath, a.handleLogin)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{})))
	return a, nil
}

func (a *app) handleIndex(c echo.Context) error {
	form, err := a.form.Mount(c.Request().Context())
	if err != nil {
		return err
	}
	return hxsignupecho.Render(c, page("Create an account", form))
}

func (a *app) handleLogin(c echo.Context) error {
	return hxsignupecho.Render(c, page("Login", loginNotice()))
}

// Close stops background work and releases the dev database.
func (a *app) Close() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.users != nil {
		if err := a.users.Close(); err != nil {
			a.log.Warn("close devapi store", "err", err)
		}
	}
}
