// Package module wires the scheduler daemon: the job runner plus its
// small control surface
package module

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/modkit"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/config"
	phttp "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/net/http"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/scheduler/service"
	syncdom "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/domain"
)

// Ports exposes the runner to the daemon main
type Ports struct {
	Runner *service.Runner
}

// Module implements the scheduler module
type Module struct {
	deps   modkit.Deps
	ports  Ports
	syncer syncdom.SyncPort
}

// Options holds scheduler configuration
type Options struct {
	Addr     string
	DailyAt  string
	Interval time.Duration
	Cron     string
}

// FromConfig reads scheduler options with the BVTL_SCHED_ prefix
// exactly one schedule shape is used: cron wins over interval, interval
// over daily
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("BVTL_SCHED_")
	return Options{
		Addr:     sc.MayString("ADDR", ":7600"),
		DailyAt:  sc.MayString("DAILY_AT", "08:00"),
		Interval: sc.MayDuration("INTERVAL", 0),
		Cron:     sc.MayString("CRON", ""),
	}
}

// New wires the runner with the reconciliation job
func New(deps modkit.Deps, syncer syncdom.SyncPort) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	runner := service.NewRunner()

	job := func(ctx context.Context) error {
		_, err := syncer.Run(ctx, syncdom.RunRequest{})
		return err
	}

	var err error
	switch {
	case opts.Cron != "":
		err = runner.AddCron("sync", opts.Cron, job)
	case opts.Interval > 0:
		err = runner.AddInterval("sync", opts.Interval, job)
	default:
		err = runner.AddDaily("sync", opts.DailyAt, job)
	}
	if err != nil {
		return nil, err
	}

	return &Module{deps: deps, ports: Ports{Runner: runner}, syncer: syncer}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "scheduler" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts the daemon control surface
func (m *Module) MountRoutes(r phttp.Router) {
	runner := m.ports.Runner

	phttp.GetJSON(r, "/healthz", func(*http.Request) (any, error) {
		return runner.Health(), nil
	})
	phttp.GetJSON(r, "/status", func(*http.Request) (any, error) {
		return struct {
			Health  service.Health      `json:"health"`
			LastRun *syncdom.RunSummary `json:"last_sync,omitempty"`
		}{Health: runner.Health(), LastRun: m.syncer.LastRun()}, nil
	})
	phttp.GetJSON(r, "/jobs", func(*http.Request) (any, error) {
		return runner.Jobs(), nil
	})

	phttp.PostJSON(r, "/jobs/{name}/run", func(req *http.Request) (any, error) {
		name := chi.URLParam(req, "name")
		rec, err := runner.RunNow(req.Context(), name)
		if err != nil {
			return nil, err
		}
		return rec, nil
	})
	phttp.PostJSON(r, "/jobs/{name}/pause", func(req *http.Request) (any, error) {
		name := chi.URLParam(req, "name")
		if err := runner.Pause(name); err != nil {
			return nil, err
		}
		return map[string]string{"job": name, "state": "paused"}, nil
	})
	phttp.PostJSON(r, "/jobs/{name}/resume", func(req *http.Request) (any, error) {
		name := chi.URLParam(req, "name")
		if err := runner.Resume(name); err != nil {
			return nil, err
		}
		return map[string]string{"job": name, "state": "active"}, nil
	})
}
