// Package module wires the tracking service
package module

import (
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/modkit"
	phttp "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/net/http"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/tracking/domain"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/tracking/repo"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/tracking/service"
)

// Ports exposes the tracking surface to other modules
// Manual is the concrete service; the reconciliation run consumes its
// unsynced-hours view through it
type Ports struct {
	Tracker domain.TrackerPort
	Manual  *service.Service
}

// Module implements the tracking module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New wires the file store and service from config
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)
	store := repo.NewFile(opts.StorePath)
	svc := service.New(store)

	return &Module{deps: deps, ports: Ports{Tracker: svc, Manual: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "tracking" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts nothing; tracking is CLI driven
func (m *Module) MountRoutes(phttp.Router) {}
