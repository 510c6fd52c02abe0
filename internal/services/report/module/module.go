// Package module wires the report service
package module

import (
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/modkit"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/config"
	phttp "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/net/http"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/report/service"
)

// Ports exposes the report surface
type Ports struct {
	Reports *service.Service
}

// Module implements the report module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// Options holds report configuration
type Options struct {
	Dir string
}

// FromConfig reads report options with the BVTL_REPORT_ prefix
func FromConfig(cfg config.Conf) Options {
	rp := cfg.Prefix("BVTL_REPORT_")
	return Options{Dir: rp.MayString("DIR", service.DefaultDir)}
}

// New wires the report service from config
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)
	return &Module{deps: deps, ports: Ports{Reports: service.New(opts.Dir)}}
}

// Name returns the module name
func (m *Module) Name() string { return "report" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts nothing; reports are CLI driven
func (m *Module) MountRoutes(phttp.Router) {}
