package module

import (
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/config"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/tracking/repo"
)

// Options holds tracking configuration
type Options struct {
	StorePath string
}

// FromConfig reads tracking options with the BVTL_STORE_ prefix
func FromConfig(cfg config.Conf) Options {
	st := cfg.Prefix("BVTL_STORE_")
	return Options{
		StorePath: st.MayString("PATH", repo.DefaultPath),
	}
}
