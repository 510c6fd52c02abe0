package module

import (
	"strconv"
	"strings"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/azdo"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/msgraph"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/conflict"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/match"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/meetings"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/config"
)

// Options holds sync configuration
type Options struct {
	GraphClientID     string
	GraphClientSecret string
	GraphTenantID     string
	GraphBaseURL      string

	AzdoBaseURL string
	AzdoProject string
	AzdoPAT     string

	UserID    string
	UserEmail string
	Timezone  string

	WindowDays    int
	Strategy      string
	DryRun        bool
	Force         bool
	StopOnError   bool
	Workers       int
	QueryTop      int
	MaxQPS        float64
	MinSimilarity float64
	Rules         []match.Rule
}

// FromConfig reads sync options with the BVTL_SYNC_ prefix
// provider credentials use their own prefixes so they can be shared
func FromConfig(cfg config.Conf) Options {
	graph := cfg.Prefix("BVTL_GRAPH_")
	boards := cfg.Prefix("BVTL_AZDO_")
	sy := cfg.Prefix("BVTL_SYNC_")

	return Options{
		GraphClientID:     graph.MustString("CLIENT_ID"),
		GraphClientSecret: graph.MustString("CLIENT_SECRET"),
		GraphTenantID:     graph.MustString("TENANT_ID"),
		GraphBaseURL:      graph.MayString("BASE_URL", msgraph.DefaultBaseURL),

		AzdoBaseURL: boards.MustString("ORG_URL"),
		AzdoProject: boards.MustString("PROJECT"),
		AzdoPAT:     boards.MustString("PAT"),

		UserID:    sy.MustString("USER_ID"),
		UserEmail: sy.MayString("USER_EMAIL", ""),
		Timezone:  sy.MayString("TIMEZONE", meetings.DefaultZone),

		WindowDays: sy.MayInt("WINDOW_DAYS", 7),
		Strategy: sy.MayEnum("STRATEGY", conflict.StrategyOverride,
			conflict.StrategyOverride, conflict.StrategyAdd, conflict.StrategySkip, conflict.StrategyFail),
		DryRun:        sy.MayBool("DRY_RUN", false),
		Force:         sy.MayBool("FORCE", false),
		StopOnError:   sy.MayBool("STOP_ON_ERROR", false),
		Workers:       sy.MayInt("WORKERS", 4),
		QueryTop:      sy.MayInt("QUERY_TOP", 200),
		MaxQPS:        sy.MayFloat64("MAX_QPS", 0),
		MinSimilarity: sy.MayFloat64("MIN_SIMILARITY", match.DefaultMinSimilar),
		Rules:         parseRules(sy.MayCSV("RULES", nil)),
	}
}

// parseRules turns "pattern=id" pairs into match rules
// malformed pairs are dropped here and re-validated on AddRule
func parseRules(raw []string) []match.Rule {
	var out []match.Rule
	for _, pair := range raw {
		eq := strings.LastIndex(pair, "=")
		if eq <= 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(pair[eq+1:]))
		if err != nil {
			continue
		}
		out = append(out, match.Rule{Pattern: strings.TrimSpace(pair[:eq]), WorkItemID: id})
	}
	return out
}

// CandidateWIQL re-exported for operators who want to inspect the default query
const CandidateWIQL = azdo.CandidateWIQL
