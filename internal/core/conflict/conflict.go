// Package conflict detects competing writes against work item effort fields
// and resolves them under a configured strategy
package conflict

import (
	"fmt"
	"sync"
	"time"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"
)

// Conflict types
const (
	TypeManualUpdate     = "manual_update"
	TypeValueMismatch    = "value_mismatch"
	TypeOverbudget       = "overbudget"
	TypeWorkItemLocked   = "work_item_locked"
	TypePermissionDenied = "permission_denied"
)

// Severities
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Resolution strategies
const (
	StrategyOverride = "override"
	StrategyAdd      = "add"
	StrategySkip     = "skip"
	StrategyFail     = "fail"
)

// overbudgetRatio flags proposed effort far beyond the estimate
const overbudgetRatio = 2.5

// logCap bounds the in-memory conflict log
const logCap = 500

// Conflict is one detected contention on a work item
type Conflict struct {
	WorkItemID int       `json:"work_item_id"`
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Detail     string    `json:"detail"`
	CanProceed bool      `json:"can_proceed"`
	DetectedAt time.Time `json:"detected_at"`
}

// Check is the input for one work item's conflict scan
// LastKnown is nil when no previous run recorded the item
type Check struct {
	Item      workitems.WorkItem
	LastKnown *float64
	Proposed  float64
	CanWrite  bool
}

// Detector scans checks and keeps a bounded log of what it found
type Detector struct {
	mu  sync.Mutex
	log []Conflict
	now func() time.Time
}

// NewDetector builds a Detector
func NewDetector() *Detector {
	return &Detector{now: time.Now}
}

// Detect scans one check and records every conflict found
// a critical conflict marks the whole set as not proceedable
func (d *Detector) Detect(c Check) []Conflict {
	var out []Conflict
	add := func(typ, severity, detail string, canProceed bool) {
		out = append(out, Conflict{
			WorkItemID: c.Item.ID,
			Type:       typ,
			Severity:   severity,
			Detail:     detail,
			CanProceed: canProceed,
			DetectedAt: d.now(),
		})
	}

	if c.Item.Locked() {
		add(TypeWorkItemLocked, SeverityCritical,
			fmt.Sprintf("el work item está en estado %s y no admite escrituras", c.Item.State), false)
	}
	if !c.CanWrite {
		add(TypePermissionDenied, SeverityCritical,
			"la credencial no tiene permisos de escritura sobre el proyecto", false)
	}

	current := c.Item.CompletedHours
	switch {
	case c.LastKnown != nil && *c.LastKnown != current:
		add(TypeManualUpdate, SeverityHigh,
			fmt.Sprintf("horas completadas cambiaron de %.2f a %.2f fuera de la sincronización",
				*c.LastKnown, current), true)
	case c.LastKnown == nil && current > 0:
		add(TypeValueMismatch, SeverityMedium,
			fmt.Sprintf("el work item ya registra %.2f horas sin historial de sincronización", current), true)
	}

	if c.Item.EstimatedHours > 0 && c.Proposed/c.Item.EstimatedHours > overbudgetRatio {
		add(TypeOverbudget, SeverityHigh,
			fmt.Sprintf("las %.2f horas propuestas superan %.1fx la estimación de %.2f",
				c.Proposed, overbudgetRatio, c.Item.EstimatedHours), true)
	}

	if len(out) > 0 {
		d.record(out)
	}
	return out
}

func (d *Detector) record(cs []Conflict) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, cs...)
	if excess := len(d.log) - logCap; excess > 0 {
		d.log = d.log[excess:]
	}
}

// CanProceed reports whether every conflict in cs allows a resolved write
func CanProceed(cs []Conflict) bool {
	for _, c := range cs {
		if !c.CanProceed {
			return false
		}
	}
	return true
}

// Recommend picks the strategy a human reviewer would likely choose
// blocked items fail, manual edits and budget blowouts are skipped, and a
// plain value mismatch is overridden or added depending on which side wins
func Recommend(cs []Conflict, current, proposed float64) string {
	if len(cs) == 0 {
		return StrategyOverride
	}
	if !CanProceed(cs) {
		return StrategyFail
	}
	onlyMismatch := true
	for _, c := range cs {
		switch c.Type {
		case TypeManualUpdate, TypeOverbudget:
			return StrategySkip
		case TypeValueMismatch:
		default:
			onlyMismatch = false
		}
	}
	if onlyMismatch {
		if proposed > current {
			return StrategyOverride
		}
		return StrategyAdd
	}
	return StrategySkip
}

// Resolve computes the final hours under strategy
// write reports whether a provider write should happen at all
func Resolve(strategy string, current, proposed float64, cs []Conflict) (final float64, write bool, err error) {
	if !CanProceed(cs) {
		return current, false, perr.Newf(perr.ErrorCodeConflictUnresolved,
			"conflicto crítico sin resolución posible en esta corrida")
	}
	switch strategy {
	case StrategyOverride:
		return timeutil.Round2(proposed), true, nil
	case StrategyAdd:
		return timeutil.Round2(current + proposed), true, nil
	case StrategySkip:
		return current, false, nil
	case StrategyFail:
		if len(cs) == 0 {
			return timeutil.Round2(proposed), true, nil
		}
		return current, false, perr.Newf(perr.ErrorCodeConflictUnresolved,
			"estrategia fail: %d conflicto(s) detectado(s)", len(cs))
	default:
		return current, false, perr.InvalidInputf("estrategia de resolución desconocida %q", strategy)
	}
}

// Summary counts logged conflicts by type and severity
type Summary struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
}

// LogSummary aggregates the bounded log
func (d *Detector) LogSummary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Summary{ByType: map[string]int{}, BySeverity: map[string]int{}}
	for _, c := range d.log {
		s.Total++
		s.ByType[c.Type]++
		s.BySeverity[c.Severity]++
	}
	return s
}

// Log returns a copy of the logged conflicts, oldest first
func (d *Detector) Log() []Conflict {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Conflict, len(d.log))
	copy(out, d.log)
	return out
}

// ClearLog empties the log
func (d *Detector) ClearLog() {
	d.mu.Lock()
	d.log = nil
	d.mu.Unlock()
}
