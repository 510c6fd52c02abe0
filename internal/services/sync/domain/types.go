// Package domain holds the reconciliation run types and ports
package domain

import (
	"time"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/conflict"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/variance"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
)

// Window is the calendar span a run covers
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// RunRequest configures one reconciliation run
// Force skips the writer's pre-write validation for this run only
type RunRequest struct {
	Window   Window
	DryRun   bool
	Force    bool
	Strategy string
}

// WriteRequest asks the writer to set completed hours on one item
// DryRun and Force widen the writer's own options for this request;
// ReadOnly records a failed permission probe and makes the write refuse
type WriteRequest struct {
	Item     workitems.WorkItem
	Hours    float64
	Comment  string
	DryRun   bool
	Force    bool
	ReadOnly bool
}

// WriteOutcome classifies one write attempt
type WriteOutcome string

// Outcomes
const (
	OutcomeApplied WriteOutcome = "applied"
	OutcomeSkipped WriteOutcome = "skipped"
	OutcomeDryRun  WriteOutcome = "dry_run"
	OutcomeFailed  WriteOutcome = "failed"
)

// WriteResult is one write attempt's record
type WriteResult struct {
	WorkItemID int          `json:"work_item_id"`
	Previous   float64      `json:"previous"`
	Hours      float64      `json:"hours"`
	Outcome    WriteOutcome `json:"outcome"`
	Warning    string       `json:"warning,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// WriteStats aggregates a write batch
// Successful plus Failed plus Skipped always equals Total
type WriteStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// RunSummary is the outcome of one reconciliation run
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Window     Window    `json:"window"`
	DryRun     bool      `json:"dry_run"`
	Strategy   string    `json:"strategy"`

	MeetingsFetched int     `json:"meetings_fetched"`
	MeetingsValid   int     `json:"meetings_valid"`
	MatchRate       float64 `json:"match_rate"`
	Unmatched       int     `json:"unmatched"`
	ManualHours     float64 `json:"manual_hours"`

	Comparisons []variance.Comparison `json:"comparisons"`
	Conflicts   []conflict.Conflict   `json:"conflicts"`
	Writes      []WriteResult         `json:"writes"`
	WriteStats  WriteStats            `json:"write_stats"`

	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the run finished without a fatal error
func (r RunSummary) Succeeded() bool { return r.Error == "" }
