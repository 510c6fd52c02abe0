package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/domain"
)

const (
	// maxWritableHours rejects obviously corrupted aggregations
	maxWritableHours = 1000

	// hardVarianceRatio blocks writes this far beyond the estimate
	hardVarianceRatio = 2.0

	// warnVarianceRatio lets the write through with a warning attached
	warnVarianceRatio = 1.5

	// auditCap bounds the in-memory write audit log
	auditCap = 1000
)

// defaultCommentFmt is the history note stamped on automated writes
const defaultCommentFmt = "Tiempo completado actualizado automáticamente a %.2f horas por BV-Time-Logger"

// WriterOptions configures write behavior
// Force skips the pre-write validation, the audit trail still records everything
type WriterOptions struct {
	DryRun      bool
	Force       bool
	StopOnError bool
}

// AuditRecord is one line of the write audit trail
type AuditRecord struct {
	At     time.Time          `json:"at"`
	Result domain.WriteResult `json:"result"`
}

// Writer applies resolved hours to the provider, serially, with a bounded
// audit log of everything it did or refused to do
type Writer struct {
	items domain.WorkItemsPort
	opts  WriterOptions
	log   logger.Logger
	now   func() time.Time

	mu    sync.Mutex
	audit []AuditRecord
}

// NewWriter builds a Writer
func NewWriter(items domain.WorkItemsPort, opts WriterOptions) *Writer {
	return &Writer{items: items, opts: opts, log: *logger.Named("sync.writer"), now: time.Now}
}

// validate runs the pre-write checks, attaching warnings to res as it goes
// terminal item states only warn here; blocking on them is the conflict
// detector's job. Force disables every check except the warning
func (w *Writer) validate(req domain.WriteRequest, res *domain.WriteResult) error {
	if req.Item.Terminal() {
		res.Warning = fmt.Sprintf("el work item %d está en estado %s, la escritura queda en el historial",
			req.Item.ID, req.Item.State)
		w.log.Warn().Int("work_item", req.Item.ID).Str("state", req.Item.State).
			Msg("writing effort to a terminal item")
	}
	if w.opts.Force || req.Force {
		return nil
	}

	if req.ReadOnly {
		return perr.Forbiddenf("la credencial no tiene permisos de escritura sobre el proyecto")
	}
	if res.Hours < 0 || res.Hours > maxWritableHours {
		return perr.Newf(perr.ErrorCodeWriteRejected,
			"horas %.2f fuera del rango escribible [0, %d]", res.Hours, maxWritableHours)
	}
	if est := req.Item.EstimatedHours; est > 0 {
		ratio := res.Hours / est
		if ratio > hardVarianceRatio {
			return perr.Newf(perr.ErrorCodeWriteRejected,
				"las %.2f horas superan %.1fx la estimación de %.2f del work item %d",
				res.Hours, hardVarianceRatio, est, req.Item.ID)
		}
		if ratio > warnVarianceRatio {
			res.Warning = fmt.Sprintf("las %.2f horas superan %.1fx la estimación de %.2f",
				res.Hours, warnVarianceRatio, est)
		}
	}
	return nil
}

// Write validates and applies one request
// the returned result is always meaningful, even when err is non-nil
func (w *Writer) Write(ctx context.Context, req domain.WriteRequest) (domain.WriteResult, error) {
	res := domain.WriteResult{
		WorkItemID: req.Item.ID,
		Previous:   req.Item.CompletedHours,
		Hours:      timeutil.Round2(req.Hours),
	}

	if err := w.validate(req, &res); err != nil {
		res.Outcome = domain.OutcomeFailed
		res.Error = err.Error()
		w.record(res)
		return res, err
	}

	if res.Hours == res.Previous {
		res.Outcome = domain.OutcomeSkipped
		w.record(res)
		return res, nil
	}

	if w.opts.DryRun || req.DryRun {
		res.Outcome = domain.OutcomeDryRun
		w.log.Info().Int("work_item", req.Item.ID).Float64("hours", res.Hours).Msg("dry-run, write suppressed")
		w.record(res)
		return res, nil
	}

	comment := req.Comment
	if comment == "" {
		comment = fmt.Sprintf(defaultCommentFmt, res.Hours)
	}
	if _, err := w.items.UpdateCompleted(ctx, req.Item.ID, res.Hours, comment); err != nil {
		res.Outcome = domain.OutcomeFailed
		res.Error = err.Error()
		w.record(res)
		return res, err
	}

	res.Outcome = domain.OutcomeApplied
	w.log.Info().Int("work_item", req.Item.ID).
		Float64("previous", res.Previous).Float64("hours", res.Hours).Msg("completed work updated")
	w.record(res)
	return res, nil
}

// WriteBatch applies requests serially in order
// with StopOnError the first failure aborts the remainder; otherwise every
// request is attempted and failures are carried in the results
func (w *Writer) WriteBatch(ctx context.Context, reqs []domain.WriteRequest) ([]domain.WriteResult, domain.WriteStats, error) {
	var (
		results []domain.WriteResult
		stats   domain.WriteStats
	)
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return results, stats, perr.Wrap(err, perr.ErrorCodeCancelled, "write batch cancelled")
		}

		res, err := w.Write(ctx, req)
		results = append(results, res)
		stats.Total++
		switch res.Outcome {
		case domain.OutcomeApplied, domain.OutcomeDryRun:
			stats.Successful++
		case domain.OutcomeSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}

		if err != nil && w.opts.StopOnError {
			return results, stats, perr.Wrapf(err, perr.CodeOf(err),
				"lote detenido en la escritura %d de %d", i+1, len(reqs))
		}
	}
	return results, stats, nil
}

func (w *Writer) record(res domain.WriteResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.audit = append(w.audit, AuditRecord{At: w.now().UTC(), Result: res})
	if excess := len(w.audit) - auditCap; excess > 0 {
		w.audit = w.audit[excess:]
	}
}

// Audit returns a copy of the audit trail, oldest first
func (w *Writer) Audit() []AuditRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]AuditRecord, len(w.audit))
	copy(out, w.audit)
	return out
}
