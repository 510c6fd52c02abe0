// Package service runs the reconciliation pipeline: collect meetings,
// match them to work items, compare effort, resolve conflicts, write back
package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/conflict"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/match"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/meetings"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/variance"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/domain"
)

const (
	// runLogCap bounds the kept run history
	runLogCap = 100

	// maxFanout caps concurrent per-item work regardless of config
	maxFanout = 8
)

// Config holds the orchestration knobs
type Config struct {
	UserID     string
	UserEmail  string
	Timezone   string
	WindowDays int
	Strategy   string
	Workers    int
	QueryTop   int

	// CandidateWIQL overrides the default open-item query
	CandidateWIQL string
}

// Service implements domain.SyncPort
type Service struct {
	cal    domain.CalendarPort
	items  domain.WorkItemsPort
	manual domain.ManualPort

	writer     *Writer
	matcher    *match.Matcher
	normalizer *meetings.Normalizer
	detector   *conflict.Detector

	cfg   Config
	log   logger.Logger
	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	runs      []domain.RunSummary
	lastKnown map[int]float64
}

// New wires the orchestrator
// cal and items are required; manual may be nil when no tracking store exists
func New(
	cal domain.CalendarPort,
	items domain.WorkItemsPort,
	manual domain.ManualPort,
	writer *Writer,
	matcher *match.Matcher,
	normalizer *meetings.Normalizer,
	cfg Config,
) *Service {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Workers > maxFanout {
		cfg.Workers = maxFanout
	}
	if cfg.Strategy == "" {
		cfg.Strategy = conflict.StrategyOverride
	}
	return &Service{
		cal:        cal,
		items:      items,
		manual:     manual,
		writer:     writer,
		matcher:    matcher,
		normalizer: normalizer,
		detector:   conflict.NewDetector(),
		cfg:        cfg,
		log:        *logger.Named("sync"),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
		lastKnown:  map[int]float64{},
	}
}

// Detector exposes the conflict log for reporting
func (s *Service) Detector() *conflict.Detector { return s.detector }

// Run executes one reconciliation pass
// the summary always comes back populated as far as the run got, even when
// err is non-nil; transport or auth failure on the first stage is fatal
func (s *Service) Run(ctx context.Context, req domain.RunRequest) (domain.RunSummary, error) {
	sum := domain.RunSummary{
		RunID:     s.newID(),
		StartedAt: s.now().UTC(),
		DryRun:    req.DryRun,
		Strategy:  req.Strategy,
	}
	if sum.Strategy == "" {
		sum.Strategy = s.cfg.Strategy
	}
	sum.Window = s.resolveWindow(req.Window)

	ctx = logger.WithRun(ctx, sum.RunID)
	log := logger.C(ctx)
	log.Info().
		Time("from", sum.Window.From).
		Time("to", sum.Window.To).
		Bool("dry_run", sum.DryRun).
		Str("strategy", sum.Strategy).
		Msg("reconciliation run started")

	finish := func(err error) (domain.RunSummary, error) {
		sum.FinishedAt = s.now().UTC()
		if err != nil {
			sum.Error = err.Error()
		}
		s.recordRun(sum)
		return sum, err
	}

	// stage 1: fetch both providers and probe write access concurrently
	var (
		rawEvents  []meetings.RawEvent
		candidates []workitems.WorkItem
		canWrite   = true
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		evs, err := s.cal.Events(gctx, s.cfg.UserID, sum.Window.From, sum.Window.To)
		if err != nil {
			return perr.Wrapf(err, perr.CodeOf(err), "calendar fetch failed")
		}
		rawEvents = evs
		return nil
	})
	g.Go(func() error {
		wiql := s.cfg.CandidateWIQL
		ids, err := s.items.QueryIDs(gctx, wiql, s.cfg.QueryTop)
		if err != nil {
			return perr.Wrapf(err, perr.CodeOf(err), "work item query failed")
		}
		items, err := s.items.Items(gctx, ids)
		if err != nil {
			return perr.Wrapf(err, perr.CodeOf(err), "work item read failed")
		}
		candidates = items
		return nil
	})
	g.Go(func() error {
		if _, err := s.items.Projects(gctx); err != nil {
			if perr.IsCode(err, perr.ErrorCodeForbidden) {
				canWrite = false
				return nil
			}
			return perr.Wrapf(err, perr.CodeOf(err), "permission probe failed")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return finish(err)
	}
	sum.MeetingsFetched = len(rawEvents)

	// stage 2: normalize and filter
	ms, normErrs := s.normalizer.NormalizeAll(rawEvents)
	for _, err := range normErrs {
		log.Warn().Err(err).Msg("event dropped during normalization")
	}
	ms = meetings.Active(meetings.InRange(ms, sum.Window.From, sum.Window.To))
	if s.cfg.UserEmail != "" {
		ms = meetings.WithAttendee(ms, s.cfg.UserEmail)
	}
	sum.MeetingsValid = len(ms)

	// pending manual hours join the proposal before the empty-run check
	manualHours := map[int]float64{}
	var manualIDs []string
	if s.manual != nil {
		var err error
		manualHours, manualIDs, err = s.manual.UnsyncedByWorkItem(ctx)
		if err != nil {
			return finish(err)
		}
		for _, h := range manualHours {
			sum.ManualHours = timeutil.Round2(sum.ManualHours + h)
		}
	}

	if len(ms) == 0 && len(manualHours) == 0 {
		return finish(perr.Newf(perr.ErrorCodeNoMeetings,
			"no hay reuniones ni horas manuales en la ventana %s a %s",
			timeutil.DayKey(sum.Window.From), timeutil.DayKey(sum.Window.To)))
	}
	if len(candidates) == 0 {
		return finish(perr.Newf(perr.ErrorCodeNoWorkItems, "la consulta de work items no devolvió candidatos"))
	}

	// stage 3: match
	batch := s.matcher.MatchBatch(ms, candidates)
	sum.MatchRate = batch.Rate
	sum.Unmatched = len(batch.Unmatched)

	// stage 4: aggregate proposed hours per work item
	proposed := map[int]float64{}
	hoursByMeeting := map[string]float64{}
	for _, m := range ms {
		hoursByMeeting[m.ID] = m.Hours
	}
	for _, hit := range batch.Matches {
		proposed[hit.WorkItemID] = timeutil.Round2(proposed[hit.WorkItemID] + hoursByMeeting[hit.MeetingID])
	}
	for id, h := range manualHours {
		proposed[id] = timeutil.Round2(proposed[id] + h)
	}

	byID := make(map[int]workitems.WorkItem, len(candidates))
	for _, wi := range candidates {
		byID[wi.ID] = wi
	}

	ids := make([]int, 0, len(proposed))
	for id := range proposed {
		if _, ok := byID[id]; ok {
			ids = append(ids, id)
		} else {
			log.Warn().Int("work_item", id).Msg("proposed hours for an item outside the candidate set")
		}
	}
	sort.Ints(ids)

	// stage 5: compare, detect, resolve, bounded fan-out per item
	type resolved struct {
		req  domain.WriteRequest
		comp variance.Comparison
		cs   []conflict.Conflict
		skip bool
	}
	results := make([]resolved, len(ids))

	s.mu.Lock()
	known := make(map[int]float64, len(s.lastKnown))
	for k, v := range s.lastKnown {
		known[k] = v
	}
	s.mu.Unlock()

	pg, pctx := errgroup.WithContext(ctx)
	pg.SetLimit(s.cfg.Workers)
	for i, id := range ids {
		i, id := i, id
		pg.Go(func() error {
			if err := pctx.Err(); err != nil {
				return perr.Wrap(err, perr.ErrorCodeCancelled, "run cancelled during resolution")
			}
			item := byID[id]
			hours := proposed[id]

			var last *float64
			if v, ok := known[id]; ok {
				last = &v
			}
			cs := s.detector.Detect(conflict.Check{
				Item:      item,
				LastKnown: last,
				Proposed:  hours,
				CanWrite:  canWrite,
			})

			final, write, err := conflict.Resolve(sum.Strategy, item.CompletedHours, hours, cs)
			r := resolved{
				comp: variance.Compare(item.ID, item.Title, item.EstimatedHours, final),
				cs:   cs,
			}
			if err != nil {
				log.Warn().Err(err).Int("work_item", id).Msg("conflict left unresolved, item skipped")
				r.skip = true
			} else if !write {
				r.skip = true
			} else {
				r.req = domain.WriteRequest{
					Item: item, Hours: final,
					DryRun: sum.DryRun, Force: req.Force, ReadOnly: !canWrite,
				}
			}
			results[i] = r
			return nil
		})
	}
	if err := pg.Wait(); err != nil {
		return finish(err)
	}

	var writeReqs []domain.WriteRequest
	for _, r := range results {
		sum.Comparisons = append(sum.Comparisons, r.comp)
		sum.Conflicts = append(sum.Conflicts, r.cs...)
		if !r.skip {
			writeReqs = append(writeReqs, r.req)
		}
	}

	// stage 6: write back and close out
	writes, stats, werr := s.writer.WriteBatch(ctx, writeReqs)
	sum.Writes = writes
	sum.WriteStats = stats

	s.mu.Lock()
	for _, w := range writes {
		if w.Outcome == domain.OutcomeApplied || w.Outcome == domain.OutcomeSkipped {
			s.lastKnown[w.WorkItemID] = w.Hours
		}
	}
	s.mu.Unlock()

	if werr != nil {
		return finish(werr)
	}

	if s.manual != nil && !sum.DryRun && len(manualIDs) > 0 && stats.Failed == 0 {
		if err := s.manual.MarkSynced(ctx, manualIDs); err != nil {
			return finish(err)
		}
	}

	log.Info().
		Int("meetings", sum.MeetingsValid).
		Float64("match_rate", sum.MatchRate).
		Int("written", stats.Successful).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("reconciliation run finished")
	return finish(nil)
}

func (s *Service) resolveWindow(w domain.Window) domain.Window {
	if !w.From.IsZero() && !w.To.IsZero() {
		return w
	}
	now := s.now()
	return domain.Window{From: now.AddDate(0, 0, -s.cfg.WindowDays), To: now}
}

func (s *Service) recordRun(sum domain.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, sum)
	if excess := len(s.runs) - runLogCap; excess > 0 {
		s.runs = s.runs[excess:]
	}
}

// History returns past runs, oldest first
func (s *Service) History() []domain.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RunSummary, len(s.runs))
	copy(out, s.runs)
	return out
}

// LastRun returns the most recent run, or nil before the first one
func (s *Service) LastRun() *domain.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return nil
	}
	last := s.runs[len(s.runs)-1]
	return &last
}
