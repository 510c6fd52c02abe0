// Package service runs reconciliation jobs on cron-style schedules
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
)

const (
	// historyCap bounds the kept execution history
	historyCap = 100

	// idleWake bounds how long the loop sleeps with no scheduled work
	idleWake = time.Minute
)

// JobFunc is the work a job performs
type JobFunc func(ctx context.Context) error

// RunRecord is one job execution
type RunRecord struct {
	Job       string        `json:"job"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// JobStatus is the externally visible state of one job
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Paused   bool      `json:"paused"`
	NextRun  time.Time `json:"next_run"`
	Runs     int       `json:"runs"`
	LastErr  string    `json:"last_error,omitempty"`
}

// Health is the daemon liveness view
type Health struct {
	Running  bool       `json:"running"`
	Jobs     int        `json:"jobs"`
	Paused   int        `json:"paused"`
	Uptime   string     `json:"uptime"`
	LastRun  *RunRecord `json:"last_run,omitempty"`
	Executed int        `json:"executed"`
}

type job struct {
	name    string
	spec    string
	sched   cron.Schedule
	fn      JobFunc
	paused  bool
	next    time.Time
	runs    int
	lastErr string
}

// Runner owns the job table and the scheduling loop
type Runner struct {
	mu      sync.Mutex
	jobs    map[string]*job
	history []RunRecord
	running bool
	started time.Time

	log  logger.Logger
	now  func() time.Time
	wake chan struct{}
}

// NewRunner builds an empty Runner
func NewRunner() *Runner {
	return &Runner{
		jobs: map[string]*job{},
		log:  *logger.Named("scheduler"),
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
}

func (r *Runner) add(name, spec string, sched cron.Schedule, fn JobFunc) error {
	if name == "" {
		return perr.MissingFieldf("el job necesita un nombre")
	}
	if fn == nil {
		return perr.MissingFieldf("el job %q no tiene función", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[name]; exists {
		return perr.Newf(perr.ErrorCodeDuplicateEntry, "ya existe un job llamado %q", name)
	}
	r.jobs[name] = &job{name: name, spec: spec, sched: sched, fn: fn, next: sched.Next(r.now())}
	r.poke()
	return nil
}

// AddDaily schedules fn every day at "HH:MM"
func (r *Runner) AddDaily(name, at string, fn JobFunc) error {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidInput, "hora diaria %q no tiene formato HH:MM", at)
	}
	spec := fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidInput, "cron spec inválido")
	}
	return r.add(name, "daily "+at, sched, fn)
}

// AddInterval schedules fn every d; intervals under one minute are rejected
func (r *Runner) AddInterval(name string, d time.Duration, fn JobFunc) error {
	if d < time.Minute {
		return perr.OutOfRangef("el intervalo %s es menor al mínimo de un minuto", d)
	}
	sched, err := cron.ParseStandard("@every " + d.String())
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidInput, "intervalo %s no es válido", d)
	}
	return r.add(name, "every "+d.String(), sched, fn)
}

// AddCron schedules fn with a standard five-field cron expression
func (r *Runner) AddCron(name, expr string, fn JobFunc) error {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidInput, "expresión cron %q no es válida", expr)
	}
	return r.add(name, expr, sched, fn)
}

// Remove drops a job
func (r *Runner) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[name]; !ok {
		return perr.NotFoundf("no existe un job llamado %q", name)
	}
	delete(r.jobs, name)
	r.poke()
	return nil
}

// Pause stops a job from being scheduled until Resume
func (r *Runner) Pause(name string) error { return r.setPaused(name, true) }

// Resume reactivates a paused job
func (r *Runner) Resume(name string) error { return r.setPaused(name, false) }

func (r *Runner) setPaused(name string, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[name]
	if !ok {
		return perr.NotFoundf("no existe un job llamado %q", name)
	}
	j.paused = paused
	if !paused {
		j.next = j.sched.Next(r.now())
	}
	r.poke()
	return nil
}

// RunNow executes a job immediately, outside its schedule
func (r *Runner) RunNow(ctx context.Context, name string) (RunRecord, error) {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return RunRecord{}, perr.NotFoundf("no existe un job llamado %q", name)
	}
	rec := r.execute(ctx, j)
	if rec.Error != "" {
		return rec, perr.Newf(perr.ErrorCodeUnknown, "el job %q terminó con error: %s", name, rec.Error)
	}
	return rec, nil
}

// execute runs one job and records the outcome
func (r *Runner) execute(ctx context.Context, j *job) RunRecord {
	start := r.now()
	err := j.fn(ctx)
	rec := RunRecord{Job: j.name, StartedAt: start.UTC(), Duration: r.now().Sub(start)}
	if err != nil {
		rec.Error = err.Error()
		r.log.Error().Err(err).Str("job", j.name).Msg("job failed")
	} else {
		r.log.Info().Str("job", j.name).Dur("took", rec.Duration).Msg("job finished")
	}

	r.mu.Lock()
	j.runs++
	j.lastErr = rec.Error
	j.next = j.sched.Next(r.now())
	r.history = append(r.history, rec)
	if excess := len(r.history) - historyCap; excess > 0 {
		r.history = r.history[excess:]
	}
	r.mu.Unlock()
	return rec
}

// poke nudges the loop to recompute its wake time; callers hold r.mu
func (r *Runner) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// due returns jobs whose next fire time has passed
func (r *Runner) due(now time.Time) []*job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*job
	for _, j := range r.jobs {
		if !j.paused && !j.next.After(now) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].name < out[k].name })
	return out
}

// nextWake returns how long the loop may sleep
func (r *Runner) nextWake(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := idleWake
	for _, j := range r.jobs {
		if j.paused {
			continue
		}
		if until := j.next.Sub(now); until < d {
			d = until
		}
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Run drives the schedule until ctx is cancelled
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.running = true
	r.started = r.now()
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.log.Info().Int("jobs", len(r.Jobs())).Msg("scheduler started")
	for {
		for _, j := range r.due(r.now()) {
			if ctx.Err() != nil {
				return perr.Wrap(ctx.Err(), perr.ErrorCodeCancelled, "scheduler stopped")
			}
			r.execute(ctx, j)
		}

		wait := r.nextWake(r.now())
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return perr.Wrap(ctx.Err(), perr.ErrorCodeCancelled, "scheduler stopped")
		case <-r.wake:
			t.Stop()
		case <-t.C:
		}
	}
}

// Jobs lists every job sorted by name
func (r *Runner) Jobs() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobStatus, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, JobStatus{
			Name:     j.name,
			Schedule: j.spec,
			Paused:   j.paused,
			NextRun:  j.next,
			Runs:     j.runs,
			LastErr:  j.lastErr,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// History returns past executions, oldest first
func (r *Runner) History() []RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunRecord, len(r.history))
	copy(out, r.history)
	return out
}

// Health reports daemon liveness
func (r *Runner) Health() Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := Health{Running: r.running, Jobs: len(r.jobs), Executed: len(r.history)}
	for _, j := range r.jobs {
		if j.paused {
			h.Paused++
		}
	}
	if r.running {
		h.Uptime = r.now().Sub(r.started).Round(time.Second).String()
	}
	if len(r.history) > 0 {
		last := r.history[len(r.history)-1]
		h.LastRun = &last
	}
	return h
}
