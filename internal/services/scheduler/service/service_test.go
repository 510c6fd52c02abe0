package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/testkit"
)

func noop(context.Context) error { return nil }

func TestAddDailyValidatesTime(t *testing.T) {
	r := NewRunner()
	testkit.MustNoErr(t, r.AddDaily("sync", "18:30", noop))
	testkit.MustCode(t, r.AddDaily("bad", "25:00", noop), perr.ErrorCodeInvalidInput)
	testkit.MustCode(t, r.AddDaily("bad", "at six", noop), perr.ErrorCodeInvalidInput)

	jobs := r.Jobs()
	if len(jobs) != 1 || jobs[0].Schedule != "daily 18:30" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestAddIntervalRejectsSubMinute(t *testing.T) {
	r := NewRunner()
	testkit.MustCode(t, r.AddInterval("fast", 30*time.Second, noop), perr.ErrorCodeOutOfRange)
	testkit.MustNoErr(t, r.AddInterval("ok", 5*time.Minute, noop))
}

func TestAddCron(t *testing.T) {
	r := NewRunner()
	testkit.MustNoErr(t, r.AddCron("weekly", "0 8 * * 1", noop))
	testkit.MustCode(t, r.AddCron("bad", "not a cron", noop), perr.ErrorCodeInvalidInput)
}

func TestDuplicateName(t *testing.T) {
	r := NewRunner()
	testkit.MustNoErr(t, r.AddInterval("sync", time.Hour, noop))
	testkit.MustCode(t, r.AddInterval("sync", time.Hour, noop), perr.ErrorCodeDuplicateEntry)
}

func TestNextRunComputed(t *testing.T) {
	r := NewRunner()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	testkit.Swap(t, &r.now, func() time.Time { return base })

	testkit.MustNoErr(t, r.AddDaily("sync", "18:00", noop))
	jobs := r.Jobs()
	want := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	if !jobs[0].NextRun.Equal(want) {
		t.Fatalf("next = %v, want %v", jobs[0].NextRun, want)
	}
}

func TestRunNowRecordsHistory(t *testing.T) {
	r := NewRunner()
	var calls atomic.Int32
	testkit.MustNoErr(t, r.AddInterval("sync", time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	rec, err := r.RunNow(context.Background(), "sync")
	testkit.MustNoErr(t, err)
	if rec.Job != "sync" || rec.Error != "" || calls.Load() != 1 {
		t.Fatalf("record = %+v calls = %d", rec, calls.Load())
	}

	hist := r.History()
	if len(hist) != 1 || hist[0].Job != "sync" {
		t.Fatalf("history = %+v", hist)
	}

	_, err = r.RunNow(context.Background(), "missing")
	testkit.MustCode(t, err, perr.ErrorCodeNotFound)
}

func TestRunNowSurfacesJobError(t *testing.T) {
	r := NewRunner()
	testkit.MustNoErr(t, r.AddInterval("sync", time.Hour, func(context.Context) error {
		return perr.Serverf("proveedor caído")
	}))

	rec, err := r.RunNow(context.Background(), "sync")
	if err == nil || rec.Error == "" {
		t.Fatalf("rec = %+v err = %v", rec, err)
	}

	jobs := r.Jobs()
	if jobs[0].LastErr == "" || jobs[0].Runs != 1 {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestPauseResume(t *testing.T) {
	r := NewRunner()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	testkit.Swap(t, &r.now, func() time.Time { return base })
	testkit.MustNoErr(t, r.AddInterval("sync", time.Hour, noop))

	testkit.MustNoErr(t, r.Pause("sync"))
	if due := r.due(base.Add(48 * time.Hour)); len(due) != 0 {
		t.Fatalf("paused job came due: %+v", due)
	}

	testkit.MustNoErr(t, r.Resume("sync"))
	if due := r.due(base.Add(2 * time.Hour)); len(due) != 1 {
		t.Fatalf("resumed job not due: %+v", due)
	}

	testkit.MustCode(t, r.Pause("missing"), perr.ErrorCodeNotFound)
}

func TestRemove(t *testing.T) {
	r := NewRunner()
	testkit.MustNoErr(t, r.AddInterval("sync", time.Hour, noop))
	testkit.MustNoErr(t, r.Remove("sync"))
	testkit.MustCode(t, r.Remove("sync"), perr.ErrorCodeNotFound)
}

func TestHistoryBounded(t *testing.T) {
	r := NewRunner()
	testkit.MustNoErr(t, r.AddInterval("sync", time.Hour, noop))
	ctx := context.Background()
	for i := 0; i < historyCap+20; i++ {
		_, err := r.RunNow(ctx, "sync")
		testkit.MustNoErr(t, err)
	}
	if got := len(r.History()); got != historyCap {
		t.Fatalf("history = %d, want capped at %d", got, historyCap)
	}
}

func TestHealth(t *testing.T) {
	r := NewRunner()
	testkit.MustNoErr(t, r.AddInterval("a", time.Hour, noop))
	testkit.MustNoErr(t, r.AddInterval("b", time.Hour, noop))
	testkit.MustNoErr(t, r.Pause("b"))
	_, err := r.RunNow(context.Background(), "a")
	testkit.MustNoErr(t, err)

	h := r.Health()
	if h.Running || h.Jobs != 2 || h.Paused != 1 || h.Executed != 1 || h.LastRun == nil {
		t.Fatalf("health = %+v", h)
	}
}

func TestRunLoopExecutesDueJobs(t *testing.T) {
	r := NewRunner()
	var calls atomic.Int32
	testkit.MustNoErr(t, r.AddInterval("sync", time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	// move the clock past the next fire time so the loop runs it immediately
	r.mu.Lock()
	r.jobs["sync"].next = time.Now().Add(-time.Second)
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		testkit.MustCode(t, err, perr.ErrorCodeCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
