package service

import (
	"context"
	"testing"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/testkit"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/domain"
)

// fakeItems records update calls and can fail on demand
type fakeItems struct {
	updates []domain.WriteRequest
	fail    map[int]error
}

func (f *fakeItems) QueryIDs(context.Context, string, int) ([]int, error) { return nil, nil }
func (f *fakeItems) Items(context.Context, []int) ([]workitems.WorkItem, error) {
	return nil, nil
}
func (f *fakeItems) Projects(context.Context) ([]string, error) { return nil, nil }

func (f *fakeItems) UpdateCompleted(_ context.Context, id int, hours float64, comment string) (*workitems.WorkItem, error) {
	if err := f.fail[id]; err != nil {
		return nil, err
	}
	f.updates = append(f.updates, domain.WriteRequest{
		Item:    workitems.WorkItem{ID: id},
		Hours:   hours,
		Comment: comment,
	})
	return &workitems.WorkItem{ID: id, CompletedHours: hours}, nil
}

func activeItem(id int, estimated, completed float64) workitems.WorkItem {
	return workitems.WorkItem{ID: id, State: "Active", EstimatedHours: estimated, CompletedHours: completed}
}

func TestWriteAppliesWithDefaultComment(t *testing.T) {
	items := &fakeItems{}
	w := NewWriter(items, WriterOptions{})

	res, err := w.Write(context.Background(), domain.WriteRequest{Item: activeItem(1, 10, 3), Hours: 6})
	testkit.MustNoErr(t, err)
	if res.Outcome != domain.OutcomeApplied || res.Previous != 3 {
		t.Fatalf("result = %+v", res)
	}
	if len(items.updates) != 1 {
		t.Fatalf("updates = %+v", items.updates)
	}
	testkit.MustContain(t, items.updates[0].Comment, "actualizado automáticamente a 6.00 horas")
	testkit.MustContain(t, items.updates[0].Comment, "BV-Time-Logger")
}

func TestWriteValidation(t *testing.T) {
	items := &fakeItems{}
	w := NewWriter(items, WriterOptions{})
	ctx := context.Background()

	_, err := w.Write(ctx, domain.WriteRequest{Item: activeItem(1, 0, 0), Hours: -1})
	testkit.MustCode(t, err, perr.ErrorCodeWriteRejected)

	_, err = w.Write(ctx, domain.WriteRequest{Item: activeItem(1, 0, 0), Hours: 1001})
	testkit.MustCode(t, err, perr.ErrorCodeWriteRejected)

	// a failed permission probe refuses the write outright
	_, err = w.Write(ctx, domain.WriteRequest{Item: activeItem(2, 0, 0), Hours: 2, ReadOnly: true})
	testkit.MustCode(t, err, perr.ErrorCodeForbidden)

	// more than twice the estimate is refused outright
	_, err = w.Write(ctx, domain.WriteRequest{Item: activeItem(3, 2, 0), Hours: 4.5})
	testkit.MustCode(t, err, perr.ErrorCodeWriteRejected)

	if len(items.updates) != 0 {
		t.Fatalf("updates = %+v", items.updates)
	}
}

func TestWriteForceBypassesValidation(t *testing.T) {
	items := &fakeItems{}
	w := NewWriter(items, WriterOptions{Force: true})
	ctx := context.Background()

	// far beyond the hard ratio, forced through anyway
	res, err := w.Write(ctx, domain.WriteRequest{Item: activeItem(1, 2, 0), Hours: 9})
	testkit.MustNoErr(t, err)
	if res.Outcome != domain.OutcomeApplied || res.Warning != "" {
		t.Fatalf("result = %+v", res)
	}

	res, err = w.Write(ctx, domain.WriteRequest{Item: activeItem(2, 0, 1), Hours: 2, ReadOnly: true})
	testkit.MustNoErr(t, err)
	if res.Outcome != domain.OutcomeApplied {
		t.Fatalf("read-only request result = %+v", res)
	}
	if len(items.updates) != 2 {
		t.Fatalf("updates = %+v", items.updates)
	}
}

func TestWriteWarningsStillApply(t *testing.T) {
	items := &fakeItems{}
	w := NewWriter(items, WriterOptions{})
	ctx := context.Background()

	// between warn and hard ratio: applied with a warning
	res, err := w.Write(ctx, domain.WriteRequest{Item: activeItem(1, 2, 0), Hours: 3.5})
	testkit.MustNoErr(t, err)
	if res.Outcome != domain.OutcomeApplied || res.Warning == "" {
		t.Fatalf("result = %+v", res)
	}

	closed := workitems.WorkItem{ID: 2, State: workitems.StateClosed, CompletedHours: 1}
	res, err = w.Write(ctx, domain.WriteRequest{Item: closed, Hours: 2})
	testkit.MustNoErr(t, err)
	if res.Outcome != domain.OutcomeApplied || res.Warning == "" {
		t.Fatalf("closed item result = %+v", res)
	}

	// removed items warn too; blocking them is the conflict detector's job
	removed := workitems.WorkItem{ID: 3, State: workitems.StateRemoved, CompletedHours: 1}
	res, err = w.Write(ctx, domain.WriteRequest{Item: removed, Hours: 2})
	testkit.MustNoErr(t, err)
	if res.Outcome != domain.OutcomeApplied || res.Warning == "" {
		t.Fatalf("removed item result = %+v", res)
	}
}

func TestWriteNoOpWhenUnchanged(t *testing.T) {
	items := &fakeItems{}
	w := NewWriter(items, WriterOptions{})

	res, err := w.Write(context.Background(), domain.WriteRequest{Item: activeItem(1, 10, 6), Hours: 6})
	testkit.MustNoErr(t, err)
	if res.Outcome != domain.OutcomeSkipped || len(items.updates) != 0 {
		t.Fatalf("result = %+v updates = %+v", res, items.updates)
	}
}

func TestWriteDryRun(t *testing.T) {
	items := &fakeItems{}
	w := NewWriter(items, WriterOptions{DryRun: true})

	res, err := w.Write(context.Background(), domain.WriteRequest{Item: activeItem(1, 10, 3), Hours: 6})
	testkit.MustNoErr(t, err)
	if res.Outcome != domain.OutcomeDryRun || len(items.updates) != 0 {
		t.Fatalf("result = %+v updates = %+v", res, items.updates)
	}
}

func TestWriteBatchStats(t *testing.T) {
	items := &fakeItems{fail: map[int]error{2: perr.Serverf("boom")}}
	w := NewWriter(items, WriterOptions{})

	reqs := []domain.WriteRequest{
		{Item: activeItem(1, 10, 3), Hours: 6}, // applied
		{Item: activeItem(2, 10, 3), Hours: 6}, // provider failure
		{Item: activeItem(3, 10, 6), Hours: 6}, // no-op
	}
	results, stats, err := w.WriteBatch(context.Background(), reqs)
	testkit.MustNoErr(t, err)

	if stats.Total != 3 || stats.Successful != 1 || stats.Failed != 1 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Successful+stats.Failed+stats.Skipped != stats.Total {
		t.Fatalf("stats do not add up: %+v", stats)
	}
	if len(results) != 3 || results[1].Error == "" {
		t.Fatalf("results = %+v", results)
	}
}

func TestWriteBatchStopOnError(t *testing.T) {
	items := &fakeItems{fail: map[int]error{1: perr.Serverf("boom")}}
	w := NewWriter(items, WriterOptions{StopOnError: true})

	reqs := []domain.WriteRequest{
		{Item: activeItem(1, 10, 3), Hours: 6},
		{Item: activeItem(2, 10, 3), Hours: 6},
	}
	results, stats, err := w.WriteBatch(context.Background(), reqs)
	testkit.MustCode(t, err, perr.ErrorCodeServer)
	if stats.Total != 1 || len(results) != 1 {
		t.Fatalf("batch kept going: stats %+v results %+v", stats, results)
	}
}

func TestAuditTrailBounded(t *testing.T) {
	items := &fakeItems{}
	w := NewWriter(items, WriterOptions{DryRun: true})
	ctx := context.Background()

	for i := 0; i < auditCap+50; i++ {
		_, err := w.Write(ctx, domain.WriteRequest{Item: activeItem(i+1, 10, 0), Hours: 1})
		testkit.MustNoErr(t, err)
	}
	audit := w.Audit()
	if len(audit) != auditCap {
		t.Fatalf("audit = %d, want capped at %d", len(audit), auditCap)
	}
	if audit[0].Result.WorkItemID != 51 {
		t.Fatalf("oldest audit id = %d", audit[0].Result.WorkItemID)
	}
}
