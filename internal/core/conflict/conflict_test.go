package conflict

import (
	"testing"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/testkit"
)

func ptr(f float64) *float64 { return &f }

func activeItem(id int, estimated, completed float64) workitems.WorkItem {
	return workitems.WorkItem{ID: id, State: "Active", EstimatedHours: estimated, CompletedHours: completed}
}

func TestDetectManualUpdate(t *testing.T) {
	d := NewDetector()
	cs := d.Detect(Check{
		Item:      activeItem(1, 10, 8),
		LastKnown: ptr(5.0),
		Proposed:  6,
		CanWrite:  true,
	})
	if len(cs) != 1 || cs[0].Type != TypeManualUpdate || cs[0].Severity != SeverityHigh {
		t.Fatalf("conflicts = %+v", cs)
	}
	if !CanProceed(cs) {
		t.Fatal("manual update should allow a resolved write")
	}
	if got := Recommend(cs, 8, 6); got != StrategySkip {
		t.Fatalf("recommend = %q", got)
	}
}

func TestDetectValueMismatch(t *testing.T) {
	d := NewDetector()
	cs := d.Detect(Check{Item: activeItem(1, 10, 3), Proposed: 6, CanWrite: true})
	if len(cs) != 1 || cs[0].Type != TypeValueMismatch || cs[0].Severity != SeverityMedium {
		t.Fatalf("conflicts = %+v", cs)
	}

	// recorded hours without history are a mismatch even when the proposal
	// happens to agree; the writer's no-op check absorbs the redundancy
	cs = d.Detect(Check{Item: activeItem(2, 10, 6), Proposed: 6, CanWrite: true})
	if len(cs) != 1 || cs[0].Type != TypeValueMismatch {
		t.Fatalf("conflicts with equal proposal = %+v", cs)
	}
	if got := Recommend(cs, 3, 6); got != StrategyOverride {
		t.Fatalf("recommend = %q", got)
	}
	if got := Recommend(cs, 3, 2); got != StrategyAdd {
		t.Fatalf("recommend with smaller proposal = %q", got)
	}
}

func TestDetectOverbudget(t *testing.T) {
	d := NewDetector()
	cs := d.Detect(Check{Item: activeItem(1, 2, 0), Proposed: 6, CanWrite: true})
	if len(cs) != 1 || cs[0].Type != TypeOverbudget {
		t.Fatalf("conflicts = %+v", cs)
	}
	if got := Recommend(cs, 0, 6); got != StrategySkip {
		t.Fatalf("recommend = %q", got)
	}

	// exactly at the ratio is still within budget
	cs = d.Detect(Check{Item: activeItem(2, 2, 0), Proposed: 5, CanWrite: true})
	if len(cs) != 0 {
		t.Fatalf("conflicts at boundary = %+v", cs)
	}
}

func TestDetectLockedAndPermission(t *testing.T) {
	d := NewDetector()
	locked := workitems.WorkItem{ID: 1, State: workitems.StateRemoved}
	cs := d.Detect(Check{Item: locked, Proposed: 2, CanWrite: false})
	if len(cs) != 2 {
		t.Fatalf("conflicts = %+v", cs)
	}
	for _, c := range cs {
		if c.Severity != SeverityCritical || c.CanProceed {
			t.Fatalf("conflict = %+v", c)
		}
	}
	if CanProceed(cs) {
		t.Fatal("critical conflicts must block")
	}
	if got := Recommend(cs, 0, 2); got != StrategyFail {
		t.Fatalf("recommend = %q", got)
	}
}

func TestResolveStrategies(t *testing.T) {
	manual := []Conflict{{Type: TypeManualUpdate, CanProceed: true}}

	final, write, err := Resolve(StrategyAdd, 8, 6, manual)
	testkit.MustNoErr(t, err)
	if !write || final != 14 {
		t.Fatalf("add = %v write %v, want manual hours preserved", final, write)
	}

	final, write, err = Resolve(StrategyOverride, 8, 6, manual)
	testkit.MustNoErr(t, err)
	if !write || final != 6 {
		t.Fatalf("override = %v write %v", final, write)
	}

	final, write, err = Resolve(StrategySkip, 8, 6, manual)
	testkit.MustNoErr(t, err)
	if write || final != 8 {
		t.Fatalf("skip = %v write %v", final, write)
	}

	_, _, err = Resolve(StrategyFail, 8, 6, manual)
	testkit.MustCode(t, err, perr.ErrorCodeConflictUnresolved)

	final, write, err = Resolve(StrategyFail, 8, 6, nil)
	testkit.MustNoErr(t, err)
	if !write || final != 6 {
		t.Fatalf("fail without conflicts = %v write %v", final, write)
	}

	_, _, err = Resolve("merge", 8, 6, nil)
	testkit.MustCode(t, err, perr.ErrorCodeInvalidInput)
}

func TestResolveBlockedByCritical(t *testing.T) {
	blocked := []Conflict{{Type: TypeWorkItemLocked, CanProceed: false}}
	_, write, err := Resolve(StrategyOverride, 8, 6, blocked)
	testkit.MustCode(t, err, perr.ErrorCodeConflictUnresolved)
	if write {
		t.Fatal("critical conflict must not write")
	}
}

func TestLogBoundedAndSummarized(t *testing.T) {
	d := NewDetector()
	for i := 0; i < 600; i++ {
		d.Detect(Check{Item: activeItem(i+1, 10, 3), Proposed: 6, CanWrite: true})
	}

	log := d.Log()
	if len(log) != 500 {
		t.Fatalf("log = %d, want capped at 500", len(log))
	}
	// oldest entries dropped first
	if log[0].WorkItemID != 101 {
		t.Fatalf("first logged id = %d", log[0].WorkItemID)
	}

	s := d.LogSummary()
	if s.Total != 500 || s.ByType[TypeValueMismatch] != 500 || s.BySeverity[SeverityMedium] != 500 {
		t.Fatalf("summary = %+v", s)
	}

	d.ClearLog()
	if got := d.LogSummary(); got.Total != 0 {
		t.Fatalf("after clear = %+v", got)
	}
}
