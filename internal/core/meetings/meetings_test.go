package meetings

import (
	"testing"
	"time"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/testkit"
)

func mustNormalizer(t *testing.T, zone string) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(zone)
	testkit.MustNoErr(t, err)
	return n
}

func TestNormalizeConvertsToConfiguredZone(t *testing.T) {
	n := mustNormalizer(t, "America/Bogota")

	m, err := n.Normalize(RawEvent{
		ID:        "e1",
		Subject:   "Daily  standup​ #1234",
		Start:     "2026-03-02T14:00:00.0000000",
		StartZone: "UTC",
		End:       "2026-03-02T14:30:00.0000000",
		EndZone:   "UTC",
	})
	testkit.MustNoErr(t, err)

	if m.Subject != "Daily standup #1234" {
		t.Fatalf("subject = %q", m.Subject)
	}
	// 14:00 UTC is 09:00 in Bogota
	if m.Start.Hour() != 9 {
		t.Fatalf("start hour = %d, want 9", m.Start.Hour())
	}
	if m.Hours != 0.5 {
		t.Fatalf("hours = %v", m.Hours)
	}
	if m.Day != "2026-03-02" {
		t.Fatalf("day = %q", m.Day)
	}
}

func TestNormalizeRejectsBadEvents(t *testing.T) {
	n := mustNormalizer(t, "")

	_, err := n.Normalize(RawEvent{ID: "x", End: "2026-03-02T10:00:00"})
	testkit.MustCode(t, err, perr.ErrorCodeMissingField)

	_, err = n.Normalize(RawEvent{
		ID:    "y",
		Start: "2026-03-02T11:00:00", StartZone: "UTC",
		End: "2026-03-02T10:00:00", EndZone: "UTC",
	})
	testkit.MustCode(t, err, perr.ErrorCodeOutOfRange)

	// zero duration is as useless as an inverted window
	_, err = n.Normalize(RawEvent{
		ID:    "same",
		Start: "2026-03-02T10:00:00", StartZone: "UTC",
		End: "2026-03-02T10:00:00", EndZone: "UTC",
	})
	testkit.MustCode(t, err, perr.ErrorCodeOutOfRange)

	_, err = n.Normalize(RawEvent{ID: "z", Start: "not-a-time", End: "also-not"})
	testkit.MustCode(t, err, perr.ErrorCodeInvalidInput)
}

func TestNormalizeNaiveTimestampsAssumeUTC(t *testing.T) {
	n := mustNormalizer(t, "America/Bogota")

	m, err := n.Normalize(RawEvent{
		ID:    "naive",
		Start: "2026-03-02T14:00:00",
		End:   "2026-03-02T15:00:00",
	})
	testkit.MustNoErr(t, err)

	// 14:00 read as UTC lands at 09:00 in Bogota
	if m.Start.Hour() != 9 {
		t.Fatalf("start hour = %d, want 9", m.Start.Hour())
	}
	if m.Day != "2026-03-02" {
		t.Fatalf("day = %q", m.Day)
	}
}

func TestNormalizeAllCollectsErrors(t *testing.T) {
	n := mustNormalizer(t, "UTC")

	ms, errs := n.NormalizeAll([]RawEvent{
		{ID: "good", Start: "2026-03-02T09:00:00", End: "2026-03-02T10:00:00"},
		{ID: "bad"},
		{ID: "also-good", Start: "2026-03-02T11:00:00", End: "2026-03-02T11:45:00"},
	})
	if len(ms) != 2 || len(errs) != 1 {
		t.Fatalf("got %d meetings, %d errors", len(ms), len(errs))
	}
	if ms[1].Hours != 0.75 {
		t.Fatalf("hours = %v", ms[1].Hours)
	}
}

func sample(t *testing.T) []Meeting {
	t.Helper()
	n := mustNormalizer(t, "UTC")
	ms, errs := n.NormalizeAll([]RawEvent{
		{
			ID: "a", Subject: "Planning", Start: "2026-03-02T09:00:00", End: "2026-03-02T10:00:00",
			Attendees: []Person{{Email: "Dev@Example.Test"}, {Email: "lead@example.test"}},
		},
		{
			ID: "b", Subject: "Review", Start: "2026-03-03T09:00:00", End: "2026-03-03T09:30:00",
			Online:    true,
			Organizer: Person{Email: "dev@example.test"},
		},
		{
			ID: "c", Subject: "Cancelled sync", Start: "2026-03-03T15:00:00", End: "2026-03-03T16:00:00",
			Cancelled: true,
		},
	})
	if len(errs) != 0 {
		t.Fatalf("sample errors: %v", errs)
	}
	return ms
}

func TestFilters(t *testing.T) {
	ms := sample(t)

	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	got := InRange(ms, day, day.Add(24*time.Hour-time.Second))
	if len(got) != 2 {
		t.Fatalf("InRange = %d", len(got))
	}

	got = WithAttendee(ms, "dev@example.test")
	if len(got) != 2 {
		t.Fatalf("WithAttendee = %d, want attendee plus organizer match", len(got))
	}

	got = Active(ms)
	if len(got) != 2 {
		t.Fatalf("Active = %d", len(got))
	}
}

func TestAggregations(t *testing.T) {
	ms := sample(t)

	// the cancelled meeting contributes to no aggregate
	byDay := HoursByDay(ms)
	if byDay["2026-03-02"] != 1 || byDay["2026-03-03"] != 0.5 {
		t.Fatalf("byDay = %v", byDay)
	}

	byWeek := HoursByWeek(ms)
	if byWeek["2026-W10"] != 1.5 {
		t.Fatalf("byWeek = %v", byWeek)
	}

	byUser := HoursByUser(ms)
	if byUser["dev@example.test"] != 1 {
		t.Fatalf("byUser = %v", byUser)
	}

	s := Summarize(ms)
	if s.Total != 3 || s.Active != 2 || s.Cancelled != 1 || s.Online != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if s.TotalHours != 1.5 || s.AvgHours != 0.75 {
		t.Fatalf("summary hours = %+v", s)
	}
}
