// Package meetings normalizes raw calendar events into timezone-aware
// meetings with rounded durations, and provides the filters and
// aggregations reconciliation needs
//
// Subject cleanup pipeline
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFC normalization
// 3 Remove format and control characters
// 4 Width fold fullwidth to ASCII
// 5 Collapse whitespace to single spaces and trim
package meetings

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"
)

// DefaultZone is where meetings land when no timezone is configured
const DefaultZone = "America/Bogota"

// Person identifies an organizer or attendee
type Person struct {
	Name  string
	Email string
}

// RawEvent is a provider-neutral calendar event before normalization
// Start and End carry the provider timestamp with its zone name separate,
// matching how the calendar API splits them
type RawEvent struct {
	ID        string
	Subject   string
	Start     string
	StartZone string
	End       string
	EndZone   string
	Cancelled bool
	Online    bool
	Organizer Person
	Attendees []Person
}

// Meeting is a normalized event ready for matching
type Meeting struct {
	ID        string
	Subject   string
	Start     time.Time
	End       time.Time
	Hours     float64
	Day       string
	Cancelled bool
	Online    bool
	Organizer Person
	Attendees []Person
}

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ FEFF etc
			runes.Remove(runes.In(unicode.Cc)), // strip control chars
			width.Fold,
		)
	},
}

// CleanSubject runs the subject cleanup pipeline
func CleanSubject(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	return strings.Join(strings.Fields(ns), " ")
}

// Normalizer converts raw events into meetings in a single zone
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer resolves zone, falling back to DefaultZone when empty
func NewNormalizer(zone string) (*Normalizer, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "unknown timezone %q", zone)
	}
	return &Normalizer{loc: loc}, nil
}

// eventLayouts are the timestamp shapes the calendar provider emits
var eventLayouts = []string{
	"2006-01-02T15:04:05.0000000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// parseStamp parses a provider timestamp in its declared zone and converts
// to the configured one; naive timestamps without a usable zone are read
// as UTC
func (n *Normalizer) parseStamp(value, zone string) (time.Time, error) {
	loc := time.UTC
	if zone != "" && zone != "tzone://Microsoft/Custom" {
		if l, err := time.LoadLocation(zone); err == nil {
			loc = l
		}
	}
	for _, layout := range eventLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(n.loc), nil
		}
	}
	return time.Time{}, perr.InvalidInputf("unparseable event timestamp %q", value)
}

// Normalize converts one raw event
// events without both endpoints are rejected, as are inverted and
// zero-duration windows
func (n *Normalizer) Normalize(ev RawEvent) (Meeting, error) {
	if ev.Start == "" || ev.End == "" {
		return Meeting{}, perr.MissingFieldf("event %q is missing start or end", ev.ID)
	}
	start, err := n.parseStamp(ev.Start, ev.StartZone)
	if err != nil {
		return Meeting{}, err
	}
	end, err := n.parseStamp(ev.End, ev.EndZone)
	if err != nil {
		return Meeting{}, err
	}
	if !end.After(start) {
		return Meeting{}, perr.OutOfRangef("event %q does not end after it starts", ev.ID)
	}

	return Meeting{
		ID:        ev.ID,
		Subject:   CleanSubject(ev.Subject),
		Start:     start,
		End:       end,
		Hours:     timeutil.Round2(end.Sub(start).Hours()),
		Day:       timeutil.DayKey(start),
		Cancelled: ev.Cancelled,
		Online:    ev.Online,
		Organizer: ev.Organizer,
		Attendees: ev.Attendees,
	}, nil
}

// NormalizeAll converts a batch, collecting per-event failures instead of
// aborting the run on the first malformed event
func (n *Normalizer) NormalizeAll(events []RawEvent) ([]Meeting, []error) {
	var (
		out  []Meeting
		errs []error
	)
	for _, ev := range events {
		m, err := n.Normalize(ev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errs
}

// InRange keeps meetings whose start falls inside [from, to] inclusive
func InRange(ms []Meeting, from, to time.Time) []Meeting {
	var out []Meeting
	for _, m := range ms {
		if m.Start.Before(from) || m.Start.After(to) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// WithAttendee keeps meetings where email appears as attendee or organizer,
// compared case insensitively
func WithAttendee(ms []Meeting, email string) []Meeting {
	want := strings.ToLower(email)
	var out []Meeting
	for _, m := range ms {
		if strings.ToLower(m.Organizer.Email) == want {
			out = append(out, m)
			continue
		}
		for _, a := range m.Attendees {
			if strings.ToLower(a.Email) == want {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Active drops cancelled meetings
func Active(ms []Meeting) []Meeting {
	var out []Meeting
	for _, m := range ms {
		if !m.Cancelled {
			out = append(out, m)
		}
	}
	return out
}

// HoursByDay sums meeting hours per day key, skipping cancelled meetings
func HoursByDay(ms []Meeting) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range ms {
		if m.Cancelled {
			continue
		}
		out[m.Day] = timeutil.Round2(out[m.Day] + m.Hours)
	}
	return out
}

// HoursByWeek sums meeting hours per ISO week key, skipping cancelled meetings
func HoursByWeek(ms []Meeting) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range ms {
		if m.Cancelled {
			continue
		}
		k := timeutil.WeekKey(m.Start)
		out[k] = timeutil.Round2(out[k] + m.Hours)
	}
	return out
}

// HoursByUser sums meeting hours per attendee email, lowercased
// cancelled meetings contribute to nobody
func HoursByUser(ms []Meeting) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range ms {
		if m.Cancelled {
			continue
		}
		for _, a := range m.Attendees {
			k := strings.ToLower(a.Email)
			if k == "" {
				continue
			}
			out[k] = timeutil.Round2(out[k] + m.Hours)
		}
	}
	return out
}

// Summary aggregates a batch for reporting
// hour totals and the average cover active meetings only
type Summary struct {
	Total      int
	Active     int
	Cancelled  int
	Online     int
	TotalHours float64
	AvgHours   float64
	ByDay      map[string]float64
}

// Summarize builds a Summary over ms
func Summarize(ms []Meeting) Summary {
	s := Summary{ByDay: HoursByDay(ms)}
	for _, m := range ms {
		s.Total++
		if m.Cancelled {
			s.Cancelled++
			continue
		}
		s.Active++
		if m.Online {
			s.Online++
		}
		s.TotalHours += m.Hours
	}
	s.TotalHours = timeutil.Round2(s.TotalHours)
	if s.Active > 0 {
		s.AvgHours = timeutil.Round2(s.TotalHours / float64(s.Active))
	}
	return s
}
