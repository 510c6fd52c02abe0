// Package match links meetings to work items
//
// Strategy order, first hit wins
// 1 configured rules regex on the subject
// 2 id references embedded in the subject
// 3 title similarity against candidate titles
// 4 attendee overlap with the item assignee
package match

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/meetings"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"
)

// Strategy names carried on every match for audit
const (
	StrategyRule       = "rule"
	StrategyIDRef      = "id_reference"
	StrategyTitle      = "title_similarity"
	StrategyAttendee   = "attendee_overlap"
	DefaultMinSimilar  = 0.6
	attendeeConfidence = 0.8
)

// idPatterns extract work item ids from meeting subjects, checked in order
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)#(\d+)`),
	regexp.MustCompile(`(?i)WI[-\s]?(\d+)`),
	regexp.MustCompile(`(?i)Task[-\s]?(\d+)`),
	regexp.MustCompile(`(?i)\[(\d+)\]`),
	regexp.MustCompile(`(?i)(?:^|\s)(\d{3,})`),
}

// Rule maps subjects matching a pattern directly to one work item
type Rule struct {
	Pattern    string
	WorkItemID int

	re *regexp.Regexp
}

// Match is one resolved meeting to work item link
type Match struct {
	MeetingID  string
	WorkItemID int
	Strategy   string
	Confidence float64
}

// Matcher runs the strategy pipeline over a candidate item set
type Matcher struct {
	rules      []Rule
	minSimilar float64
}

// NewMatcher builds a Matcher; minSimilar <= 0 uses the default threshold
func NewMatcher(minSimilar float64) *Matcher {
	if minSimilar <= 0 {
		minSimilar = DefaultMinSimilar
	}
	return &Matcher{minSimilar: minSimilar}
}

// AddRule compiles and registers a rule
// rules are tried in registration order
func (m *Matcher) AddRule(r Rule) error {
	if r.WorkItemID <= 0 {
		return perr.InvalidInputf("rule %q needs a positive work item id", r.Pattern)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidInput, "rule pattern %q does not compile", r.Pattern)
	}
	r.re = re
	m.rules = append(m.rules, r)
	return nil
}

// Rules returns the registered rule count
func (m *Matcher) Rules() int { return len(m.rules) }

// ExtractWorkItemID pulls the first embedded id reference out of a subject
// returns 0 when the subject carries none
func ExtractWorkItemID(subject string) int {
	for _, re := range idPatterns {
		if sm := re.FindStringSubmatch(subject); sm != nil {
			if id, err := strconv.Atoi(sm[1]); err == nil && id > 0 {
				return id
			}
		}
	}
	return 0
}

// Similarity scores two titles in [0, 1] after case folding
func Similarity(a, b string) float64 {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return 0
	}
	if la == lb {
		return 1
	}
	sm := difflib.NewMatcher(chars(la), chars(lb))
	return sm.Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Match resolves one meeting against candidates, or returns nil when no
// strategy produces a link
func (m *Matcher) Match(meeting meetings.Meeting, candidates []workitems.WorkItem) *Match {
	byID := make(map[int]workitems.WorkItem, len(candidates))
	for _, wi := range candidates {
		byID[wi.ID] = wi
	}

	for _, r := range m.rules {
		if r.re.MatchString(meeting.Subject) {
			return &Match{MeetingID: meeting.ID, WorkItemID: r.WorkItemID, Strategy: StrategyRule, Confidence: 1}
		}
	}

	if id := ExtractWorkItemID(meeting.Subject); id != 0 {
		if _, ok := byID[id]; ok {
			return &Match{MeetingID: meeting.ID, WorkItemID: id, Strategy: StrategyIDRef, Confidence: 1}
		}
	}

	if best := m.bestByTitle(meeting, candidates); best != nil {
		return best
	}

	return m.byAttendee(meeting, candidates)
}

func (m *Matcher) bestByTitle(meeting meetings.Meeting, candidates []workitems.WorkItem) *Match {
	var (
		bestID    int
		bestScore float64
	)
	for _, wi := range candidates {
		score := Similarity(meeting.Subject, wi.Title)
		if score > bestScore {
			bestID, bestScore = wi.ID, score
		}
	}
	if bestScore < m.minSimilar {
		return nil
	}
	return &Match{MeetingID: meeting.ID, WorkItemID: bestID, Strategy: StrategyTitle, Confidence: bestScore}
}

// byAttendee links a meeting to the item assigned to one of its attendees
// ties break on most recent change, then lowest id so reruns are stable
func (m *Matcher) byAttendee(meeting meetings.Meeting, candidates []workitems.WorkItem) *Match {
	emails := make(map[string]bool, len(meeting.Attendees)+1)
	for _, a := range meeting.Attendees {
		if a.Email != "" {
			emails[strings.ToLower(a.Email)] = true
		}
	}
	if meeting.Organizer.Email != "" {
		emails[strings.ToLower(meeting.Organizer.Email)] = true
	}

	var hits []workitems.WorkItem
	for _, wi := range candidates {
		if emails[strings.ToLower(wi.Assignee.UniqueName)] {
			hits = append(hits, wi)
		}
	}
	if len(hits) == 0 {
		return nil
	}

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].ChangedDate.Equal(hits[j].ChangedDate) {
			return hits[i].ChangedDate.After(hits[j].ChangedDate)
		}
		return hits[i].ID < hits[j].ID
	})
	return &Match{
		MeetingID:  meeting.ID,
		WorkItemID: hits[0].ID,
		Strategy:   StrategyAttendee,
		Confidence: attendeeConfidence,
	}
}

// BatchResult is the outcome of matching a meeting batch
type BatchResult struct {
	Matches   []Match
	Unmatched []meetings.Meeting
	Skipped   int
	Rate      float64
}

// MatchBatch runs the pipeline over every active meeting
// cancelled meetings are skipped without counting against the match rate
func (m *Matcher) MatchBatch(ms []meetings.Meeting, candidates []workitems.WorkItem) BatchResult {
	var res BatchResult
	for _, meeting := range ms {
		if meeting.Cancelled {
			res.Skipped++
			continue
		}
		if hit := m.Match(meeting, candidates); hit != nil {
			res.Matches = append(res.Matches, *hit)
		} else {
			res.Unmatched = append(res.Unmatched, meeting)
		}
	}
	considered := len(res.Matches) + len(res.Unmatched)
	if considered > 0 {
		res.Rate = timeutil.Round2(float64(len(res.Matches)) / float64(considered))
	}
	return res
}

// UnmatchedSummary lists unmatched subjects with their lost hours,
// sorted by hours descending for triage
type UnmatchedSummary struct {
	Subject string
	Hours   float64
	Day     string
}

// SummarizeUnmatched builds the triage view from a batch result
func SummarizeUnmatched(res BatchResult) []UnmatchedSummary {
	out := make([]UnmatchedSummary, 0, len(res.Unmatched))
	for _, m := range res.Unmatched {
		out = append(out, UnmatchedSummary{Subject: m.Subject, Hours: m.Hours, Day: m.Day})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hours > out[j].Hours })
	return out
}
