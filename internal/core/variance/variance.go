// Package variance compares estimated effort against actual effort and
// classifies the deviation
package variance

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"
)

// Level classifies the size of a deviation
type Level string

// Levels in ascending severity
const (
	LevelNone     Level = "none"
	LevelLight    Level = "light"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

// Deviation thresholds as fractions of the estimate
const (
	thresholdLight    = 0.10
	thresholdModerate = 0.25
	thresholdHigh     = 0.50
)

// Rank orders levels for sorting and filtering
func (l Level) Rank() int {
	switch l {
	case LevelLight:
		return 1
	case LevelModerate:
		return 2
	case LevelHigh:
		return 3
	default:
		return 0
	}
}

// ParseLevel resolves a level name, defaulting to none
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelLight, LevelModerate, LevelHigh:
		return Level(s)
	default:
		return LevelNone
	}
}

// Float serialises like float64 but writes infinities as the string
// sentinel "Infinity" so report consumers do not choke on bare Inf
type Float float64

// MarshalJSON implements json.Marshaler
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(v):
		return []byte("null"), nil
	default:
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
}

// String renders the same sentinel for text outputs
func (f Float) String() string {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
}

// Comparison is one estimated versus actual reading
type Comparison struct {
	WorkItemID     int     `json:"work_item_id"`
	Title          string  `json:"title"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	Variance       float64 `json:"variance"`
	VariancePct    Float   `json:"variance_pct"`
	Ratio          Float   `json:"ratio"`
	Level          Level   `json:"level"`
	IsAcceptable   bool    `json:"is_acceptable"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
}

// Compare builds the comparison for one work item
// a zero estimate with zero actual reads as no deviation; a zero estimate
// with real hours reads as infinite deviation at the highest level
func Compare(workItemID int, title string, estimated, actual float64) Comparison {
	c := Comparison{
		WorkItemID:     workItemID,
		Title:          title,
		EstimatedHours: timeutil.Round2(estimated),
		ActualHours:    timeutil.Round2(actual),
	}
	c.Variance = timeutil.Round2(c.ActualHours - c.EstimatedHours)

	switch {
	case c.EstimatedHours == 0 && c.ActualHours == 0:
		c.VariancePct = 0
		c.Ratio = 0
	case c.EstimatedHours == 0:
		c.VariancePct = Float(math.Inf(1))
		c.Ratio = Float(math.Inf(1))
	default:
		c.VariancePct = Float(timeutil.Round2(c.Variance / c.EstimatedHours * 100))
		c.Ratio = Float(timeutil.Round2(c.ActualHours / c.EstimatedHours))
	}

	c.Level = classify(float64(c.VariancePct))
	c.IsAcceptable = c.Level == LevelNone
	c.Description = describe(c)
	c.Recommendation = recommend(c)
	return c
}

// classify maps a deviation percentage to its level
// a deviation sitting exactly on a threshold takes the lower level
func classify(pct float64) Level {
	frac := math.Abs(pct) / 100
	switch {
	case frac <= thresholdLight:
		return LevelNone
	case frac <= thresholdModerate:
		return LevelLight
	case frac <= thresholdHigh:
		return LevelModerate
	default:
		return LevelHigh
	}
}

func describe(c Comparison) string {
	switch {
	case math.IsInf(float64(c.VariancePct), 1):
		return fmt.Sprintf("Se registraron %.2f horas sin estimación original", c.ActualHours)
	case c.Level == LevelNone:
		return "Las horas reales coinciden con la estimación"
	case c.Variance > 0:
		return fmt.Sprintf("Se excedió la estimación en %.2f horas (%.1f%%)", c.Variance, float64(c.VariancePct))
	default:
		return fmt.Sprintf("Se usaron %.2f horas menos que la estimación (%.1f%%)", -c.Variance, -float64(c.VariancePct))
	}
}

func recommend(c Comparison) string {
	switch c.Level {
	case LevelNone:
		return "Sin acción necesaria"
	case LevelLight:
		return "Desviación leve, monitorear en el próximo sprint"
	case LevelModerate:
		return "Revisar la estimación con el equipo en la retrospectiva"
	default:
		if math.IsInf(float64(c.VariancePct), 1) {
			return "Agregar estimación original al work item antes del próximo sprint"
		}
		return "Desviación alta, re-estimar el trabajo restante y revisar el alcance"
	}
}

// Pair is one work item's effort reading awaiting comparison
type Pair struct {
	WorkItemID int
	Title      string
	Estimated  float64
	Actual     float64
}

// CompareBatch runs Compare over pairs
func CompareBatch(pairs []Pair) []Comparison {
	out := make([]Comparison, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Compare(p.WorkItemID, p.Title, p.Estimated, p.Actual))
	}
	return out
}

// Statistics aggregates a comparison batch
type Statistics struct {
	Count           int           `json:"count"`
	TotalEstimated  float64       `json:"total_estimated"`
	TotalActual     float64       `json:"total_actual"`
	OverallVariance float64       `json:"overall_variance"`
	AvgEstimated    float64       `json:"avg_estimated"`
	AvgActual       float64       `json:"avg_actual"`
	ByLevel         map[Level]int `json:"by_level"`
	TopDeviations   []Comparison  `json:"top_deviations"`
}

// topDeviationCount bounds the worst-offender list
const topDeviationCount = 5

// Stats computes aggregate numbers over cs
func Stats(cs []Comparison) Statistics {
	s := Statistics{ByLevel: map[Level]int{}}
	for _, c := range cs {
		s.Count++
		s.TotalEstimated += c.EstimatedHours
		s.TotalActual += c.ActualHours
		s.ByLevel[c.Level]++
	}
	s.TotalEstimated = timeutil.Round2(s.TotalEstimated)
	s.TotalActual = timeutil.Round2(s.TotalActual)
	s.OverallVariance = timeutil.Round2(s.TotalActual - s.TotalEstimated)
	if s.Count > 0 {
		s.AvgEstimated = timeutil.Round2(s.TotalEstimated / float64(s.Count))
		s.AvgActual = timeutil.Round2(s.TotalActual / float64(s.Count))
	}

	sorted := make([]Comparison, len(cs))
	copy(sorted, cs)
	sort.Slice(sorted, func(i, j int) bool {
		return deviationKey(sorted[i]) > deviationKey(sorted[j])
	})
	if len(sorted) > topDeviationCount {
		sorted = sorted[:topDeviationCount]
	}
	s.TopDeviations = sorted
	return s
}

func deviationKey(c Comparison) float64 {
	v := math.Abs(float64(c.VariancePct))
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

// Discrepancies filters comparisons at or above minLevel, sorted by level
// descending then absolute variance descending
func Discrepancies(cs []Comparison, minLevel Level) []Comparison {
	var out []Comparison
	for _, c := range cs {
		if c.Level.Rank() >= minLevel.Rank() && c.Level != LevelNone {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level.Rank() != out[j].Level.Rank() {
			return out[i].Level.Rank() > out[j].Level.Rank()
		}
		return math.Abs(out[i].Variance) > math.Abs(out[j].Variance)
	})
	return out
}
