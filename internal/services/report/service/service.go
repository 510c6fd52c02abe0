// Package service renders reconciliation results as JSON, CSV, and the
// operator-facing text summary
package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/variance"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"
	syncdom "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/domain"
)

// DefaultDir is where reports land when nothing is configured
const DefaultDir = "reports"

// discrepancyHeader is the CSV column contract for discrepancy exports
var discrepancyHeader = []string{
	"work_item_id", "title", "estimated_hours", "actual_hours",
	"variance", "variance_pct", "ratio", "level", "description", "recommendation",
}

// Service writes report artifacts into one directory
type Service struct {
	dir string
	log logger.Logger
	now func() time.Time
}

// New builds the report service; dir falls back to DefaultDir
func New(dir string) *Service {
	if dir == "" {
		dir = DefaultDir
	}
	return &Service{dir: dir, log: *logger.Named("report"), now: time.Now}
}

// Dir returns the output directory
func (s *Service) Dir() string { return s.dir }

func (s *Service) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "cannot create report directory %s", s.dir)
	}
	return nil
}

func (s *Service) writeJSON(name string, v any) (string, error) {
	if err := s.ensureDir(); err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "report encode failed")
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "cannot write report %s", path)
	}
	s.log.Info().Str("path", path).Msg("report written")
	return path, nil
}

// Daily writes the JSON report for one day's run
// date must be a YYYY-MM-DD day key
func (s *Service) Daily(_ context.Context, date string, run syncdom.RunSummary) (string, error) {
	if _, err := timeutil.ParseDay(date, time.UTC); err != nil {
		return "", err
	}
	doc := struct {
		Date        string             `json:"date"`
		GeneratedAt time.Time          `json:"generated_at"`
		Run         syncdom.RunSummary `json:"run"`
	}{Date: date, GeneratedAt: s.now().UTC(), Run: run}
	return s.writeJSON(fmt.Sprintf("daily_report_%s.json", date), doc)
}

// Sprint writes the JSON summary for one sprint
func (s *Service) Sprint(_ context.Context, name string, stats variance.Statistics, runs []syncdom.RunSummary) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", perr.MissingFieldf("el sprint necesita un nombre")
	}
	doc := struct {
		Sprint      string               `json:"sprint"`
		GeneratedAt time.Time            `json:"generated_at"`
		Statistics  variance.Statistics  `json:"statistics"`
		Runs        []syncdom.RunSummary `json:"runs"`
	}{Sprint: name, GeneratedAt: s.now().UTC(), Statistics: stats, Runs: runs}

	slug := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	fname := fmt.Sprintf("sprint_summary_%s_%s.json", slug, timeutil.DayKey(s.now()))
	return s.writeJSON(fname, doc)
}

// Discrepancies writes the CSV of deviations at or above minLevel
// infinite percentages appear as the Infinity sentinel string
func (s *Service) Discrepancies(_ context.Context, cs []variance.Comparison, minLevel variance.Level) (string, error) {
	if err := s.ensureDir(); err != nil {
		return "", err
	}
	rows := variance.Discrepancies(cs, minLevel)

	path := filepath.Join(s.dir, fmt.Sprintf("discrepancy_report_%s.csv", s.now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "cannot create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Str("path", path).Msg("report close failed")
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.Write(discrepancyHeader); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeIO, "csv write failed")
	}
	for _, c := range rows {
		rec := []string{
			strconv.Itoa(c.WorkItemID),
			c.Title,
			strconv.FormatFloat(c.EstimatedHours, 'f', 2, 64),
			strconv.FormatFloat(c.ActualHours, 'f', 2, 64),
			strconv.FormatFloat(c.Variance, 'f', 2, 64),
			c.VariancePct.String(),
			c.Ratio.String(),
			string(c.Level),
			c.Description,
			c.Recommendation,
		}
		if err := cw.Write(rec); err != nil {
			return "", perr.Wrap(err, perr.ErrorCodeIO, "csv write failed")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeIO, "csv flush failed")
	}

	s.log.Info().Str("path", path).Int("rows", len(rows)).Msg("discrepancy report written")
	return path, nil
}

// TextSummary renders the operator banner for one run
func TextSummary(run syncdom.RunSummary) string {
	var b strings.Builder
	bar := strings.Repeat("=", 60)

	fmt.Fprintln(&b, bar)
	fmt.Fprintln(&b, "RESUMEN DE SEGUIMIENTO DE TIEMPO")
	fmt.Fprintln(&b, bar)
	fmt.Fprintf(&b, "Corrida:        %s\n", run.RunID)
	fmt.Fprintf(&b, "Ventana:        %s a %s\n", timeutil.DayKey(run.Window.From), timeutil.DayKey(run.Window.To))
	fmt.Fprintf(&b, "Estrategia:     %s\n", run.Strategy)
	fmt.Fprintf(&b, "Reuniones:      %d recibidas, %d válidas\n", run.MeetingsFetched, run.MeetingsValid)
	fmt.Fprintf(&b, "Coincidencia:   %.0f%% (%d sin asignar)\n", run.MatchRate*100, run.Unmatched)
	if run.ManualHours > 0 {
		fmt.Fprintf(&b, "Horas manuales: %.2f\n", run.ManualHours)
	}
	fmt.Fprintf(&b, "Escrituras:     %d aplicadas, %d omitidas, %d fallidas\n",
		run.WriteStats.Successful, run.WriteStats.Skipped, run.WriteStats.Failed)

	if len(run.Conflicts) > 0 {
		fmt.Fprintln(&b, bar)
		fmt.Fprintf(&b, "Conflictos detectados: %d\n", len(run.Conflicts))
		byType := map[string]int{}
		for _, c := range run.Conflicts {
			byType[c.Type]++
		}
		types := make([]string, 0, len(byType))
		for t := range byType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "  - %s: %d\n", t, byType[t])
		}
	}

	if run.Error != "" {
		fmt.Fprintln(&b, bar)
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(&b, bar)
	return b.String()
}
