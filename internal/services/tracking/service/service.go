// Package service implements manual time entry tracking on top of the
// JSON file store
package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/validate"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/tracking/domain"
)

// exportHeader is the CSV column contract, import accepts the first five
var exportHeader = []string{
	"entry_id", "work_item_id", "hours", "date", "description", "user_id", "created_at", "synced", "synced_at",
}

var importHeader = []string{"work_item_id", "hours", "date", "description", "user_id"}

// Service implements domain.TrackerPort
type Service struct {
	store domain.StorageRepo
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

// New builds the tracking service
func New(store domain.StorageRepo) *Service {
	return &Service{
		store: store,
		log:   *logger.Named("tracking"),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Add validates and persists one entry
func (s *Service) Add(ctx context.Context, in domain.NewEntry) (domain.Entry, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Entry{}, err
	}

	entries, err := s.store.Load(ctx)
	if err != nil {
		return domain.Entry{}, err
	}

	e := domain.Entry{
		ID:          s.newID(),
		WorkItemID:  in.WorkItemID,
		Hours:       timeutil.Round2(in.Hours),
		Date:        in.Date,
		Description: in.Description,
		User:        in.User,
		CreatedAt:   s.now().UTC(),
	}
	entries = append(entries, e)
	if err := s.store.Save(ctx, entries); err != nil {
		return domain.Entry{}, err
	}

	s.log.Info().Str("entry", e.ID).Int("work_item", e.WorkItemID).Float64("hours", e.Hours).Msg("entry recorded")
	return e, nil
}

// List returns entries matching f, newest first
func (s *Service) List(ctx context.Context, f domain.Filter) ([]domain.Entry, error) {
	entries, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.Entry
	for _, e := range entries {
		if f.WorkItemID != 0 && e.WorkItemID != f.WorkItemID {
			continue
		}
		if f.User != "" && e.User != f.User {
			continue
		}
		if f.Date != "" && e.Date != f.Date {
			continue
		}
		if f.OnlyUnsynced && e.Synced {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes one entry by id
func (s *Service) Delete(ctx context.Context, id string) error {
	entries, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return perr.NotFoundf("entrada %s no existe", id)
	}
	return s.store.Save(ctx, kept)
}

// MarkSynced stamps the given entries as written to the provider
func (s *Service) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	entries, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	ts := s.now().UTC()
	matched := 0
	for i := range entries {
		if want[entries[i].ID] {
			entries[i].Synced = true
			entries[i].SyncedAt = &ts
			matched++
		}
	}
	if matched == 0 {
		return perr.NotFoundf("ninguna de las %d entradas existe", len(ids))
	}
	return s.store.Save(ctx, entries)
}

// ClearSynced drops synced entries and reports how many were removed
func (s *Service) ClearSynced(ctx context.Context) (int, error) {
	entries, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if e.Synced {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.store.Save(ctx, kept)
}

// Summarize aggregates the store
func (s *Service) Summarize(ctx context.Context) (domain.Summary, error) {
	entries, err := s.store.Load(ctx)
	if err != nil {
		return domain.Summary{}, err
	}

	sum := domain.Summary{
		HoursByItem: map[int]float64{},
		HoursByUser: map[string]float64{},
	}
	for _, e := range entries {
		sum.Entries++
		sum.TotalHours += e.Hours
		sum.HoursByItem[e.WorkItemID] = timeutil.Round2(sum.HoursByItem[e.WorkItemID] + e.Hours)
		sum.HoursByUser[e.User] = timeutil.Round2(sum.HoursByUser[e.User] + e.Hours)
		if !e.Synced {
			sum.Unsynced++
		}
		if sum.FirstEntryDate == "" || e.Date < sum.FirstEntryDate {
			sum.FirstEntryDate = e.Date
		}
		if e.Date > sum.LastEntryDate {
			sum.LastEntryDate = e.Date
		}
	}
	sum.TotalHours = timeutil.Round2(sum.TotalHours)
	return sum, nil
}

// ImportCSV reads rows, validating each one; bad rows are collected with
// their line number instead of aborting the whole file
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return domain.ImportResult{}, perr.Wrap(err, perr.ErrorCodeInvalidInput, "el CSV no tiene encabezado")
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, want := range importHeader {
		if _, ok := col[want]; !ok {
			return domain.ImportResult{}, perr.InvalidInputf("el CSV no tiene la columna requerida %q", want)
		}
	}

	var (
		res     domain.ImportResult
		pending []domain.NewEntry
	)
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.RowErrors = append(res.RowErrors, fmt.Sprintf("fila %d: %v", row, err))
			continue
		}

		id, err := strconv.Atoi(rec[col["work_item_id"]])
		if err != nil {
			res.RowErrors = append(res.RowErrors, fmt.Sprintf("fila %d: work_item_id inválido %q", row, rec[col["work_item_id"]]))
			continue
		}
		hours, err := strconv.ParseFloat(rec[col["hours"]], 64)
		if err != nil {
			res.RowErrors = append(res.RowErrors, fmt.Sprintf("fila %d: hours inválido %q", row, rec[col["hours"]]))
			continue
		}

		in := domain.NewEntry{
			WorkItemID:  id,
			Hours:       hours,
			Date:        rec[col["date"]],
			Description: rec[col["description"]],
			User:        rec[col["user_id"]],
		}
		if err := validate.Struct(in); err != nil {
			res.RowErrors = append(res.RowErrors, fmt.Sprintf("fila %d: %v", row, err))
			continue
		}
		pending = append(pending, in)
	}

	if len(pending) > 0 {
		entries, err := s.store.Load(ctx)
		if err != nil {
			return res, err
		}
		ts := s.now().UTC()
		for _, in := range pending {
			entries = append(entries, domain.Entry{
				ID:          s.newID(),
				WorkItemID:  in.WorkItemID,
				Hours:       timeutil.Round2(in.Hours),
				Date:        in.Date,
				Description: in.Description,
				User:        in.User,
				CreatedAt:   ts,
			})
		}
		if err := s.store.Save(ctx, entries); err != nil {
			return res, err
		}
		res.Imported = len(pending)
	}

	s.log.Info().Int("imported", res.Imported).Int("rejected", len(res.RowErrors)).Msg("csv import finished")
	return res, nil
}

// ExportCSV writes every entry and returns the row count
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	entries, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeIO, "csv export write failed")
	}
	for _, e := range entries {
		syncedAt := ""
		if e.SyncedAt != nil {
			syncedAt = e.SyncedAt.UTC().Format(time.RFC3339)
		}
		rec := []string{
			e.ID,
			strconv.Itoa(e.WorkItemID),
			strconv.FormatFloat(e.Hours, 'f', 2, 64),
			e.Date,
			e.Description,
			e.User,
			e.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(e.Synced),
			syncedAt,
		}
		if err := cw.Write(rec); err != nil {
			return 0, perr.Wrap(err, perr.ErrorCodeIO, "csv export write failed")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeIO, "csv export flush failed")
	}
	return len(entries), nil
}

// UnsyncedByWorkItem groups pending manual hours for reconciliation
func (s *Service) UnsyncedByWorkItem(ctx context.Context) (map[int]float64, []string, error) {
	entries, err := s.List(ctx, domain.Filter{OnlyUnsynced: true})
	if err != nil {
		return nil, nil, err
	}
	hours := map[int]float64{}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		hours[e.WorkItemID] = timeutil.Round2(hours[e.WorkItemID] + e.Hours)
		ids = append(ids, e.ID)
	}
	return hours, ids, nil
}
