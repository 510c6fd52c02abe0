package domain

import (
	"context"
	"io"
)

// TrackerPort is the public surface other modules call
type TrackerPort interface {
	Add(ctx context.Context, in NewEntry) (Entry, error)
	List(ctx context.Context, f Filter) ([]Entry, error)
	Delete(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, ids []string) error
	ClearSynced(ctx context.Context) (int, error)
	Summarize(ctx context.Context) (Summary, error)
	ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error)
	ExportCSV(ctx context.Context, w io.Writer) (int, error)
}

// StorageRepo persists entries
// implementations must survive concurrent callers
type StorageRepo interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}
