package domain

import (
	"context"
	"time"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/meetings"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
)

// SyncPort is the public surface exposed by the module
type SyncPort interface {
	Run(ctx context.Context, req RunRequest) (RunSummary, error)
	History() []RunSummary
	LastRun() *RunSummary
}

// CalendarPort fetches raw events for one user
type CalendarPort interface {
	Events(ctx context.Context, userID string, from, to time.Time) ([]meetings.RawEvent, error)
}

// WorkItemsPort reads and writes work item tracking data
type WorkItemsPort interface {
	QueryIDs(ctx context.Context, wiql string, top int) ([]int, error)
	Items(ctx context.Context, ids []int) ([]workitems.WorkItem, error)
	UpdateCompleted(ctx context.Context, id int, hours float64, comment string) (*workitems.WorkItem, error)
	Projects(ctx context.Context) ([]string, error)
}

// ManualPort is the slice of the tracking module a run consumes
type ManualPort interface {
	UnsyncedByWorkItem(ctx context.Context) (map[int]float64, []string, error)
	MarkSynced(ctx context.Context, ids []string) error
}
