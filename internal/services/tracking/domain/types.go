// Package domain holds the manual time tracking types and ports
package domain

import "time"

// Entry is one manually recorded block of work
type Entry struct {
	ID          string     `json:"entry_id"`
	WorkItemID  int        `json:"work_item_id"`
	Hours       float64    `json:"hours"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	User        string     `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	Synced      bool       `json:"synced"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// NewEntry is the validated input for recording an entry
type NewEntry struct {
	WorkItemID  int     `json:"work_item_id" validate:"required,gt=0"`
	Hours       float64 `json:"hours" validate:"required,gt=0,lte=24"`
	Date        string  `json:"date" validate:"required,date_ymd"`
	Description string  `json:"description" validate:"required"`
	User        string  `json:"user_id" validate:"required"`
}

// Filter narrows listings; zero values mean no constraint
type Filter struct {
	WorkItemID   int
	User         string
	Date         string
	OnlyUnsynced bool
}

// Summary aggregates the store for reporting
type Summary struct {
	Entries        int                `json:"entries"`
	TotalHours     float64            `json:"total_hours"`
	Unsynced       int                `json:"unsynced"`
	HoursByItem    map[int]float64    `json:"hours_by_item"`
	HoursByUser    map[string]float64 `json:"hours_by_user"`
	FirstEntryDate string             `json:"first_entry_date,omitempty"`
	LastEntryDate  string             `json:"last_entry_date,omitempty"`
}

// ImportResult reports a CSV import, keeping per-row failures
type ImportResult struct {
	Imported  int      `json:"imported"`
	RowErrors []string `json:"row_errors,omitempty"`
}
