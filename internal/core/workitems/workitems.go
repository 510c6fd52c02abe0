// Package workitems holds the provider-neutral work item model and the
// field references used when reading and patching tracking data
package workitems

import "time"

// Field reference names on the work item tracking API
const (
	FieldID               = "System.Id"
	FieldTitle            = "System.Title"
	FieldState            = "System.State"
	FieldAssignedTo       = "System.AssignedTo"
	FieldWorkItemType     = "System.WorkItemType"
	FieldChangedDate      = "System.ChangedDate"
	FieldHistory          = "System.History"
	FieldOriginalEstimate = "Microsoft.VSTS.Scheduling.OriginalEstimate"
	FieldCompletedWork    = "Microsoft.VSTS.Scheduling.CompletedWork"
	FieldRemainingWork    = "Microsoft.VSTS.Scheduling.RemainingWork"
)

// States that block effort writes
const (
	StateRemoved = "Removed"
	StateDeleted = "Deleted"
	StateClosed  = "Closed"
)

// DefaultFields is the read set for reconciliation
var DefaultFields = []string{
	FieldID,
	FieldTitle,
	FieldState,
	FieldAssignedTo,
	FieldWorkItemType,
	FieldChangedDate,
	FieldOriginalEstimate,
	FieldCompletedWork,
	FieldRemainingWork,
}

// Assignee is the person a work item is assigned to
type Assignee struct {
	DisplayName string
	UniqueName  string
}

// WorkItem is one tracked item with its scheduling fields
// missing scheduling fields read as zero, matching how the provider
// omits them until first write
type WorkItem struct {
	ID       int
	Rev      int
	Title    string
	State    string
	Type     string
	Project  string
	Assignee Assignee

	EstimatedHours float64
	CompletedHours float64
	RemainingHours float64

	ChangedDate time.Time
}

// Locked reports whether the item's state forbids effort writes entirely
func (w WorkItem) Locked() bool {
	return w.State == StateRemoved || w.State == StateDeleted
}

// Terminal reports whether the item is in a state where writes are suspect
// Closed items accept writes but the caller should surface a warning
func (w WorkItem) Terminal() bool {
	return w.Locked() || w.State == StateClosed
}

// AssignedMatch reports whether name matches the assignee, case sensitively
// on the unique name as the provider compares it
func (w WorkItem) AssignedMatch(uniqueName string) bool {
	return uniqueName != "" && w.Assignee.UniqueName == uniqueName
}
