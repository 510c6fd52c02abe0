package azdo

import (
	"time"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/workitems"
)

// wireItem is the raw work item shape; typed fields are extracted from the
// loosely typed fields map
type wireItem struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields map[string]any `json:"fields"`
}

type wireBatch struct {
	Count int        `json:"count"`
	Value []wireItem `json:"value"`
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type projectList struct {
	Count int `json:"count"`
	Value []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"value"`
}

// PatchOp is one JSON Patch operation against work item fields
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// AddField builds the add op for a field reference
func AddField(field string, value any) PatchOp {
	return PatchOp{Op: "add", Path: "/fields/" + field, Value: value}
}

func (w wireItem) toDomain(project string) workitems.WorkItem {
	item := workitems.WorkItem{
		ID:             w.ID,
		Rev:            w.Rev,
		Project:        project,
		Title:          fieldString(w.Fields, workitems.FieldTitle),
		State:          fieldString(w.Fields, workitems.FieldState),
		Type:           fieldString(w.Fields, workitems.FieldWorkItemType),
		EstimatedHours: fieldFloat(w.Fields, workitems.FieldOriginalEstimate),
		CompletedHours: fieldFloat(w.Fields, workitems.FieldCompletedWork),
		RemainingHours: fieldFloat(w.Fields, workitems.FieldRemainingWork),
	}
	if raw, ok := w.Fields[workitems.FieldAssignedTo].(map[string]any); ok {
		item.Assignee = workitems.Assignee{
			DisplayName: str(raw["displayName"]),
			UniqueName:  str(raw["uniqueName"]),
		}
	}
	if ts := fieldString(w.Fields, workitems.FieldChangedDate); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			item.ChangedDate = t
		}
	}
	return item
}

func fieldString(m map[string]any, key string) string { return str(m[key]) }

func str(v any) string {
	s, _ := v.(string)
	return s
}

// fieldFloat reads a numeric field, defaulting to 0 when absent
func fieldFloat(m map[string]any, key string) float64 {
	switch n := m[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
