package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"capatrack/internal/errs"
	"capatrack/internal/ports"
)

func printJSON(cmd *cobra.Command, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(err, "marshal command output")
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(payload)); err != nil {
		return errs.Wrap(err, "write command output")
	}
	return nil
}

type findingItem struct {
	FindingID      string  `json:"finding_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status"`
	ClosedBy       *string `json:"closed_by,omitempty"`
	ClosedAt       *string `json:"closed_at,omitempty"`
	ReopenedCount  int     `json:"reopened_count"`
	LastReopenedAt *string `json:"last_reopened_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toFindingItem(f ports.Finding) findingItem {
	return findingItem{
		FindingID:      f.FindingID,
		Title:          f.Title,
		Description:    f.Description,
		Status:         string(f.Status),
		ClosedBy:       f.ClosedBy,
		ClosedAt:       f.ClosedAt,
		ReopenedCount:  f.ReopenedCount,
		LastReopenedAt: f.LastReopenedAt,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

type capaItem struct {
	CapaID         string  `json:"capa_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status"`
	FindingID      *string `json:"finding_id,omitempty"`
	VerifiedBy     *string `json:"verified_by,omitempty"`
	VerifiedAt     *string `json:"verified_at,omitempty"`
	ClosedBy       *string `json:"closed_by,omitempty"`
	ClosedAt       *string `json:"closed_at,omitempty"`
	ReopenedCount  int     `json:"reopened_count"`
	LastReopenedAt *string `json:"last_reopened_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toCapaItem(c ports.CorrectiveAction) capaItem {
	return capaItem{
		CapaID:         c.CapaID,
		Title:          c.Title,
		Description:    c.Description,
		Status:         string(c.Status),
		FindingID:      c.FindingID,
		VerifiedBy:     c.VerifiedBy,
		VerifiedAt:     c.VerifiedAt,
		ClosedBy:       c.ClosedBy,
		ClosedAt:       c.ClosedAt,
		ReopenedCount:  c.ReopenedCount,
		LastReopenedAt: c.LastReopenedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type taskItem struct {
	TaskID    string `json:"task_id"`
	CapaID    string `json:"capa_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toTaskItem(t ports.CorrectiveActionTask) taskItem {
	return taskItem{
		TaskID:    t.TaskID,
		CapaID:    t.CapaID,
		Title:     t.Title,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type historyItem struct {
	EntryID        uint64            `json:"entry_id"`
	EntityKind     string            `json:"entity_kind"`
	EntityID       string            `json:"entity_id"`
	PreviousStatus *string           `json:"previous_status"`
	NewStatus      string            `json:"new_status"`
	ChangedBy      string            `json:"changed_by"`
	Reason         string            `json:"reason,omitempty"`
	Source         string            `json:"source"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

func toHistoryItem(e ports.StatusHistoryEntry) historyItem {
	item := historyItem{
		EntryID:    e.EntryID,
		EntityKind: string(e.EntityKind),
		EntityID:   e.EntityID,
		NewStatus:  string(e.NewStatus),
		ChangedBy:  e.ChangedBy,
		Reason:     e.Reason,
		Source:     string(e.Source),
		Metadata:   e.Metadata,
		CreatedAt:  e.CreatedAt,
	}
	if e.PreviousStatus != nil {
		prev := string(*e.PreviousStatus)
		item.PreviousStatus = &prev
	}
	return item
}
