// Package todo defines the host-facing task model and the reconciliation
// between Notion's four-valued status vocabulary and the two-valued task
// status.
package todo

import (
	"log/slog"
	"time"
)

// Status is the host-facing task status.
type Status string

// The two host-visible statuses.
const (
	StatusNeedsAction Status = "needs_action"
	StatusCompleted   Status = "completed"
)

// Notion status option names. These are the default names of Notion's
// status groups; "In progress" and "Archived" can only be entered or left
// in Notion itself.
const (
	NotionNotStarted = "Not started"
	NotionInProgress = "In progress"
	NotionDone       = "Done"
	NotionArchived   = "Archived"
)

// Item is one task, rebuilt wholesale from a Notion page on every poll and
// never persisted.
type Item struct {
	// UID is the Notion page id.
	UID string `json:"uid"`
	// Summary is the task title.
	Summary string `json:"summary"`
	// Status is the host-facing status.
	Status Status `json:"status"`
	// Description is optional free text.
	Description *string `json:"description,omitempty"`
	// Due is the optional due date.
	Due *time.Time `json:"due,omitempty"`
	// DueDateOnly records that the due value carried no time of day.
	DueDateOnly bool `json:"due_date_only,omitempty"`
}

// StatusFromNotion maps a Notion status name to the host status. The host
// model cannot express "In progress" or "Archived"; both collapse into the
// nearest host status. An unknown name maps to needs-action with a log so
// an exotic status board does not break the poll.
func StatusFromNotion(name string) Status {
	switch name {
	case NotionNotStarted, NotionInProgress:
		return StatusNeedsAction
	case NotionDone, NotionArchived:
		return StatusCompleted
	default:
		slog.Warn("unknown notion status, treating as needs-action", "status", name)
		return StatusNeedsAction
	}
}

// StatusToNotion maps a host status back to the Notion status to write,
// given the last status observed in Notion for the same page. A host-side
// toggle is uninformed about the hidden states, so it must not regress
// "In progress" to "Not started" or collapse "Archived" to "Done"; those
// transitions only ever happen in Notion. With no previous status (a fresh
// create, or a page never seen by a poll) the plain two-way mapping
// applies.
func StatusToNotion(status Status, previous string) string {
	switch status {
	case StatusNeedsAction:
		if previous == NotionInProgress {
			return NotionInProgress
		}
		return NotionNotStarted
	case StatusCompleted:
		if previous == NotionArchived {
			return NotionArchived
		}
		return NotionDone
	default:
		slog.Warn("unknown host status, treating as needs-action", "status", string(status))
		return NotionNotStarted
	}
}
