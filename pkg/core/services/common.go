package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// Auditor records who changed what. Implementations must not block or fail the caller.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry)
}

// NoopAuditor discards every entry
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, audit.Entry) {}

const (
	moduleEvents      = "events"
	moduleAssignments = "volunteer_assignments"
	moduleSubmissions = "work_submissions"
	moduleLedger      = "volunteer_points"
	moduleVolunteers  = "volunteers"

	dateLayout = "2006-01-02"
)

var now = func() time.Time { return time.Now().UTC() }

// ledgerNote builds the line appended to a volunteer's notes for one credit,
// e.g. [2026-10-19] Event "Food bank": 10 points (present)
func ledgerNote(at time.Time, label string, amount int, detail string) string {
	note := fmt.Sprintf("[%s] %s: %d points", at.Format(dateLayout), label, amount)
	if detail != "" {
		note += fmt.Sprintf(" (%s)", detail)
	}
	return note
}

// paginate returns the page of items, for lists that are read whole
func paginate[T any](items []T, page db.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
