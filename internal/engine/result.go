package engine

import (
	"fmt"
	"strings"
	"time"

	"db-merge/internal/dialect"
)

// Result reports what a Merge did to the target table.
type Result struct {
	Table   string
	Actions Action

	Affected int // Inserted + Updated + Deleted + Merged
	Inserted int
	Updated  int
	Deleted  int
	// Merged counts rows the backend reported without naming the action.
	Merged int

	Statements int
	Elapsed    time.Duration
}

func (r *Result) add(action dialect.Action, n int) {
	switch dialect.Action(strings.ToUpper(string(action))) {
	case dialect.ActionInsert:
		r.Inserted += n
	case dialect.ActionUpdate:
		r.Updated += n
	case dialect.ActionDelete:
		r.Deleted += n
	default:
		r.Merged += n
	}
	r.Affected += n
}

// Report renders a one-line summary.
func (r *Result) Report() string {
	return fmt.Sprintf("%s [%s]: affected=%d (ins=%d upd=%d del=%d merged=%d) statements=%d in %s",
		r.Table, r.Actions, r.Affected, r.Inserted, r.Updated, r.Deleted, r.Merged, r.Statements, r.Elapsed.Round(time.Microsecond))
}

// Accumulate adds the counts of other to r, for callers merging in chunks.
func (r *Result) Accumulate(other *Result) {
	if other == nil {
		return
	}
	r.Actions |= other.Actions
	r.Affected += other.Affected
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	r.Merged += other.Merged
	r.Statements += other.Statements
	r.Elapsed += other.Elapsed
}
