package engine

import (
	"strings"
)

// Action is a set of reconciliation behaviours requested from Merge.
type Action uint8

const (
	// InsertWhenNotMatched inserts source records with no matching target row.
	InsertWhenNotMatched Action = 1 << iota
	// UpdateWhenMatched overwrites the non-key columns of the single matching row.
	UpdateWhenMatched
	// DeleteWhenNotMatchedBySource deletes target rows no source record matches.
	DeleteWhenNotMatchedBySource
)

// Has reports whether every flag of other is set in a.
func (a Action) Has(other Action) bool {
	return a&other == other
}

// String renders the set as e.g. "ins/upd".
func (a Action) String() string {
	var parts []string
	if a.Has(InsertWhenNotMatched) {
		parts = append(parts, "ins")
	}
	if a.Has(UpdateWhenMatched) {
		parts = append(parts, "upd")
	}
	if a.Has(DeleteWhenNotMatchedBySource) {
		parts = append(parts, "del")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "/")
}

// ParseActions accepts insert, update and delete (or ins, upd, del).
func ParseActions(names []string) (Action, error) {
	var a Action
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "insert", "ins":
			a |= InsertWhenNotMatched
		case "update", "upd":
			a |= UpdateWhenMatched
		case "delete", "del":
			a |= DeleteWhenNotMatchedBySource
		default:
			return 0, configurationf("unknown merge action %q", name)
		}
	}
	return a, nil
}
