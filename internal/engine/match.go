package engine

import (
	"db-merge/internal/dialect"
	"db-merge/internal/schema"
)

// Pair equates a source record field with a target column.
type Pair struct {
	Source string
	Target string
}

// Match decides which target row a source record corresponds to.
type Match struct {
	pairs []Pair
	byKey bool
}

// On matches on explicit (source, target) equality pairs.
func On(pairs ...Pair) Match {
	return Match{pairs: pairs}
}

// OnColumns matches each named column against the same-named source field.
func OnColumns(columns ...string) Match {
	pairs := make([]Pair, len(columns))
	for i, c := range columns {
		pairs[i] = Pair{Source: c, Target: c}
	}
	return Match{pairs: pairs}
}

// ByPrimaryKey matches on the target's primary key columns.
func ByPrimaryKey() Match {
	return Match{byKey: true}
}

// ByKey reports whether m defers to the primary key.
func (m Match) ByKey() bool {
	return m.byKey
}

// resolve rewrites m into storage-level equality pairs over t.
func (m Match) resolve(t *schema.Table) ([]dialect.Pair, error) {
	if m.byKey {
		pk := t.PrimaryKey()
		if len(pk) == 0 {
			return nil, configurationf("table %s has no primary key to match on", t.Name)
		}
		on := make([]dialect.Pair, len(pk))
		for i, c := range pk {
			on[i] = dialect.Pair{Source: c.Name, Target: c.Name}
		}
		return on, nil
	}

	if len(m.pairs) == 0 {
		return nil, configurationf("match on table %s has no equality pairs", t.Name)
	}
	on := make([]dialect.Pair, len(m.pairs))
	for i, p := range m.pairs {
		src := lookupColumn(t, p.Source)
		if src == nil {
			return nil, configurationf("match source field %q is not a column of %s", p.Source, t.Name)
		}
		dst := lookupColumn(t, p.Target)
		if dst == nil {
			return nil, configurationf("match target field %q is not a column of %s", p.Target, t.Name)
		}
		on[i] = dialect.Pair{Source: src.Name, Target: dst.Name}
	}
	return on, nil
}

// lookupColumn finds a column by storage name, then by logical field name.
func lookupColumn(t *schema.Table, name string) *schema.Column {
	if c := t.Column(name); c != nil {
		return c
	}
	for _, c := range t.Columns {
		if c.Field == name {
			return c
		}
	}
	return nil
}
