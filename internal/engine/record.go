package engine

import "db-merge/internal/schema"

// Record is one flattened source row keyed by column name (or logical field name).
type Record map[string]interface{}

// Records maps typed items to records with fn.
func Records[T any](items []T, fn func(T) Record) []Record {
	batch := make([]Record, len(items))
	for i, item := range items {
		batch[i] = fn(item)
	}
	return batch
}

// value returns the record's value for c, trying the storage name first.
func (r Record) value(c *schema.Column) (interface{}, bool) {
	if v, ok := r[c.Name]; ok {
		return v, true
	}
	if c.Field != "" && c.Field != c.Name {
		v, ok := r[c.Field]
		return v, ok
	}
	return nil, false
}
