package catalogue

import (
	"sort"
)

// Merge combines a record with its detail fragment. Fragment fields win on
// collision. A nil fragment yields the record's own fields and nothing else;
// placeholders are never synthesized here.
func Merge(record SummaryRecord, fragment *DetailFragment) OutputRow {
	row := record.Fields()
	if fragment == nil {
		return row
	}
	for k, v := range fragment.Fields() {
		row[k] = v
	}
	return row
}

// MergeAll merges every enrichment, one row per input.
func MergeAll(enrichments []Enrichment) []OutputRow {
	rows := make([]OutputRow, 0, len(enrichments))
	for _, e := range enrichments {
		rows = append(rows, Merge(e.Record, e.Fragment))
	}
	return rows
}

// BuildSchema returns the canonical fields followed by any other field seen
// in rows, in first-observed order. Keys within one row are visited in sorted
// order so the result does not depend on map iteration.
func BuildSchema(rows []OutputRow) FieldSchema {
	schema := make(FieldSchema, len(CanonicalFields), len(CanonicalFields)+4)
	copy(schema, CanonicalFields)
	seen := make(map[string]struct{}, len(schema))
	for _, f := range schema {
		seen[f] = struct{}{}
	}
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			schema = append(schema, k)
		}
	}
	return schema
}

// Values renders row in schema order, with absent fields left empty.
func (s FieldSchema) Values(row OutputRow) []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = row[f]
	}
	return out
}
