package facts

import (
	"sort"
)

// Database is the decoded companyfacts payload: taxonomy -> concept ->
// {units: {unit -> [records]}}. Any branch may be missing or malformed.
type Database = map[string]any

// Unwrap returns the taxonomy map of a companyfacts payload. Both the full
// API response (with a top-level "facts" key) and the bare taxonomy map are
// accepted.
func Unwrap(payload any) (Database, bool) {
	root, ok := asMap(payload)
	if !ok {
		return nil, false
	}
	if inner, ok := asMap(root["facts"]); ok {
		return inner, true
	}
	return root, true
}

// CollectRaw walks every taxonomy, concept, unit and record and returns the
// records tagged with where they were found. Keys are visited in sorted order
// so the output is stable for a given input. Malformed branches are skipped.
func CollectRaw(payload any) []RawRecord {
	db, ok := Unwrap(payload)
	if !ok {
		return nil
	}

	var out []RawRecord
	for _, taxonomy := range sortedKeys(db) {
		concepts, ok := asMap(db[taxonomy])
		if !ok {
			continue
		}
		for _, concept := range sortedKeys(concepts) {
			for _, unit := range UnitRows(concepts[concept]) {
				for _, row := range unit.Rows {
					tagged := make(RawRecord, len(row)+3)
					for k, v := range row {
						tagged[k] = v
					}
					tagged["concept"] = concept
					tagged["unit"] = unit.Unit
					tagged["taxonomy"] = taxonomy
					out = append(out, tagged)
				}
			}
		}
	}
	return out
}

// CollectAllFacts flattens and normalizes the whole database.
func CollectAllFacts(payload any) []FactRecord {
	return NormalizeFields(CollectRaw(payload))
}

// UnitGroup is the list of raw rows reported under one unit of a concept.
type UnitGroup struct {
	Unit string
	Rows []RawRecord
}

// UnitRows returns the rows of one raw concept object grouped by unit, in
// sorted unit order. Rows that are not objects are skipped.
func UnitRows(rawConcept any) []UnitGroup {
	concept, ok := asMap(rawConcept)
	if !ok {
		return nil
	}
	units, ok := asMap(concept["units"])
	if !ok {
		return nil
	}

	var groups []UnitGroup
	for _, unit := range sortedKeys(units) {
		list, ok := asSlice(units[unit])
		if !ok {
			continue
		}
		g := UnitGroup{Unit: unit}
		for _, item := range list {
			if row, ok := asMap(item); ok {
				g.Rows = append(g.Rows, RawRecord(row))
			}
		}
		if len(g.Rows) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// MergeRaw returns a copy of the database with extra tagged records appended
// under their taxonomy/concept/unit. Records missing any of those tags are
// ignored. The input database is not modified.
func MergeRaw(payload any, extra []RawRecord) Database {
	src, _ := Unwrap(payload)
	merged := make(Database, len(src))
	for tax, v := range src {
		merged[tax] = v
	}

	for _, r := range extra {
		rec, ok := Normalize(r)
		if !ok || rec.Taxonomy == "" || rec.Concept == "" || rec.Unit == "" {
			continue
		}

		concepts := cloneMap(merged[rec.Taxonomy])
		merged[rec.Taxonomy] = concepts
		concept := cloneMap(concepts[rec.Concept])
		concepts[rec.Concept] = concept
		units := cloneMap(concept["units"])
		concept["units"] = units

		rows, _ := asSlice(units[rec.Unit])
		next := make([]any, len(rows), len(rows)+1)
		copy(next, rows)
		units[rec.Unit] = append(next, map[string]any(rec.Raw()))
	}
	return merged
}

func cloneMap(v any) map[string]any {
	m, _ := asMap(v)
	out := make(map[string]any, len(m)+1)
	for k, x := range m {
		out[k] = x
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case RawRecord:
		return m, m != nil
	default:
		return nil, false
	}
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []RawRecord:
		out := make([]any, len(s))
		for i, r := range s {
			out[i] = r
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, r := range s {
			out[i] = r
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Taxonomy is one namespace of the database with its raw concept objects.
type Taxonomy struct {
	Name     string
	Concepts map[string]any
}

// Taxonomies lists the well-formed taxonomy branches in sorted order.
func Taxonomies(payload any) []Taxonomy {
	db, ok := Unwrap(payload)
	if !ok {
		return nil
	}
	var out []Taxonomy
	for _, name := range sortedKeys(db) {
		if concepts, ok := asMap(db[name]); ok {
			out = append(out, Taxonomy{Name: name, Concepts: concepts})
		}
	}
	return out
}
