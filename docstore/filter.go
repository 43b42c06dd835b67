package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Filter is a field-to-condition predicate over document fields. A plain
// value means equality; operator conditions are built with In, Ne, Gt,
// Gte, Lt, Lte, and Exists. All conditions must hold for a document to
// match (implicit AND).
type Filter map[string]any

type opKind int

const (
	opIn opKind = iota
	opNe
	opGt
	opGte
	opLt
	opLte
	opExists
)

type condition struct {
	kind   opKind
	value  any
	values []any
	exists bool
}

// String renders the operator and its operands. Cache-key derivation
// relies on it: two conditions must render identically iff they match
// the same documents.
func (c condition) String() string {
	switch c.kind {
	case opIn:
		parts := make([]string, len(c.values))
		for i, v := range c.values {
			parts[i] = fmt.Sprintf("%v", v)
		}
		return "in(" + strings.Join(parts, ",") + ")"
	case opNe:
		return fmt.Sprintf("ne(%v)", c.value)
	case opGt:
		return fmt.Sprintf("gt(%v)", c.value)
	case opGte:
		return fmt.Sprintf("gte(%v)", c.value)
	case opLt:
		return fmt.Sprintf("lt(%v)", c.value)
	case opLte:
		return fmt.Sprintf("lte(%v)", c.value)
	case opExists:
		return fmt.Sprintf("exists(%t)", c.exists)
	default:
		return fmt.Sprintf("op%d(%v)", c.kind, c.value)
	}
}

// In matches documents whose field equals any of the given values.
func In(values ...any) any { return condition{kind: opIn, values: values} }

// Ne matches documents whose field is not equal to v.
func Ne(v any) any { return condition{kind: opNe, value: v} }

// Gt matches documents whose field is strictly greater than v.
func Gt(v any) any { return condition{kind: opGt, value: v} }

// Gte matches documents whose field is greater than or equal to v.
func Gte(v any) any { return condition{kind: opGte, value: v} }

// Lt matches documents whose field is strictly less than v.
func Lt(v any) any { return condition{kind: opLt, value: v} }

// Lte matches documents whose field is less than or equal to v.
func Lte(v any) any { return condition{kind: opLte, value: v} }

// Exists matches on field presence. Exists(false) also matches fields
// explicitly set to nil, mirroring how absent and null are conflated in
// document databases.
func Exists(present bool) any { return condition{kind: opExists, exists: present} }

// Clone returns a shallow copy of the filter. Conditions are immutable,
// so a shallow copy is safe to extend without aliasing the original.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Matches reports whether the document satisfies every condition.
func (f Filter) Matches(doc Document) bool {
	for field, cond := range f {
		val, present := doc[field]
		if !matchCondition(cond, val, present) {
			return false
		}
	}
	return true
}

func matchCondition(cond, val any, present bool) bool {
	c, ok := cond.(condition)
	if !ok {
		// Plain value: equality. A nil condition matches absent fields too.
		if cond == nil {
			return !present || val == nil
		}
		return present && equalValues(cond, val)
	}

	switch c.kind {
	case opExists:
		if c.exists {
			return present && val != nil
		}
		return !present || val == nil
	case opIn:
		if !present {
			return false
		}
		for _, candidate := range c.values {
			if equalValues(candidate, val) {
				return true
			}
		}
		return false
	case opNe:
		if c.value == nil {
			return present && val != nil
		}
		return !present || !equalValues(c.value, val)
	case opGt, opGte, opLt, opLte:
		if !present {
			return false
		}
		order, comparable := compareValues(val, c.value)
		if !comparable {
			return false
		}
		switch c.kind {
		case opGt:
			return order > 0
		case opGte:
			return order >= 0
		case opLt:
			return order < 0
		default:
			return order <= 0
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two document values. Numbers compare numerically
// across integer and float representations, times chronologically, and
// strings lexicographically. Mixed or unsupported kinds do not compare.
func compareValues(a, b any) (int, bool) {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		default:
			return 0, true
		}
	}

	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}

	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case ba == bb:
			return 0, true
		case bb:
			return -1, true
		default:
			return 1, true
		}
	}

	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// SortField names a document field and a direction for ordering results.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions bound and order the result window of a Find.
type FindOptions struct {
	Sort  []SortField
	Limit int
	Skip  int
}

func sortDocuments(docs []Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, sf := range fields {
			order, ok := compareValues(docs[i][sf.Field], docs[j][sf.Field])
			if !ok || order == 0 {
				continue
			}
			if sf.Desc {
				return order > 0
			}
			return order < 0
		}
		return false
	})
}

// Pipeline is a minimal aggregation pipeline: an optional match stage
// followed by grouping. It covers the statistics queries the repository
// layer needs without reaching for a full query language.
type Pipeline []Stage

// Stage is a single aggregation step.
type Stage interface {
	stage()
}

// MatchStage filters the working set.
type MatchStage struct {
	Filter Filter
}

func (MatchStage) stage() {}

// GroupStage groups documents by the value of By and emits one document
// per distinct value: {"_id": <value>, "count": <n>}.
type GroupStage struct {
	By string
}

func (GroupStage) stage() {}

// CountStage collapses the working set into a single {"count": <n>} document.
type CountStage struct{}

func (CountStage) stage() {}

func runPipeline(docs []Document, pipeline Pipeline) ([]Document, error) {
	working := docs
	for _, st := range pipeline {
		switch s := st.(type) {
		case MatchStage:
			var matched []Document
			for _, d := range working {
				if s.Filter.Matches(d) {
					matched = append(matched, d)
				}
			}
			working = matched
		case CountStage:
			working = []Document{{"count": int64(len(working))}}
		case GroupStage:
			counts := map[any]int64{}
			var order []any
			for _, d := range working {
				key := d[s.By]
				if key != nil && !reflect.TypeOf(key).Comparable() {
					return nil, fmt.Errorf("docstore: group by %s: value of type %T is not comparable", s.By, key)
				}
				if _, seen := counts[key]; !seen {
					order = append(order, key)
				}
				counts[key]++
			}
			grouped := make([]Document, 0, len(order))
			for _, key := range order {
				grouped = append(grouped, Document{"_id": key, "count": counts[key]})
			}
			working = grouped
		default:
			return nil, fmt.Errorf("docstore: unsupported pipeline stage %T", st)
		}
	}
	return working, nil
}
