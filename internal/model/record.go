package model

import "time"

// SCETLayout is the ISO 8601 ordinal-date timestamp form used across
// pva inputs and outputs (e.g. "2025-354T00:00:01").
const SCETLayout = "2006-002T15:04:05"

// SourceKind identifies which export a record came from.
type SourceKind string

const (
	KindRolling  SourceKind = "rolling-24h"
	KindPrevious SourceKind = "previous-24h"
	KindMonthly  SourceKind = "monthly"
	KindFault    SourceKind = "fault-log"
)

// Rank returns the fixed recency rank used for overlap resolution and
// merge tie-breaks. Lower is more recent. The fault log never enters
// overlap resolution and sorts last.
func (k SourceKind) Rank() int {
	switch k {
	case KindRolling:
		return 0
	case KindPrevious:
		return 1
	case KindMonthly:
		return 2
	default:
		return 3
	}
}

// DataKinds lists the non-fault source kinds in rank order.
func DataKinds() []SourceKind {
	return []SourceKind{KindRolling, KindPrevious, KindMonthly}
}

// ParseKind maps a kind name to its SourceKind.
func ParseKind(s string) (SourceKind, bool) {
	switch SourceKind(s) {
	case KindRolling, KindPrevious, KindMonthly, KindFault:
		return SourceKind(s), true
	}
	return "", false
}

// Record is one timestamped sample from a single export.
type Record struct {
	Timestamp time.Time
	Source    SourceKind
	Seq       int               // original position within the file
	Fields    map[string]string // channel name → value
}

// Span is a closed [Min, Max] time interval.
type Span struct {
	Min time.Time
	Max time.Time
}

// Contains reports whether t falls inside the span, inclusive.
func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.Min) && !t.After(s.Max)
}

// Intersects reports whether two spans share at least one instant.
func (s Span) Intersects(o Span) bool {
	return !s.Max.Before(o.Min) && !o.Max.Before(s.Min)
}

// Intersect returns the closed intersection of two spans. Only valid
// when Intersects is true.
func (s Span) Intersect(o Span) Span {
	out := s
	if o.Min.After(out.Min) {
		out.Min = o.Min
	}
	if o.Max.Before(out.Max) {
		out.Max = o.Max
	}
	return out
}

// DataFile is one parsed export: records sorted ascending by timestamp,
// with no duplicate timestamps within the file.
type DataFile struct {
	Path     string
	Kind     SourceKind
	Records  []Record
	Units    map[string]string // channel name → unit, from the header
	Coverage Span
}

// Empty reports whether the file parsed to zero records.
func (f DataFile) Empty() bool {
	return len(f.Records) == 0
}
