package dataset

import (
	"encoding/json"
	"strings"
)

// SentinelName marks violation rows the ingest pipeline produced from a
// mis-joined reference code; they are data noise, not violations.
const SentinelName = "Unknown Tribe"

// StatusClass buckets the free-form violation status vocabulary.
type StatusClass string

const (
	StatusPending  StatusClass = "pending"
	StatusActive   StatusClass = "active"
	StatusResolved StatusClass = "resolved"
)

// IsActual reports whether v is a real violation: it has an ID, a name,
// and the name is not the sentinel. Every count and listing in the
// service must apply this same predicate.
func IsActual(v Violation) bool {
	return v.ID != "" && v.Name != "" && v.Name != SentinelName
}

// Classify maps a violation status string to its bucket. Empty, "Open",
// "Unaddressed", and "Pending" are pending; "Archived" and "Resolved" are
// resolved; anything else is active-unresolved.
func Classify(status string) StatusClass {
	switch strings.TrimSpace(status) {
	case "", "Open", "Unaddressed", "Pending":
		return StatusPending
	case "Archived", "Resolved":
		return StatusResolved
	default:
		return StatusActive
	}
}

// IsClosed reports whether a status counts as closed for the
// active-violation rule.
func IsClosed(status string) bool {
	return Classify(status) == StatusResolved
}

// PopulationServed returns the served population, "0" when the snapshot
// omits it. An empty json.Number does not marshal.
func (s *WaterSystem) PopulationServed() json.Number {
	if s.Population == "" {
		return "0"
	}
	return s.Population
}

// ActualViolations returns the actual violations of a system.
func (s *WaterSystem) ActualViolations() []Violation {
	out := make([]Violation, 0, len(s.Violations))
	for _, v := range s.Violations {
		if IsActual(v) {
			out = append(out, v)
		}
	}
	return out
}

// ActiveCount returns the number of actual violations whose status is not
// closed. This is the number the filter engine, the map badge, and the
// detail panel all display.
func (s *WaterSystem) ActiveCount() int {
	count := 0
	for _, v := range s.Violations {
		if IsActual(v) && !IsClosed(v.Status) {
			count++
		}
	}
	return count
}

// Category is the operator-dashboard grouping of a whole system.
type Category string

const (
	CategoryPending   Category = "pending"
	CategoryActive    Category = "active"
	CategoryResolved  Category = "resolved"
	CategoryCompliant Category = "compliant"
)

// Categorize scans a system's actual violations and returns the
// highest-priority non-empty bucket: pending > active > resolved >
// compliant.
func (s *WaterSystem) Categorize() Category {
	hasPending, hasActive, hasResolved := false, false, false
	for _, v := range s.Violations {
		if !IsActual(v) {
			continue
		}
		switch Classify(v.Status) {
		case StatusPending:
			hasPending = true
		case StatusActive:
			hasActive = true
		case StatusResolved:
			hasResolved = true
		}
	}
	switch {
	case hasPending:
		return CategoryPending
	case hasActive:
		return CategoryActive
	case hasResolved:
		return CategoryResolved
	default:
		return CategoryCompliant
	}
}
