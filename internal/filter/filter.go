// Package filter computes the set of water systems matching the current
// dashboard filter state. Every change recomputes from the full dataset;
// the snapshot is small enough that a total rescan is cheaper than any
// incremental scheme and removes the stale-state bugs one would bring.
package filter

import (
	"watershed/api/internal/dataset"
)

// State is the process-local filter selection. The zero value is not the
// dashboard default; use DefaultState.
type State struct {
	Region         string
	ViolationType  string
	ViolationsOnly bool
	ShowCompliant  bool
}

// DefaultState is the selection the dashboard loads with: violations only,
// compliant systems hidden.
func DefaultState() State {
	return State{ViolationsOnly: true, ShowCompliant: false}
}

// Apply returns the PWSIDs of every system satisfying all active
// predicates. Order is not meaningful.
func Apply(ds *dataset.Dataset, state State) []string {
	out := make([]string, 0, len(ds.Systems))
	for pwsid, system := range ds.Systems {
		if Matches(system, state) {
			out = append(out, pwsid)
		}
	}
	return out
}

// Matches reports whether a single system passes every active predicate.
func Matches(system *dataset.WaterSystem, state State) bool {
	if state.Region != "" && !inRegion(system, state.Region) {
		return false
	}
	if state.ViolationType != "" && !hasViolationType(system, state.ViolationType) {
		return false
	}
	active := system.ActiveCount()
	if state.ViolationsOnly && active == 0 {
		return false
	}
	if !state.ShowCompliant && active == 0 {
		return false
	}
	return true
}

func inRegion(system *dataset.WaterSystem, region string) bool {
	for _, geo := range system.GeoAreas {
		if geo.County == region || geo.City == region {
			return true
		}
	}
	return false
}

func hasViolationType(system *dataset.WaterSystem, name string) bool {
	for _, v := range system.Violations {
		if dataset.IsActual(v) && v.Name == name {
			return true
		}
	}
	return false
}
