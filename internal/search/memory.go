package search

import (
	"fmt"
	"sort"
	"strings"

	"watershed/api/internal/dataset"
)

// Memory is the fallback searcher: a linear scan over the in-memory
// snapshot on every keystroke. The dataset is small enough that this is
// the baseline, not an optimization target.
type Memory struct {
	snapshot func() *dataset.Dataset
}

// NewMemory creates a scan-based searcher over the given snapshot
// provider. The provider is called per query so regulator mutations are
// visible immediately.
func NewMemory(snapshot func() *dataset.Dataset) *Memory {
	return &Memory{snapshot: snapshot}
}

// Healthy always reports true; the scan has no external collaborator.
func (m *Memory) Healthy() bool { return true }

// SearchSystems case-insensitively substring-matches system name or PWSID.
func (m *Memory) SearchSystems(query string, limit int) ([]Result, error) {
	ds := m.snapshot()
	needle := strings.ToLower(strings.TrimSpace(query))
	out := []Result{}
	for pwsid, system := range ds.Systems {
		name := strings.ToLower(system.Name)
		if strings.Contains(name, needle) || strings.Contains(strings.ToLower(pwsid), needle) {
			out = append(out, makeResult(pwsid, system.Name))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PWSID < out[j].PWSID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Sample returns a fixed, deterministic sample of systems for the
// empty-query focus state.
func Sample(ds *dataset.Dataset, limit int) []Result {
	pwsids := make([]string, 0, len(ds.Systems))
	for pwsid := range ds.Systems {
		pwsids = append(pwsids, pwsid)
	}
	sort.Strings(pwsids)
	if limit > 0 && len(pwsids) > limit {
		pwsids = pwsids[:limit]
	}
	out := make([]Result, 0, len(pwsids))
	for _, pwsid := range pwsids {
		out = append(out, makeResult(pwsid, ds.Systems[pwsid].Name))
	}
	return out
}

// ViolationTypes lists the distinct actual-violation names in the
// snapshot, sentinel excluded, sorted.
func ViolationTypes(ds *dataset.Dataset) []string {
	seen := map[string]struct{}{}
	for _, system := range ds.Systems {
		for _, v := range system.Violations {
			if dataset.IsActual(v) {
				seen[v.Name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Narrow filters an already-produced list by case-insensitive substring.
// Unlike system search this never goes back to the dataset: the
// violation-type surface toggles visibility over what was rendered on
// focus.
func Narrow(list []string, query string) []string {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return list
	}
	out := []string{}
	for _, item := range list {
		if strings.Contains(strings.ToLower(item), needle) {
			out = append(out, item)
		}
	}
	return out
}

// RegionsWithViolations lists the counties that currently contain at
// least one system with an active violation, for the region-aware
// empty-query variant of system search.
func RegionsWithViolations(ds *dataset.Dataset) []string {
	seen := map[string]struct{}{}
	for _, system := range ds.Systems {
		if system.ActiveCount() == 0 {
			continue
		}
		for _, geo := range system.GeoAreas {
			if geo.County != "" {
				seen[geo.County] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for county := range seen {
		out = append(out, county)
	}
	sort.Strings(out)
	return out
}

func makeResult(pwsid, name string) Result {
	return Result{
		PWSID: pwsid,
		Name:  name,
		Label: fmt.Sprintf("%s (%s)", name, pwsid),
	}
}
