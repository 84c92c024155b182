package search

import (
	"reflect"
	"testing"

	"watershed/api/internal/dataset"
)

func searchDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Systems: map[string]*dataset.WaterSystem{
			"GA0170001": {
				PWSID: "GA0170001",
				Name:  "Macon Water Authority",
				Violations: map[string]dataset.Violation{
					"a": {ID: "v1", Name: "Nitrate Exceedance", Status: "Open"},
					"b": {ID: "v2", Name: dataset.SentinelName, Status: "Open"},
				},
				GeoAreas: map[string]dataset.GeoArea{"g1": {County: "Bibb"}},
			},
			"GA0290002": {
				PWSID: "GA0290002",
				Name:  "Savannah Water",
				Violations: map[string]dataset.Violation{
					"a": {ID: "v3", Name: "Lead Action Level", Status: "Resolved"},
				},
				GeoAreas: map[string]dataset.GeoArea{"g1": {County: "Chatham"}},
			},
			"GA0510003": {
				PWSID: "GA0510003",
				Name:  "Waterville Springs",
			},
		},
		Zips: map[string]dataset.Coordinate{},
	}
}

func newTestMemory(ds *dataset.Dataset) *Memory {
	return NewMemory(func() *dataset.Dataset { return ds })
}

func TestMemorySearchSystems(t *testing.T) {
	m := newTestMemory(searchDataset())

	results, err := m.SearchSystems("water", 10)
	if err != nil {
		t.Fatalf("SearchSystems failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 matches for 'water', got %d", len(results))
	}
	if results[0].PWSID != "GA0170001" {
		t.Errorf("results not sorted by PWSID: %+v", results)
	}
	if results[0].Label != "Macon Water Authority (GA0170001)" {
		t.Errorf("unexpected label: %q", results[0].Label)
	}

	// PWSID substring also matches.
	results, err = m.SearchSystems("ga029", 10)
	if err != nil {
		t.Fatalf("SearchSystems failed: %v", err)
	}
	if len(results) != 1 || results[0].PWSID != "GA0290002" {
		t.Errorf("pwsid search = %+v", results)
	}
}

func TestMemorySearchLimit(t *testing.T) {
	m := newTestMemory(searchDataset())
	results, err := m.SearchSystems("water", 2)
	if err != nil {
		t.Fatalf("SearchSystems failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected limit of 2, got %d", len(results))
	}
}

func TestMemorySearchSeesMutations(t *testing.T) {
	ds := searchDataset()
	m := newTestMemory(ds)
	ds.Systems["GA0990009"] = &dataset.WaterSystem{PWSID: "GA0990009", Name: "New Waterworks"}

	results, err := m.SearchSystems("waterworks", 10)
	if err != nil {
		t.Fatalf("SearchSystems failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected mutated snapshot to be visible, got %+v", results)
	}
}

func TestSample(t *testing.T) {
	results := Sample(searchDataset(), 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 sample rows, got %d", len(results))
	}
	if results[0].PWSID != "GA0170001" || results[1].PWSID != "GA0290002" {
		t.Errorf("sample not deterministic: %+v", results)
	}
}

func TestViolationTypesExcludesSentinel(t *testing.T) {
	types := ViolationTypes(searchDataset())
	want := []string{"Lead Action Level", "Nitrate Exceedance"}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("ViolationTypes = %v, want %v", types, want)
	}
}

func TestNarrow(t *testing.T) {
	list := []string{"Lead Action Level", "Nitrate Exceedance"}

	if got := Narrow(list, "nitrate"); len(got) != 1 || got[0] != "Nitrate Exceedance" {
		t.Errorf("Narrow(nitrate) = %v", got)
	}
	if got := Narrow(list, ""); !reflect.DeepEqual(got, list) {
		t.Errorf("Narrow with empty query should return input, got %v", got)
	}
	if got := Narrow(list, "arsenic"); len(got) != 0 {
		t.Errorf("Narrow(arsenic) = %v, want empty", got)
	}
}

func TestRegionsWithViolations(t *testing.T) {
	regions := RegionsWithViolations(searchDataset())
	// Only Bibb has a system with an active violation; Chatham's is resolved.
	if !reflect.DeepEqual(regions, []string{"Bibb"}) {
		t.Errorf("RegionsWithViolations = %v, want [Bibb]", regions)
	}
}

func TestServiceMinQueryLength(t *testing.T) {
	svc := NewService(nil, newTestMemory(searchDataset()))

	if got := svc.SearchSystems("wa", 10); len(got) != 0 {
		t.Errorf("short query should return nothing, got %+v", got)
	}
	if got := svc.SearchSystems("  wa  ", 10); len(got) != 0 {
		t.Errorf("whitespace-padded short query should return nothing, got %+v", got)
	}
	if got := svc.SearchSystems("water", 10); len(got) != 3 {
		t.Errorf("expected fallback scan results, got %+v", got)
	}
}
