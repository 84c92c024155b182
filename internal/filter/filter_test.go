package filter

import (
	"sort"
	"testing"

	"watershed/api/internal/dataset"
)

func testDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Systems: map[string]*dataset.WaterSystem{
			"GA0170001": {
				PWSID: "GA0170001",
				Name:  "Macon Water Authority",
				Violations: map[string]dataset.Violation{
					"a": {ID: "v1", Name: "Nitrate Exceedance", Status: "Open"},
				},
				GeoAreas: map[string]dataset.GeoArea{
					"g1": {County: "Bibb", City: "Macon"},
				},
			},
			"GA0290002": {
				PWSID: "GA0290002",
				Name:  "Savannah Water",
				Violations: map[string]dataset.Violation{
					"a": {ID: "v2", Name: "Lead Action Level", Status: "Resolved"},
				},
				GeoAreas: map[string]dataset.GeoArea{
					"g1": {County: "Chatham", City: "Savannah"},
				},
			},
			"GA0510003": {
				PWSID:    "GA0510003",
				Name:     "Clean Springs",
				GeoAreas: map[string]dataset.GeoArea{"g1": {County: "Bibb"}},
			},
		},
		Zips: map[string]dataset.Coordinate{},
	}
}

func apply(t *testing.T, ds *dataset.Dataset, state State) []string {
	t.Helper()
	out := Apply(ds, state)
	sort.Strings(out)
	return out
}

func TestDefaultStateHidesCompliant(t *testing.T) {
	ds := testDataset()
	got := apply(t, ds, DefaultState())
	want := []string{"GA0170001"}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("Apply(default) = %v, want %v", got, want)
	}
}

func TestShowEverything(t *testing.T) {
	ds := testDataset()
	state := State{ViolationsOnly: false, ShowCompliant: true}
	got := apply(t, ds, state)
	if len(got) != 3 {
		t.Errorf("expected all 3 systems, got %v", got)
	}
}

func TestTogglesExcludeIndependently(t *testing.T) {
	ds := testDataset()

	// Either toggle alone excludes zero-active systems.
	onlyViolations := apply(t, ds, State{ViolationsOnly: true, ShowCompliant: true})
	hideCompliant := apply(t, ds, State{ViolationsOnly: false, ShowCompliant: false})
	if len(onlyViolations) != 1 || onlyViolations[0] != "GA0170001" {
		t.Errorf("violationsOnly alone = %v, want [GA0170001]", onlyViolations)
	}
	if len(hideCompliant) != 1 || hideCompliant[0] != "GA0170001" {
		t.Errorf("showCompliant=false alone = %v, want [GA0170001]", hideCompliant)
	}
}

func TestRegionMatchesCountyOrCity(t *testing.T) {
	ds := testDataset()
	state := State{Region: "Bibb", ShowCompliant: true}
	got := apply(t, ds, state)
	if len(got) != 2 {
		t.Fatalf("county filter = %v, want 2 systems", got)
	}

	state = State{Region: "Savannah", ShowCompliant: true}
	got = apply(t, ds, state)
	if len(got) != 1 || got[0] != "GA0290002" {
		t.Errorf("city filter = %v, want [GA0290002]", got)
	}
}

func TestViolationTypeIsExactOnActual(t *testing.T) {
	ds := testDataset()
	state := State{ViolationType: "Nitrate Exceedance", ShowCompliant: true}
	got := apply(t, ds, state)
	if len(got) != 1 || got[0] != "GA0170001" {
		t.Errorf("type filter = %v, want [GA0170001]", got)
	}

	// Substring does not match.
	state.ViolationType = "Nitrate"
	if got := apply(t, ds, state); len(got) != 0 {
		t.Errorf("partial type matched: %v", got)
	}

	// Sentinel rows never match a type filter.
	ds.Systems["GA0510003"].Violations = map[string]dataset.Violation{
		"a": {ID: "v9", Name: dataset.SentinelName, Status: "Open"},
	}
	state.ViolationType = dataset.SentinelName
	if got := apply(t, ds, state); len(got) != 0 {
		t.Errorf("sentinel matched type filter: %v", got)
	}
}

func TestPredicatesCompose(t *testing.T) {
	ds := testDataset()
	// Region and type together must both hold.
	state := State{Region: "Chatham", ViolationType: "Nitrate Exceedance", ShowCompliant: true}
	if got := apply(t, ds, state); len(got) != 0 {
		t.Errorf("conflicting predicates matched: %v", got)
	}

	state = State{Region: "Bibb", ViolationType: "Nitrate Exceedance", ShowCompliant: true}
	got := apply(t, ds, state)
	if len(got) != 1 || got[0] != "GA0170001" {
		t.Errorf("composed predicates = %v, want [GA0170001]", got)
	}
}
