package dataset

import "testing"

func TestIsActual(t *testing.T) {
	tests := []struct {
		name string
		v    Violation
		want bool
	}{
		{"complete violation", Violation{ID: "v1", Name: "Nitrate Exceedance"}, true},
		{"missing id", Violation{Name: "Nitrate Exceedance"}, false},
		{"missing name", Violation{ID: "v1"}, false},
		{"sentinel name", Violation{ID: "v1", Name: SentinelName}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsActual(tc.v); got != tc.want {
				t.Errorf("IsActual(%+v) = %v, want %v", tc.v, got, tc.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status string
		want   StatusClass
	}{
		{"", StatusPending},
		{"Open", StatusPending},
		{"Unaddressed", StatusPending},
		{"Pending", StatusPending},
		{"  Pending  ", StatusPending},
		{"Archived", StatusResolved},
		{"Resolved", StatusResolved},
		{"Violation Identified", StatusActive},
		{"Enforcement Action", StatusActive},
	}
	for _, tc := range tests {
		if got := Classify(tc.status); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestActiveCount(t *testing.T) {
	system := &WaterSystem{
		Violations: map[string]Violation{
			"a": {ID: "v1", Name: "Nitrate", Status: "Open"},
			"b": {ID: "v2", Name: "Lead", Status: "Resolved"},
			"c": {ID: "v3", Name: "Arsenic", Status: "Violation Identified"},
			"d": {ID: "v4", Name: SentinelName, Status: "Open"},
			"e": {Name: "No ID", Status: "Open"},
		},
	}
	if got := system.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount() = %d, want 2", got)
	}
}

func TestActualViolationsExcludesNoise(t *testing.T) {
	system := &WaterSystem{
		Violations: map[string]Violation{
			"a": {ID: "v1", Name: "Nitrate", Status: "Open"},
			"b": {ID: "v2", Name: SentinelName, Status: "Open"},
			"c": {ID: "", Name: "Orphan", Status: "Open"},
		},
	}
	actual := system.ActualViolations()
	if len(actual) != 1 {
		t.Fatalf("expected 1 actual violation, got %d", len(actual))
	}
	if actual[0].Name != "Nitrate" {
		t.Errorf("expected Nitrate, got %s", actual[0].Name)
	}
}

func TestCategorizePriority(t *testing.T) {
	tests := []struct {
		name       string
		violations map[string]Violation
		want       Category
	}{
		{
			"pending beats active and resolved",
			map[string]Violation{
				"a": {ID: "v1", Name: "A", Status: "Open"},
				"b": {ID: "v2", Name: "B", Status: "Enforcement Action"},
				"c": {ID: "v3", Name: "C", Status: "Resolved"},
			},
			CategoryPending,
		},
		{
			"active beats resolved",
			map[string]Violation{
				"a": {ID: "v1", Name: "A", Status: "Enforcement Action"},
				"b": {ID: "v2", Name: "B", Status: "Archived"},
			},
			CategoryActive,
		},
		{
			"resolved only",
			map[string]Violation{
				"a": {ID: "v1", Name: "A", Status: "Resolved"},
			},
			CategoryResolved,
		},
		{
			"no actual violations",
			map[string]Violation{
				"a": {ID: "v1", Name: SentinelName, Status: "Open"},
			},
			CategoryCompliant,
		},
		{
			"empty system",
			nil,
			CategoryCompliant,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			system := &WaterSystem{Violations: tc.violations}
			if got := system.Categorize(); got != tc.want {
				t.Errorf("Categorize() = %v, want %v", got, tc.want)
			}
		})
	}
}
