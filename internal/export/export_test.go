package export

import (
	"strings"
	"testing"
	"time"
)

func sampleReport() Report {
	return Report{
		PWSID:            "GA0170001",
		Name:             "Macon Water Authority",
		Population:       "45000",
		PrimarySource:    "SW",
		ActiveViolations: 2,
		Pending: []ViolationRow{
			{Name: "Nitrate Exceedance", Code: "22", Contaminant: "Nitrate", Period: "2024-01-01 - ongoing", Status: "Open"},
		},
		Active: []ViolationRow{
			{Name: "Lead Action Level", Code: "57", Contaminant: "Lead", Period: "2023-06-01 - 2024-01-01", Status: "Enforcement Action"},
		},
		GeneratedAt: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderReportHTML(t *testing.T) {
	html, err := RenderReportHTML(sampleReport())
	if err != nil {
		t.Fatalf("RenderReportHTML failed: %v", err)
	}

	for _, want := range []string{
		"Macon Water Authority",
		"PWSID GA0170001",
		"Nitrate Exceedance",
		"Lead Action Level",
		"Aug 28, 2026",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}

	// The empty resolved bucket renders its placeholder.
	if !strings.Contains(html, "None on record.") {
		t.Error("empty bucket placeholder missing")
	}
}

func TestRenderReportEscapesHTML(t *testing.T) {
	report := sampleReport()
	report.Name = `<script>alert("x")</script>`

	html, err := RenderReportHTML(report)
	if err != nil {
		t.Fatalf("RenderReportHTML failed: %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("system name not escaped")
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	if _, err := Export(sampleReport(), Format("xlsx")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Macon Water Authority", "Macon-Water-Authority"},
		{"A/B\\C:D", "ABCD"},
		{"", "compliance-report"},
		{"!!!", "compliance-report"},
	}
	for _, tc := range tests {
		if got := sanitizeFilename(tc.input); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	encoded := percentEncodeForDataURL("<html> body")
	if strings.Contains(encoded, " ") {
		t.Error("space not encoded")
	}
	if strings.Contains(encoded, "+") {
		t.Error("space must encode as %20, not +")
	}
	if !strings.Contains(encoded, "%20") {
		t.Errorf("expected %%20 in %q", encoded)
	}
	if !strings.Contains(encoded, "%3C") {
		t.Errorf("expected %%3C for < in %q", encoded)
	}
}

func TestPercentEncodeForDataURLMultibyte(t *testing.T) {
	// Non-ASCII runes encode their UTF-8 bytes, not the code point.
	if got := percentEncodeForDataURL("Café"); got != "Caf%C3%A9" {
		t.Errorf("percentEncodeForDataURL(Café) = %q, want Caf%%C3%%A9", got)
	}
	if got := percentEncodeForDataURL("青"); got != "%E9%9D%92" {
		t.Errorf("percentEncodeForDataURL(青) = %q, want %%E9%%9D%%92", got)
	}
}
