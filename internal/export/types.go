// Package export renders compliance reports for a water system as PDF or
// DOCX downloads.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Report is the data rendered into a compliance report: the system header
// plus its violations partitioned the same way the detail panel
// partitions them.
type Report struct {
	PWSID            string
	Name             string
	Population       string
	PrimarySource    string
	ActiveViolations int
	Pending          []ViolationRow
	Active           []ViolationRow
	Resolved         []ViolationRow
	GeneratedAt      time.Time
}

// ViolationRow is one violation line in the report.
type ViolationRow struct {
	Name        string
	Code        string
	Contaminant string
	Period      string
	Status      string
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
