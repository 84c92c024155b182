// Package dataset holds the in-memory water system snapshot and the
// predicates every other component shares when counting violations.
package dataset

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes JSON values that the ingest pipeline emits
// inconsistently as strings, numbers, or null (zip codes, violation codes).
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	// Numeric zips arrive as floats ("30301.0"); keep the integer part.
	if i, err := n.Int64(); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	if fl, err := n.Float64(); err == nil {
		*f = FlexString(strconv.FormatInt(int64(fl), 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Violation is one violation record nested under a water system.
type Violation struct {
	ID              FlexString `json:"VIOLATION_ID"`
	Name            string     `json:"VIOLATION_NAME"`
	Code            FlexString `json:"VIOLATION_CODE"`
	ContaminantName string     `json:"CONTAMINANT_NAME"`
	ContaminantCode FlexString `json:"CONTAMINANT_CODE"`
	PeriodBegin     string     `json:"NON_COMPL_PER_BEGIN_DATE"`
	PeriodEnd       string     `json:"NON_COMPL_PER_END_DATE"`
	Status          string     `json:"VIOLATION_STATUS"`
}

// GeoArea is a served geographic area nested under a water system.
type GeoArea struct {
	County string     `json:"COUNTY_SERVED"`
	City   string     `json:"CITY_SERVED"`
	Zip    FlexString `json:"ZIP_CODE_SERVED"`
}

// WaterSystem is one public water system record keyed by PWSID.
type WaterSystem struct {
	PWSID         string               `json:"PWSID"`
	Name          string               `json:"PWS_NAME"`
	Population    json.Number          `json:"POPULATION_SERVED_COUNT"`
	PrimarySource string               `json:"PRIMARY_SOURCE_CODE"`
	Zip           FlexString           `json:"ZIP_CODE"`
	Violations    map[string]Violation `json:"violations"`
	GeoAreas      map[string]GeoArea   `json:"geo_areas"`
}

// Coordinate is a zip-code centroid.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Dataset is the full session snapshot: both maps plus the raw bytes they
// were parsed from, kept for verbatim passthrough.
type Dataset struct {
	Systems map[string]*WaterSystem
	Zips    map[string]Coordinate

	RawSystems []byte
	RawZips    []byte
}

// Empty returns a dataset with zero systems and zero zips. Downstream
// components render an empty result set rather than failing.
func Empty() *Dataset {
	return &Dataset{
		Systems:    map[string]*WaterSystem{},
		Zips:       map[string]Coordinate{},
		RawSystems: []byte("{}"),
		RawZips:    []byte("{}"),
	}
}
