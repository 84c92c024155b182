// Package geomap projects the filtered system set onto map markers.
package geomap

import (
	"sort"
	"strings"

	"watershed/api/internal/dataset"
)

// Default viewport, centered on Georgia.
const (
	DefaultCenterLat = 32.9866
	DefaultCenterLon = -83.6479
	DefaultZoom      = 7
)

// Marker is one plotted water system. ActiveViolations of zero renders as
// the neutral glyph; nonzero renders as a numeric badge.
type Marker struct {
	PWSID            string  `json:"pwsid"`
	Name             string  `json:"name"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	ActiveViolations int     `json:"activeViolations"`
}

// Resolve finds a system's plot coordinate: the first geo area whose
// served zip geocodes, else the system-level zip. The boolean is false
// when nothing resolves; such systems are silently left off the map.
func Resolve(system *dataset.WaterSystem, zips map[string]dataset.Coordinate) (dataset.Coordinate, bool) {
	keys := make([]string, 0, len(system.GeoAreas))
	for k := range system.GeoAreas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if coord, ok := lookupZip(system.GeoAreas[k].Zip.String(), zips); ok {
			return coord, true
		}
	}
	return lookupZip(system.Zip.String(), zips)
}

func lookupZip(raw string, zips map[string]dataset.Coordinate) (dataset.Coordinate, bool) {
	zip := strings.TrimSpace(raw)
	if len(zip) > 5 {
		zip = zip[:5]
	}
	if zip == "" {
		return dataset.Coordinate{}, false
	}
	coord, ok := zips[zip]
	return coord, ok
}

// Markers rebuilds the full marker set for the given PWSIDs. The set is
// recomputed from scratch on every filter change; there is no incremental
// add/remove.
func Markers(ds *dataset.Dataset, pwsids []string) []Marker {
	out := make([]Marker, 0, len(pwsids))
	for _, pwsid := range pwsids {
		system, ok := ds.Systems[pwsid]
		if !ok {
			continue
		}
		coord, ok := Resolve(system, ds.Zips)
		if !ok {
			continue
		}
		out = append(out, Marker{
			PWSID:            pwsid,
			Name:             system.Name,
			Lat:              coord.Lat,
			Lon:              coord.Lon,
			ActiveViolations: system.ActiveCount(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PWSID < out[j].PWSID })
	return out
}
