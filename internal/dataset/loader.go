package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Load retrieves both snapshots concurrently and parses them. The load is
// all-or-nothing: if either fetch or parse fails, the error is returned
// and the caller proceeds with Empty(). There is no retry and no
// partial-success handling.
func Load(ctx context.Context, systems, zips Source) (*Dataset, error) {
	var (
		wg                  sync.WaitGroup
		rawSystems, rawZips []byte
		systemsErr, zipsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		rawSystems, systemsErr = systems.Fetch(ctx)
	}()
	go func() {
		defer wg.Done()
		rawZips, zipsErr = zips.Fetch(ctx)
	}()
	wg.Wait()

	if systemsErr != nil {
		return Empty(), fmt.Errorf("water systems snapshot: %w", systemsErr)
	}
	if zipsErr != nil {
		return Empty(), fmt.Errorf("zip coordinates snapshot: %w", zipsErr)
	}

	return Parse(rawSystems, rawZips)
}

// Parse decodes the two snapshot payloads into a Dataset.
func Parse(rawSystems, rawZips []byte) (*Dataset, error) {
	var systems map[string]*WaterSystem
	if err := json.Unmarshal(rawSystems, &systems); err != nil {
		return Empty(), fmt.Errorf("parse water systems snapshot: %w", err)
	}
	var zips map[string]Coordinate
	if err := json.Unmarshal(rawZips, &zips); err != nil {
		return Empty(), fmt.Errorf("parse zip coordinates snapshot: %w", err)
	}

	if systems == nil {
		systems = map[string]*WaterSystem{}
	}
	if zips == nil {
		zips = map[string]Coordinate{}
	}
	for pwsid, system := range systems {
		if system == nil {
			delete(systems, pwsid)
			continue
		}
		if system.PWSID == "" {
			system.PWSID = pwsid
		}
	}

	return &Dataset{
		Systems:    systems,
		Zips:       zips,
		RawSystems: rawSystems,
		RawZips:    rawZips,
	}, nil
}
