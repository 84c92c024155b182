package search

import (
	"log"
	"strings"
)

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory scan.
type Service struct {
	meili  *Meili
	memory *Memory
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, memory *Memory) *Service {
	return &Service{meili: meili, memory: memory}
}

// SearchSystems runs the system typeahead. Queries shorter than
// MinQueryLength return nothing; the empty-query sample is a separate
// surface served by the caller.
func (s *Service) SearchSystems(query string, limit int) []Result {
	if len(strings.TrimSpace(query)) < MinQueryLength {
		return []Result{}
	}

	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.SearchSystems(query, limit)
		if err == nil {
			return nonNil(results)
		}
		log.Printf("search: meilisearch error, falling back to scan: %v", err)
	}

	results, err := s.memory.SearchSystems(query, limit)
	if err != nil {
		log.Printf("search: scan error: %v", err)
		return []Result{}
	}
	return nonNil(results)
}

// IndexSystems pushes records into Meilisearch (fire-and-forget); a
// failure only means the fallback scan serves every query.
func (s *Service) IndexSystems(records []SystemRecord) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexSystems(records); err != nil {
			log.Printf("search: index systems: %v", err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
