package search

// Result is a single system-search hit returned to the caller.
type Result struct {
	PWSID string `json:"pwsid"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Searcher can execute a system typeahead query.
type Searcher interface {
	SearchSystems(query string, limit int) ([]Result, error)
	Healthy() bool
}

// Indexer can push water system records into a search index.
type Indexer interface {
	IndexSystems(records []SystemRecord) error
}

// SystemRecord is the data indexed per water system.
type SystemRecord struct {
	ID    string `json:"id"`
	PWSID string `json:"pwsid"`
	Name  string `json:"name"`
}

// MinQueryLength is the keystroke threshold below which system search
// returns nothing rather than scanning.
const MinQueryLength = 3

// DefaultSampleSize bounds the fixed sample shown on focus with an empty
// query.
const DefaultSampleSize = 10
