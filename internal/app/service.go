package app

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"watershed/api/internal/annot"
	"watershed/api/internal/chat"
	"watershed/api/internal/dataset"
	"watershed/api/internal/export"
	"watershed/api/internal/filter"
	"watershed/api/internal/geomap"
	"watershed/api/internal/observability"
	"watershed/api/internal/replstore"
	"watershed/api/internal/search"
)

// resolvedDisplayCap is how many resolved violations the detail panel
// shows before collapsing the rest into an overflow count.
const resolvedDisplayCap = 3

// Pinger reports backing-store connectivity for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service holds the in-memory snapshot and coordinates every dashboard
// operation against it. The snapshot is replaced wholesale; individual
// violation statuses are the only in-place mutation.
type Service struct {
	mu sync.RWMutex
	ds *dataset.Dataset

	store    replstore.Store
	writer   *annot.Writer
	search   *search.Service
	streamer chat.Streamer
	metrics  *observability.Metrics
	clock    clockwork.Clock
	pinger   Pinger
}

func NewService(store replstore.Store, streamer chat.Streamer, metrics *observability.Metrics, clock clockwork.Clock) *Service {
	return &Service{
		ds:       dataset.Empty(),
		store:    store,
		writer:   annot.NewWriter(store, clock),
		streamer: streamer,
		metrics:  metrics,
		clock:    clock,
	}
}

// SetSearch attaches the search facade. It is set after construction
// because the in-memory fallback reads back through Snapshot.
func (s *Service) SetSearch(svc *search.Service) {
	s.search = svc
}

// SetPinger attaches the store connectivity check used by readiness.
func (s *Service) SetPinger(p Pinger) {
	s.pinger = p
}

func (s *Service) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger.Ping(ctx)
}

// Snapshot returns the current dataset. Callers must treat it as
// read-only; ReplaceDataset swaps the whole pointer.
func (s *Service) Snapshot() *dataset.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// ReplaceDataset installs a new snapshot and reindexes search.
func (s *Service) ReplaceDataset(ds *dataset.Dataset) {
	if ds == nil {
		ds = dataset.Empty()
	}
	s.mu.Lock()
	s.ds = ds
	s.mu.Unlock()

	s.metrics.DatasetSystems.Set(float64(len(ds.Systems)))
	s.metrics.DatasetZips.Set(float64(len(ds.Zips)))

	if s.search != nil {
		records := make([]search.SystemRecord, 0, len(ds.Systems))
		for pwsid, system := range ds.Systems {
			records = append(records, search.SystemRecord{ID: pwsid, PWSID: pwsid, Name: system.Name})
		}
		s.search.IndexSystems(records)
	}
}

// RawSystems returns the verbatim systems snapshot bytes.
func (s *Service) RawSystems() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds.RawSystems
}

// RawZips returns the verbatim zip centroid snapshot bytes.
func (s *Service) RawZips() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds.RawZips
}

// ListSystems applies the filter state and returns a summary row per
// matching system, sorted by PWSID.
func (s *Service) ListSystems(state filter.State) map[string]any {
	s.mu.RLock()
	ds := s.ds
	s.mu.RUnlock()

	timer := prometheus.NewTimer(s.metrics.FilterRecomputeDuration)
	pwsids := filter.Apply(ds, state)
	timer.ObserveDuration()

	sort.Strings(pwsids)
	items := make([]map[string]any, 0, len(pwsids))
	for _, pwsid := range pwsids {
		system := ds.Systems[pwsid]
		items = append(items, map[string]any{
			"pwsid":            system.PWSID,
			"name":             system.Name,
			"population":       system.PopulationServed(),
			"category":         system.Categorize(),
			"activeViolations": system.ActiveCount(),
		})
	}
	return map[string]any{"systems": items, "total": len(items)}
}

// MapMarkers applies the filter state and returns the marker set plus
// the default viewport.
func (s *Service) MapMarkers(state filter.State) map[string]any {
	s.mu.RLock()
	ds := s.ds
	s.mu.RUnlock()

	timer := prometheus.NewTimer(s.metrics.FilterRecomputeDuration)
	pwsids := filter.Apply(ds, state)
	timer.ObserveDuration()

	markers := geomap.Markers(ds, pwsids)
	items := make([]map[string]any, 0, len(markers))
	for _, m := range markers {
		items = append(items, map[string]any{
			"pwsid":            m.PWSID,
			"name":             m.Name,
			"lat":              m.Lat,
			"lon":              m.Lon,
			"activeViolations": m.ActiveViolations,
		})
	}
	return map[string]any{
		"markers": items,
		"center":  map[string]any{"lat": geomap.DefaultCenterLat, "lon": geomap.DefaultCenterLon},
		"zoom":    geomap.DefaultZoom,
	}
}

// SystemDetail returns the detail panel payload: header fields, served
// areas, and violations partitioned by status class. Resolved entries
// are capped with an overflow count.
func (s *Service) SystemDetail(pwsid string) (map[string]any, error) {
	s.mu.RLock()
	system, ok := s.ds.Systems[pwsid]
	s.mu.RUnlock()
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Water system not found", nil)
	}

	pending := []map[string]any{}
	active := []map[string]any{}
	resolved := []map[string]any{}
	for _, v := range system.ActualViolations() {
		row := violationPayload(v)
		switch dataset.Classify(v.Status) {
		case dataset.StatusPending:
			pending = append(pending, row)
		case dataset.StatusResolved:
			resolved = append(resolved, row)
		default:
			active = append(active, row)
		}
	}
	sortViolationRows(pending)
	sortViolationRows(active)
	sortViolationRows(resolved)

	overflow := 0
	if len(resolved) > resolvedDisplayCap {
		overflow = len(resolved) - resolvedDisplayCap
		resolved = resolved[:resolvedDisplayCap]
	}

	counties, cities := servedAreas(system)
	return map[string]any{
		"pwsid":            system.PWSID,
		"name":             system.Name,
		"population":       system.PopulationServed(),
		"primarySource":    system.PrimarySource,
		"zip":              system.Zip.String(),
		"category":         system.Categorize(),
		"activeViolations": system.ActiveCount(),
		"counties":         counties,
		"cities":           cities,
		"violations": map[string]any{
			"pending":          pending,
			"active":           active,
			"resolved":         resolved,
			"resolvedOverflow": overflow,
		},
	}, nil
}

// MarkResolved flips a violation to Resolved in the local snapshot and
// records an advisory resolution in the replicated store. Other replicas
// converge through their own snapshots; the resolution record is not
// reconciled.
func (s *Service) MarkResolved(ctx context.Context, pwsid, violationID, resolvedBy string) (map[string]any, error) {
	if strings.TrimSpace(resolvedBy) == "" {
		resolvedBy = "Regulator"
	}

	s.mu.Lock()
	system, ok := s.ds.Systems[pwsid]
	if !ok {
		s.mu.Unlock()
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Water system not found", nil)
	}

	// Readers hand out the snapshot pointer and keep iterating its maps
	// after the lock drops, so the mutation is copy-on-write: clone the
	// system and its violations, then swap in a fresh dataset.
	found := false
	violations := make(map[string]dataset.Violation, len(system.Violations))
	for key, v := range system.Violations {
		if v.ID.String() == violationID {
			v.Status = "Resolved"
			found = true
		}
		violations[key] = v
	}
	if !found {
		s.mu.Unlock()
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Violation not found", nil)
	}

	updated := *system
	updated.Violations = violations
	systems := make(map[string]*dataset.WaterSystem, len(s.ds.Systems))
	for id, sys := range s.ds.Systems {
		systems[id] = sys
	}
	systems[pwsid] = &updated
	next := *s.ds
	next.Systems = systems
	s.ds = &next
	s.mu.Unlock()

	record := s.writer.RecordResolution(ctx, pwsid, violationID, resolvedBy)
	s.metrics.StoreWrites.WithLabelValues("resolution").Inc()
	return map[string]any{
		"violationId": record.ViolationID,
		"pwsid":       record.PWSID,
		"resolvedBy":  record.ResolvedBy,
		"resolvedAt":  record.ResolvedAt,
	}, nil
}

// SearchSystems answers the system search surface. An empty query serves
// the focus sample; every keystroke re-queries, and a nonempty query
// shorter than the minimum returns an empty set.
func (s *Service) SearchSystems(query string, limit int) map[string]any {
	if limit <= 0 {
		limit = search.DefaultSampleSize
	}
	if strings.TrimSpace(query) == "" {
		s.mu.RLock()
		ds := s.ds
		s.mu.RUnlock()
		return map[string]any{"results": resultPayload(search.Sample(ds, limit))}
	}
	results := []search.Result{}
	if s.search != nil {
		results = s.search.SearchSystems(query, limit)
	}
	return map[string]any{"results": resultPayload(results)}
}

// SearchRegions returns regions that currently contain systems with
// active violations, narrowed by the query.
func (s *Service) SearchRegions(query string) map[string]any {
	s.mu.RLock()
	ds := s.ds
	s.mu.RUnlock()

	regions := search.RegionsWithViolations(ds)
	if strings.TrimSpace(query) != "" {
		regions = search.Narrow(regions, query)
	}
	return map[string]any{"regions": regions}
}

// SearchViolationTypes narrows the distinct violation-name list. Unlike
// system search this filters an already-produced list.
func (s *Service) SearchViolationTypes(query string) map[string]any {
	s.mu.RLock()
	ds := s.ds
	s.mu.RUnlock()

	types := search.ViolationTypes(ds)
	if strings.TrimSpace(query) != "" {
		types = search.Narrow(types, query)
	}
	return map[string]any{"violationTypes": types}
}

// OperatorSample returns the default operator-surface listing shown
// before any query is typed.
func (s *Service) OperatorSample() map[string]any {
	s.mu.RLock()
	ds := s.ds
	s.mu.RUnlock()
	return map[string]any{"results": resultPayload(search.Sample(ds, search.DefaultSampleSize))}
}

// OperatorLookup resolves one system by exact PWSID.
func (s *Service) OperatorLookup(pwsid string) (map[string]any, error) {
	s.mu.RLock()
	system, ok := s.ds.Systems[pwsid]
	s.mu.RUnlock()
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Water system not found", nil)
	}
	return map[string]any{
		"pwsid":            system.PWSID,
		"name":             system.Name,
		"population":       system.PopulationServed(),
		"category":         system.Categorize(),
		"activeViolations": system.ActiveCount(),
	}, nil
}

// Analytics aggregates the systems matching the region and violation-type
// selection: category counts, status breakdown, top violation types and
// counties, and an overall compliance rate. Archived violations are left
// out of the counts; they no longer describe the system's present state.
func (s *Service) Analytics(region, violationType string) map[string]any {
	s.mu.RLock()
	ds := s.ds
	s.mu.RUnlock()

	selection := filter.State{Region: region, ViolationType: violationType, ShowCompliant: true}

	byCategory := map[dataset.Category]int{}
	statusBreakdown := map[dataset.StatusClass]int{}
	violationTypes := map[string]int{}
	contaminants := map[string]int{}
	counties := map[string]int{}
	totalSystems := 0
	totalViolations := 0
	systemsWithActive := 0

	for _, system := range ds.Systems {
		if !filter.Matches(system, selection) {
			continue
		}
		totalSystems++
		byCategory[system.Categorize()]++
		if system.ActiveCount() > 0 {
			systemsWithActive++
		}

		current := 0
		for _, v := range system.ActualViolations() {
			statusBreakdown[dataset.Classify(v.Status)]++
			if strings.TrimSpace(v.Status) == "Archived" {
				continue
			}
			current++
			violationTypes[strings.TrimSpace(v.Name)]++
			if name := strings.TrimSpace(v.ContaminantName); name != "" {
				contaminants[name]++
			}
		}
		totalViolations += current

		// The system's violations count toward its first named county.
		for _, geo := range system.GeoAreas {
			if county := strings.TrimSpace(geo.County); county != "" {
				counties[county] += current
				break
			}
		}
	}

	// The summary rate can go negative when violations outnumber systems;
	// it is reported as computed.
	complianceRate := 100
	if totalSystems > 0 {
		complianceRate = int(math.Round(float64(totalSystems-totalViolations) / float64(totalSystems) * 100))
	}

	return map[string]any{
		"totalSystems":      totalSystems,
		"systemsWithActive": systemsWithActive,
		"totalViolations":   totalViolations,
		"complianceRate":    complianceRate,
		"byCategory":        byCategory,
		"statusBreakdown":   statusBreakdown,
		"topViolationTypes": topCounts(violationTypes, 8),
		"topContaminants":   topCounts(contaminants, 10),
		"topCounties":       topCounts(counties, 10),
	}
}

// PostMessage appends a chat annotation to a violation thread and
// returns the optimistic-render copy.
func (s *Service) PostMessage(ctx context.Context, violationID, text, sender string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	msg := s.writer.SendMessage(ctx, violationID, text, sender)
	s.metrics.StoreWrites.WithLabelValues("message").Inc()
	return map[string]any{
		"text":      msg.Text,
		"timestamp": msg.Timestamp,
		"sender":    msg.Sender,
	}, nil
}

// CreateTask records an operator task against a system.
func (s *Service) CreateTask(ctx context.Context, pwsid, violationID, text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	s.mu.RLock()
	_, ok := s.ds.Systems[pwsid]
	s.mu.RUnlock()
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Water system not found", nil)
	}
	task := s.writer.CreateTask(ctx, pwsid, violationID, text)
	s.metrics.StoreWrites.WithLabelValues("task").Inc()
	return map[string]any{
		"id":          task.ID,
		"pwsid":       task.PWSID,
		"violationId": task.ViolationID,
		"text":        task.Text,
		"status":      task.Status,
		"createdAt":   task.CreatedAt,
	}, nil
}

// OpenMessageThread mounts a live message container. The returned closer
// must be called when the stream ends.
func (s *Service) OpenMessageThread(ctx context.Context, violationID string) (*annot.MessageThread, func(), error) {
	thread, err := annot.OpenMessageThread(ctx, s.store, violationID)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.OpenSubscriptions.Inc()
	closer := func() {
		thread.Close()
		s.metrics.OpenSubscriptions.Dec()
	}
	return thread, closer, nil
}

// OpenTaskList mounts a live task container for a system.
func (s *Service) OpenTaskList(ctx context.Context, pwsid string) (*annot.TaskList, func(), error) {
	list, err := annot.OpenTaskList(ctx, s.store, pwsid)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.OpenSubscriptions.Inc()
	closer := func() {
		list.Close()
		s.metrics.OpenSubscriptions.Dec()
	}
	return list, closer, nil
}

// NoteDelivery counts a store push handed to a connected stream.
func (s *Service) NoteDelivery(entity string) {
	s.metrics.StoreDeliveries.WithLabelValues(entity).Inc()
}

// ChatStream builds the single-turn prompt for the optionally selected
// system and streams completion fragments through onFragment.
func (s *Service) ChatStream(ctx context.Context, pwsid, message string, onFragment func(text string) error) error {
	if strings.TrimSpace(message) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message is required", nil)
	}
	if s.streamer == nil {
		return domainError(http.StatusServiceUnavailable, "CHAT_UNAVAILABLE", "Chat assistant not configured", nil)
	}

	var system *dataset.WaterSystem
	if pwsid != "" {
		s.mu.RLock()
		system = s.ds.Systems[pwsid]
		s.mu.RUnlock()
	}
	prompt := chat.BuildPrompt(system, message)

	timer := prometheus.NewTimer(s.metrics.ChatStreamDuration)
	err := s.streamer.Stream(ctx, prompt, onFragment)
	timer.ObserveDuration()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ChatStreams.WithLabelValues(outcome).Inc()
	return err
}

// ExportReport renders a compliance report for one system.
func (s *Service) ExportReport(pwsid string, format export.Format) (*export.Result, error) {
	s.mu.RLock()
	system, ok := s.ds.Systems[pwsid]
	s.mu.RUnlock()
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Water system not found", nil)
	}

	report := export.Report{
		PWSID:            system.PWSID,
		Name:             system.Name,
		Population:       system.PopulationServed().String(),
		PrimarySource:    system.PrimarySource,
		ActiveViolations: system.ActiveCount(),
		GeneratedAt:      s.clock.Now(),
	}
	for _, v := range system.ActualViolations() {
		row := export.ViolationRow{
			Name:        v.Name,
			Code:        v.Code.String(),
			Contaminant: v.ContaminantName,
			Period:      formatPeriod(v.PeriodBegin, v.PeriodEnd),
			Status:      v.Status,
		}
		switch dataset.Classify(v.Status) {
		case dataset.StatusPending:
			report.Pending = append(report.Pending, row)
		case dataset.StatusResolved:
			report.Resolved = append(report.Resolved, row)
		default:
			report.Active = append(report.Active, row)
		}
	}
	return export.Export(report, format)
}

func violationPayload(v dataset.Violation) map[string]any {
	return map[string]any{
		"id":          v.ID.String(),
		"name":        v.Name,
		"code":        v.Code.String(),
		"contaminant": v.ContaminantName,
		"periodBegin": v.PeriodBegin,
		"periodEnd":   v.PeriodEnd,
		"status":      v.Status,
	}
}

func sortViolationRows(rows []map[string]any) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["id"].(string) < rows[j]["id"].(string)
	})
}

func servedAreas(system *dataset.WaterSystem) (counties, cities []string) {
	seenCounty := map[string]struct{}{}
	seenCity := map[string]struct{}{}
	for _, geo := range system.GeoAreas {
		if county := strings.TrimSpace(geo.County); county != "" {
			if _, dup := seenCounty[county]; !dup {
				seenCounty[county] = struct{}{}
				counties = append(counties, county)
			}
		}
		if city := strings.TrimSpace(geo.City); city != "" {
			if _, dup := seenCity[city]; !dup {
				seenCity[city] = struct{}{}
				cities = append(cities, city)
			}
		}
	}
	sort.Strings(counties)
	sort.Strings(cities)
	return counties, cities
}

func resultPayload(results []search.Result) []map[string]any {
	items := make([]map[string]any, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]any{
			"pwsid": r.PWSID,
			"name":  r.Name,
			"label": r.Label,
		})
	}
	return items
}

func topCounts(counts map[string]int, limit int) []map[string]any {
	type pair struct {
		name  string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for name, count := range counts {
		pairs = append(pairs, pair{name, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].name < pairs[j].name
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	items := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, map[string]any{"name": p.name, "count": p.count})
	}
	return items
}

func formatPeriod(begin, end string) string {
	begin = strings.TrimSpace(begin)
	end = strings.TrimSpace(end)
	switch {
	case begin == "" && end == "":
		return ""
	case end == "":
		return fmt.Sprintf("%s - ongoing", begin)
	default:
		return fmt.Sprintf("%s - %s", begin, end)
	}
}
