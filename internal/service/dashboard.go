// Package service orchestrates the dashboard data flow: fetching the two
// outcome documents, holding the immutable per-load snapshot, and answering
// aggregate/filter/view queries against it.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/cmml-outcomes-server/internal/aggregate"
	"github.com/cmml-outcomes-server/internal/domain"
	"github.com/cmml-outcomes-server/internal/filter"
	"github.com/cmml-outcomes-server/internal/store"
	"github.com/cmml-outcomes-server/internal/view"
)

// DefaultMetrics is the metric set shown in the summary table, matching the
// headline statistics of the upstream reports: CR, derived ORR, SAE
// frequency, PFS and OS medians.
var DefaultMetrics = []string{
	"complete_response",
	aggregate.ORRMetric,
	"sae_frequency",
	"pfs_median",
	"os_median",
}

// Fetcher retrieves the raw outcome documents
type Fetcher interface {
	FetchDetailed(ctx context.Context) ([]byte, error)
	FetchSummarized(ctx context.Context) ([]byte, error)
}

// Dashboard holds the currently loaded datasets. Each Refresh replaces the
// snapshot wholesale; queries run against whatever snapshot is current, so
// there is no shared mutable state between a load and its readers.
type Dashboard struct {
	logger    *logrus.Logger
	source    Fetcher
	cacheSize int

	mu       sync.RWMutex
	dataset  *domain.DrugDataset
	summary  *domain.SummarizedOutcomes
	aggCache *lru.Cache[string, domain.AggregateStat]
	loadedAt time.Time
}

// NewDashboard creates a dashboard service
func NewDashboard(src Fetcher, aggregateCacheSize int, logger *logrus.Logger) *Dashboard {
	if aggregateCacheSize <= 0 {
		aggregateCacheSize = 256
	}
	return &Dashboard{
		logger:    logger,
		source:    src,
		cacheSize: aggregateCacheSize,
	}
}

// RefreshResult reports the outcome of one refresh. Each document loads
// independently; a failure leaves that section's previous data in place and
// never blocks the other section.
type RefreshResult struct {
	DetailedLoaded   bool   `json:"detailed_loaded"`
	SummarizedLoaded bool   `json:"summarized_loaded"`
	DetailedError    string `json:"detailed_error,omitempty"`
	SummarizedError  string `json:"summarized_error,omitempty"`
	Records          int    `json:"records"`
	SkippedRecords   int    `json:"skipped_records"`
}

// Refresh fetches and loads both documents concurrently
func (d *Dashboard) Refresh(ctx context.Context) RefreshResult {
	var result RefreshResult
	var wg sync.WaitGroup

	var (
		dataset    *domain.DrugDataset
		summary    *domain.SummarizedOutcomes
		detailErr  error
		summaryErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		raw, err := d.source.FetchDetailed(ctx)
		if err != nil {
			detailErr = err
			return
		}
		dataset, detailErr = store.Load(raw)
	}()
	go func() {
		defer wg.Done()
		raw, err := d.source.FetchSummarized(ctx)
		if err != nil {
			summaryErr = err
			return
		}
		summary, summaryErr = store.LoadSummarized(raw)
	}()
	wg.Wait()

	d.mu.Lock()
	if detailErr == nil {
		d.dataset = dataset
		d.loadedAt = time.Now().UTC()
		// Aggregates are memoized per load; the cache is replaced together
		// with the dataset so stale statistics can never survive a reload.
		d.aggCache, _ = lru.New[string, domain.AggregateStat](d.cacheSize)
		result.DetailedLoaded = true
		result.Records = dataset.TotalRecords()
		result.SkippedRecords = dataset.Skipped
	} else {
		result.DetailedError = detailErr.Error()
	}
	if summaryErr == nil {
		d.summary = summary
		result.SummarizedLoaded = true
	} else {
		result.SummarizedError = summaryErr.Error()
	}
	d.mu.Unlock()

	if detailErr != nil {
		d.logger.WithError(detailErr).Warn("Detailed outcomes load failed; section left unpopulated")
	}
	if summaryErr != nil {
		d.logger.WithError(summaryErr).Warn("Summarized outcomes load failed; section left unpopulated")
	}
	if detailErr == nil {
		d.logger.WithFields(logrus.Fields{
			"records": result.Records,
			"skipped": result.SkippedRecords,
		}).Info("Detailed outcomes loaded")
	}
	return result
}

// AggregatesFor computes one aggregate per drug for a metric path
func (d *Dashboard) AggregatesFor(metric string) ([]domain.AggregateStat, error) {
	if metric != aggregate.ORRMetric && !domain.KnownMetric(metric) {
		return nil, &domain.MetricError{Path: metric}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.dataset == nil {
		return nil, nil
	}

	stats := make([]domain.AggregateStat, 0, len(d.dataset.Drugs))
	for _, drug := range d.dataset.Drugs {
		stats = append(stats, d.aggregateLocked(drug, metric))
	}
	return stats, nil
}

// aggregateLocked serves one (drug, metric) aggregate through the per-load
// cache. Caller must hold at least a read lock.
func (d *Dashboard) aggregateLocked(drug domain.Drug, metric string) domain.AggregateStat {
	key := fmt.Sprintf("%s|%s", drug, metric)
	if cached, ok := d.aggCache.Get(key); ok {
		return cached
	}
	stat := aggregate.ForDrug(d.dataset, drug, metric)
	d.aggCache.Add(key, stat)
	return stat
}

// SummaryTable builds the summary rows for the default metric set
func (d *Dashboard) SummaryTable() []view.SummaryRow {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.dataset == nil {
		return nil
	}

	rows := make([]view.SummaryRow, 0, len(DefaultMetrics)*len(d.dataset.Drugs))
	for _, metric := range DefaultMetrics {
		stats := make([]domain.AggregateStat, 0, len(d.dataset.Drugs))
		for _, drug := range d.dataset.Drugs {
			stats = append(stats, d.aggregateLocked(drug, metric))
		}
		rows = append(rows, view.SummaryRows(stats)...)
	}
	return rows
}

// ChartFor builds comparative chart series for a metric
func (d *Dashboard) ChartFor(metric string) ([]view.ChartSeries, error) {
	stats, err := d.AggregatesFor(metric)
	if err != nil {
		return nil, err
	}
	return view.ChartSeriesFor(stats), nil
}

// Records filters the loaded records and renders them as detail cards
func (d *Dashboard) Records(sel domain.DrugSelector, cat domain.Category) view.RecordsView {
	d.mu.RLock()
	dataset := d.dataset
	d.mu.RUnlock()

	return view.RecordCards(filter.Apply(dataset, sel, cat))
}

// SummarizedTable renders the pre-aggregated document without
// recomputation. When that document failed to load but detailed data is
// available, the equivalent summary is computed from the detailed records
// so the section is not left blank for a recoverable reason.
func (d *Dashboard) SummarizedTable() []view.OutcomeRow {
	d.mu.RLock()
	summary := d.summary
	dataset := d.dataset
	d.mu.RUnlock()

	if summary == nil && dataset != nil {
		summary = aggregate.Summarize(dataset)
	}
	return view.SummarizedRows(summary)
}

// Metadata describes the current snapshot for the dashboard header
type Metadata struct {
	LoadedAt          *time.Time                 `json:"loaded_at,omitempty"`
	TotalRecords      int                        `json:"total_records"`
	SkippedRecords    int                        `json:"skipped_records"`
	RecordsPerDrug    map[string]int             `json:"records_per_drug,omitempty"`
	Extraction        *domain.ExtractionMetadata `json:"extraction,omitempty"`
	SummarizedPresent bool                       `json:"summarized_present"`
}

// Snapshot returns metadata about the currently loaded data
func (d *Dashboard) Snapshot() Metadata {
	d.mu.RLock()
	defer d.mu.RUnlock()

	meta := Metadata{SummarizedPresent: d.summary != nil}
	if d.dataset == nil {
		return meta
	}
	t := d.loadedAt
	meta.LoadedAt = &t
	meta.TotalRecords = d.dataset.TotalRecords()
	meta.SkippedRecords = d.dataset.Skipped
	meta.Extraction = d.dataset.Metadata
	meta.RecordsPerDrug = make(map[string]int, len(d.dataset.Drugs))
	for _, drug := range d.dataset.Drugs {
		meta.RecordsPerDrug[drug.String()] = len(d.dataset.Records[drug])
	}
	return meta
}
