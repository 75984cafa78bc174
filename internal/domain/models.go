package domain

import (
	"math"
	"strings"
	"time"
)

// Study Data Models

// StudyRecord represents one paper's extracted CMML outcome data for one drug.
// Every clinical field is optional because LLM extraction is frequently
// incomplete; a nil pointer means "not reported", which is never the same
// thing as zero.
type StudyRecord struct {
	PMID     string `json:"pmid"`
	Citation string `json:"citation,omitempty"`
	URL      string `json:"url,omitempty"`

	// Efficacy (percentages in [0,100])
	CompleteResponse       *float64 `json:"complete_response,omitempty"`
	PartialResponse        *float64 `json:"partial_response,omitempty"`
	MarrowCompleteResponse *float64 `json:"marrow_complete_response,omitempty"`
	MarrowOptimalResponse  *float64 `json:"marrow_optimal_response,omitempty"`
	OverallResponseRate    *float64 `json:"overall_response_rate,omitempty"`

	// Survival (months)
	PFSMedian *float64 `json:"pfs_median,omitempty"`
	OSMedian  *float64 `json:"os_median,omitempty"`
	EFSMedian *float64 `json:"efs_median,omitempty"`

	// Safety
	SAEFrequency *float64 `json:"sae_frequency,omitempty"`

	// RAS-mutation-status-stratified results for the same study
	RASMutantData    *SubgroupOutcomes `json:"ras_mutant_data,omitempty"`
	NonRASMutantData *SubgroupOutcomes `json:"non_ras_mutant_data,omitempty"`

	SampleSize     *int `json:"sample_size,omitempty"`
	CMMLSampleSize *int `json:"cmml_sample_size,omitempty"`

	SupportingQuotes []string `json:"supporting_quotes,omitempty"`

	KeyFindings       string `json:"key_findings,omitempty"`
	StudyDesign       string `json:"study_design,omitempty"`
	PatientPopulation string `json:"patient_population,omitempty"`
	TreatmentDetails  string `json:"treatment_details,omitempty"`

	ExtractionConfidence *float64 `json:"extraction_confidence,omitempty"`
}

// SubgroupOutcomes holds RAS-subgroup-stratified outcomes nested in a record
type SubgroupOutcomes struct {
	CRRate     *float64 `json:"cr_rate,omitempty"`
	PRRate     *float64 `json:"pr_rate,omitempty"`
	ORRRate    *float64 `json:"orr_rate,omitempty"`
	OSMedian   *float64 `json:"os_median,omitempty"`
	PFSMedian  *float64 `json:"pfs_median,omitempty"`
	SampleSize *int     `json:"sample_size,omitempty"`
}

// HasData reports whether any outcome value is present in the subgroup
func (s *SubgroupOutcomes) HasData() bool {
	if s == nil {
		return false
	}
	return s.CRRate != nil || s.PRRate != nil || s.ORRRate != nil ||
		s.OSMedian != nil || s.PFSMedian != nil
}

// Metric resolves a leaf metric name inside the subgroup
func (s *SubgroupOutcomes) Metric(name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	var p *float64
	switch name {
	case "cr_rate":
		p = s.CRRate
	case "pr_rate":
		p = s.PRRate
	case "orr_rate":
		p = s.ORRRate
	case "os_median":
		p = s.OSMedian
	case "pfs_median":
		p = s.PFSMedian
	default:
		return 0, false
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Metric resolves a dot-addressed metric path against the record, e.g.
// "complete_response" or "ras_mutant_data.cr_rate". The second return value
// is false when the field is absent, which excludes the record from that
// metric's aggregate.
func (r *StudyRecord) Metric(path string) (float64, bool) {
	if head, rest, ok := strings.Cut(path, "."); ok {
		switch head {
		case "ras_mutant_data":
			return r.RASMutantData.Metric(rest)
		case "non_ras_mutant_data":
			return r.NonRASMutantData.Metric(rest)
		}
		return 0, false
	}

	var p *float64
	switch path {
	case "complete_response":
		p = r.CompleteResponse
	case "partial_response":
		p = r.PartialResponse
	case "marrow_complete_response":
		p = r.MarrowCompleteResponse
	case "marrow_optimal_response":
		p = r.MarrowOptimalResponse
	case "overall_response_rate":
		p = r.OverallResponseRate
	case "pfs_median":
		p = r.PFSMedian
	case "os_median":
		p = r.OSMedian
	case "efs_median":
		p = r.EFSMedian
	case "sae_frequency":
		p = r.SAEFrequency
	case "extraction_confidence":
		p = r.ExtractionConfidence
	case "sample_size":
		if r.SampleSize == nil {
			return 0, false
		}
		return float64(*r.SampleSize), true
	case "cmml_sample_size":
		if r.CMMLSampleSize == nil {
			return 0, false
		}
		return float64(*r.CMMLSampleSize), true
	default:
		return 0, false
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// KnownMetric reports whether the path names a resolvable metric
func KnownMetric(path string) bool {
	known := map[string]bool{
		"complete_response": true, "partial_response": true,
		"marrow_complete_response": true, "marrow_optimal_response": true,
		"overall_response_rate": true, "pfs_median": true, "os_median": true,
		"efs_median": true, "sae_frequency": true, "extraction_confidence": true,
		"sample_size": true, "cmml_sample_size": true,
	}
	if head, rest, ok := strings.Cut(path, "."); ok {
		if head != "ras_mutant_data" && head != "non_ras_mutant_data" {
			return false
		}
		switch rest {
		case "cr_rate", "pr_rate", "orr_rate", "os_median", "pfs_median":
			return true
		}
		return false
	}
	return known[path]
}

// ExtractionMetadata describes the whole extraction batch, not one drug
type ExtractionMetadata struct {
	TotalPapersProcessed int    `json:"total_papers_processed"`
	ExtractionDate       string `json:"extraction_date"`
}

// DrugDataset maps drug names to their ordered study record lists. It is
// built once per data load and never mutated afterwards; refreshing the
// data replaces the whole dataset.
type DrugDataset struct {
	Drugs    []Drug
	Records  map[Drug][]StudyRecord
	Metadata *ExtractionMetadata
	Skipped  int // malformed records dropped at load time
}

// RecordsFor returns the record list for a drug (nil when absent)
func (ds *DrugDataset) RecordsFor(d Drug) []StudyRecord {
	if ds == nil {
		return nil
	}
	return ds.Records[d]
}

// TotalRecords counts records across every drug list
func (ds *DrugDataset) TotalRecords() int {
	if ds == nil {
		return 0
	}
	n := 0
	for _, d := range ds.Drugs {
		n += len(ds.Records[d])
	}
	return n
}

// Aggregate Models

// Stat is a summary statistic that is either a value or a distinguished
// "not available" marker. The marker is never 0 and never NaN; downstream
// math must check Available before using the value.
type Stat struct {
	value     float64
	available bool
}

// NewStat wraps a computed statistic value
func NewStat(v float64) Stat {
	return Stat{value: v, available: true}
}

// NotAvailable returns the distinguished absent-value marker
func NotAvailable() Stat {
	return Stat{}
}

// Available reports whether a value is present
func (s Stat) Available() bool {
	return s.available
}

// Value returns the unrounded statistic value
func (s Stat) Value() (float64, bool) {
	return s.value, s.available
}

// Rounded returns the value rounded to one decimal place for display.
// The unrounded value stays retrievable via Value so rounding is never
// compounded by further aggregation.
func (s Stat) Rounded() (float64, bool) {
	if !s.available {
		return 0, false
	}
	return math.Round(s.value*10) / 10, true
}

// MarshalJSON emits the unrounded value, or null when not available
func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.available {
		return []byte("null"), nil
	}
	return jsonFloat(s.value), nil
}

// AggregateStat is the derived summary for one metric of one drug
type AggregateStat struct {
	MetricName  string `json:"metric_name"`
	Drug        Drug   `json:"drug"`
	Mean        Stat   `json:"mean"`
	Median      Stat   `json:"median"`
	SampleCount int    `json:"sample_count"`
}

// Summarized Outcomes Models (pre-aggregated second document)

// EfficacySummary holds pre-aggregated efficacy statistics
type EfficacySummary struct {
	CRMean    *float64 `json:"cr_mean"`
	CRMedian  *float64 `json:"cr_median"`
	ORRMean   *float64 `json:"orr_mean"`
	ORRMedian *float64 `json:"orr_median"`
}

// SafetySummary holds pre-aggregated safety statistics
type SafetySummary struct {
	SAEMean   *float64 `json:"sae_mean"`
	SAEMedian *float64 `json:"sae_median"`
}

// SurvivalSummary holds pre-aggregated survival statistics
type SurvivalSummary struct {
	PFSMean   *float64 `json:"pfs_mean"`
	PFSMedian *float64 `json:"pfs_median"`
	OSMean    *float64 `json:"os_mean"`
	OSMedian  *float64 `json:"os_median"`
}

// OutcomeSummary is one drug's block in the summarized outcomes document
type OutcomeSummary struct {
	Efficacy *EfficacySummary `json:"efficacy,omitempty"`
	Safety   *SafetySummary   `json:"safety,omitempty"`
	Survival *SurvivalSummary `json:"survival,omitempty"`
}

// SummaryMetadata carries the paper-count bookkeeping of the summarizer
type SummaryMetadata struct {
	ComprehensivePaperCounts map[string]int `json:"comprehensive_paper_counts,omitempty"`
	ClinicalDataPaperCounts  map[string]int `json:"clinical_data_paper_counts,omitempty"`
}

// SummarizedOutcomes is the independently fetched, already-aggregated
// per-drug statistics document. The presentation layer renders it without
// recomputation.
type SummarizedOutcomes struct {
	Keys     []string // deterministic display order
	ByDrug   map[string]OutcomeSummary
	Metadata *SummaryMetadata
}

// Configuration Models

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	StaticDir    string        `mapstructure:"static_dir"`
}

// SourcesConfig represents the external outcome document endpoints
type SourcesConfig struct {
	DetailedURL   string        `mapstructure:"detailed_url"`
	SummarizedURL string        `mapstructure:"summarized_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RateLimit     int           `mapstructure:"rate_limit"`
	RefreshOnBoot bool          `mapstructure:"refresh_on_boot"`
}

// CacheConfig represents Redis document cache and in-memory aggregate cache
type CacheConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	RedisURL           string        `mapstructure:"redis_url"`
	DefaultTTL         time.Duration `mapstructure:"default_ttl"`
	MaxRetries         int           `mapstructure:"max_retries"`
	PoolSize           int           `mapstructure:"pool_size"`
	PoolTimeout        time.Duration `mapstructure:"pool_timeout"`
	AggregateCacheSize int           `mapstructure:"aggregate_cache_size"`
}

// FeedbackConfig represents the data-quality flag store configuration
type FeedbackConfig struct {
	Backend     string `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	DatabaseURL string `mapstructure:"database_url"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
