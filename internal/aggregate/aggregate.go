// Package aggregate computes per-drug summary statistics over study
// records. Means are simple unweighted means across studies, matching the
// upstream reports; absent fields are excluded from both the statistic and
// its sample count, never coerced to zero.
package aggregate

import (
	"sort"

	"github.com/cmml-outcomes-server/internal/domain"
)

// ORRMetric names the derived overall-response metric: the sum of complete,
// partial and marrow complete response for studies reporting at least one
// of the three.
const ORRMetric = "orr"

// Aggregate computes mean and median for one dot-addressed metric across a
// drug's records. Records where the metric is absent are excluded; an empty
// inclusion set yields the not-available marker, never 0 or NaN.
func Aggregate(records []domain.StudyRecord, drug domain.Drug, metricPath string) domain.AggregateStat {
	if metricPath == ORRMetric {
		return fromValues(derivedORR(records), drug, metricPath)
	}

	values := make([]float64, 0, len(records))
	for i := range records {
		if v, ok := records[i].Metric(metricPath); ok {
			values = append(values, v)
		}
	}
	return fromValues(values, drug, metricPath)
}

// ForDrug aggregates a metric for one drug list of a dataset
func ForDrug(ds *domain.DrugDataset, drug domain.Drug, metricPath string) domain.AggregateStat {
	return Aggregate(ds.RecordsFor(drug), drug, metricPath)
}

func fromValues(values []float64, drug domain.Drug, metric string) domain.AggregateStat {
	stat := domain.AggregateStat{
		MetricName:  metric,
		Drug:        drug,
		SampleCount: len(values),
	}
	if len(values) == 0 {
		stat.Mean = domain.NotAvailable()
		stat.Median = domain.NotAvailable()
		return stat
	}
	stat.Mean = domain.NewStat(mean(values))
	stat.Median = domain.NewStat(median(values))
	return stat
}

// derivedORR sums CR + PR + marrow CR per study, treating absent components
// as zero, but only for studies reporting at least one of the three. A
// study with none reported contributes nothing, so absence never becomes a
// spurious 0% response rate.
func derivedORR(records []domain.StudyRecord) []float64 {
	values := make([]float64, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.CompleteResponse == nil && r.PartialResponse == nil && r.MarrowCompleteResponse == nil {
			continue
		}
		var sum float64
		if r.CompleteResponse != nil {
			sum += *r.CompleteResponse
		}
		if r.PartialResponse != nil {
			sum += *r.PartialResponse
		}
		if r.MarrowCompleteResponse != nil {
			sum += *r.MarrowCompleteResponse
		}
		values = append(values, sum)
	}
	return values
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median sorts a copy ascending; even counts average the two middle values
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Summarize recomputes the pre-aggregated outcomes document shape from a
// detailed dataset: per-drug efficacy/safety/survival blocks, the combined
// hypomethylating-agent block, and clinical paper counts.
func Summarize(ds *domain.DrugDataset) *domain.SummarizedOutcomes {
	out := &domain.SummarizedOutcomes{
		ByDrug: make(map[string]domain.OutcomeSummary, len(ds.Drugs)+1),
	}

	counts := map[string]int{}
	total := 0
	for _, drug := range ds.Drugs {
		records := ds.RecordsFor(drug)
		out.ByDrug[drug.String()] = summarizeRecords(records, drug, true)
		out.Keys = append(out.Keys, drug.String())
		counts[drug.String()] = len(records)
		total += len(records)
	}
	counts["total_clinical"] = total

	combined := append(append([]domain.StudyRecord{},
		ds.RecordsFor(domain.AZACITIDINE)...),
		ds.RecordsFor(domain.DECITABINE)...)
	if len(combined) > 0 {
		out.ByDrug["azacitidine_decitabine_combined"] = summarizeRecords(combined, "", false)
		out.Keys = append(out.Keys, "azacitidine_decitabine_combined")
	}

	out.Metadata = &domain.SummaryMetadata{ClinicalDataPaperCounts: counts}
	return out
}

func summarizeRecords(records []domain.StudyRecord, drug domain.Drug, includeSafety bool) domain.OutcomeSummary {
	cr := Aggregate(records, drug, "complete_response")
	orr := Aggregate(records, drug, ORRMetric)
	pfs := Aggregate(records, drug, "pfs_median")
	os := Aggregate(records, drug, "os_median")

	summary := domain.OutcomeSummary{
		Efficacy: &domain.EfficacySummary{
			CRMean:    statPtr(cr.Mean),
			CRMedian:  statPtr(cr.Median),
			ORRMean:   statPtr(orr.Mean),
			ORRMedian: statPtr(orr.Median),
		},
		Survival: &domain.SurvivalSummary{
			PFSMean:   statPtr(pfs.Mean),
			PFSMedian: statPtr(pfs.Median),
			OSMean:    statPtr(os.Mean),
			OSMedian:  statPtr(os.Median),
		},
	}

	if includeSafety {
		sae := Aggregate(records, drug, "sae_frequency")
		summary.Safety = &domain.SafetySummary{
			SAEMean:   statPtr(sae.Mean),
			SAEMedian: statPtr(sae.Median),
		}
	}
	return summary
}

func statPtr(s domain.Stat) *float64 {
	v, ok := s.Value()
	if !ok {
		return nil
	}
	return &v
}
