// Package view maps aggregates and filtered record sets to renderable
// view-models. It is the only place display formatting happens: percent
// fields get "%", month durations get " months", and anything missing
// renders as the literal "Not reported" rather than a blank or a raw null.
package view

import (
	"fmt"
	"strconv"

	"github.com/cmml-outcomes-server/internal/domain"
	"github.com/cmml-outcomes-server/internal/filter"
)

// NotReported is the placeholder for absent values in every view shape
const NotReported = "Not reported"

// SummaryRow is one metric of one drug in the summary table
type SummaryRow struct {
	Metric string `json:"metric"`
	Drug   string `json:"drug"`
	Mean   string `json:"mean"`
	Median string `json:"median"`
	N      int    `json:"n"`
}

// ChartSeries is one drug's bar in a comparative chart for a single metric.
// Value carries the rounded display form; it is null when the drug has no
// data for the metric so charting libraries can skip the bar.
type ChartSeries struct {
	Label   string   `json:"label"`
	Value   *float64 `json:"value"`
	Display string   `json:"display"`
}

// CardField is a single labeled value on a record detail card
type CardField struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Reported bool   `json:"reported"`
}

// CardSection groups related fields on a record detail card
type CardSection struct {
	Title  string      `json:"title"`
	Fields []CardField `json:"fields"`
}

// RecordCard is the per-paper detail view
type RecordCard struct {
	Drug             string        `json:"drug"`
	PMID             string        `json:"pmid"`
	Citation         string        `json:"citation,omitempty"`
	URL              string        `json:"url,omitempty"`
	SampleSize       string        `json:"sample_size"`
	Sections         []CardSection `json:"sections"`
	KeyFindings      string        `json:"key_findings,omitempty"`
	StudyDesign      string        `json:"study_design,omitempty"`
	SupportingQuotes []string      `json:"supporting_quotes,omitempty"`
	Confidence       string        `json:"extraction_confidence,omitempty"`
}

// RecordsView wraps filtered cards together with the empty-result state
type RecordsView struct {
	Cards           []RecordCard `json:"cards"`
	TotalConsidered int          `json:"total_considered"`
	Message         string       `json:"message,omitempty"`
}

// OutcomeRow is one pre-aggregated statistic pair from the summarized
// outcomes document, rendered without recomputation
type OutcomeRow struct {
	Drug    string `json:"drug"`
	Section string `json:"section"`
	Metric  string `json:"metric"`
	Mean    string `json:"mean"`
	Median  string `json:"median"`
}

// SummaryRows converts aggregate statistics into summary table rows
func SummaryRows(stats []domain.AggregateStat) []SummaryRow {
	rows := make([]SummaryRow, 0, len(stats))
	for _, s := range stats {
		kind := kindFor(s.MetricName)
		rows = append(rows, SummaryRow{
			Metric: s.MetricName,
			Drug:   s.Drug.String(),
			Mean:   statDisplay(s.Mean, kind),
			Median: statDisplay(s.Median, kind),
			N:      s.SampleCount,
		})
	}
	return rows
}

// ChartSeriesFor builds one labeled series per drug from the mean of each
// drug's aggregate for the chosen metric
func ChartSeriesFor(stats []domain.AggregateStat) []ChartSeries {
	series := make([]ChartSeries, 0, len(stats))
	for _, s := range stats {
		kind := kindFor(s.MetricName)
		cs := ChartSeries{Label: s.Drug.String(), Display: statDisplay(s.Mean, kind)}
		if v, ok := s.Mean.Rounded(); ok {
			cs.Value = &v
		}
		series = append(series, cs)
	}
	return series
}

// RecordCards renders a filter result as detail cards plus the explicit
// no-matching-records state
func RecordCards(result filter.Result) RecordsView {
	v := RecordsView{
		Cards:           make([]RecordCard, 0, len(result.Records)),
		TotalConsidered: result.TotalConsidered,
	}
	for _, sr := range result.Records {
		v.Cards = append(v.Cards, buildCard(sr.Drug, &sr.Record))
	}
	if result.Empty() {
		v.Message = fmt.Sprintf("No matching records (0 of %d considered)", result.TotalConsidered)
	}
	return v
}

func buildCard(drug domain.Drug, r *domain.StudyRecord) RecordCard {
	card := RecordCard{
		Drug:             drug.String(),
		PMID:             r.PMID,
		Citation:         r.Citation,
		URL:              r.URL,
		SampleSize:       intDisplay(firstInt(r.CMMLSampleSize, r.SampleSize)),
		KeyFindings:      r.KeyFindings,
		StudyDesign:      r.StudyDesign,
		SupportingQuotes: r.SupportingQuotes,
	}
	if r.ExtractionConfidence != nil {
		card.Confidence = formatNumber(*r.ExtractionConfidence)
	}

	card.Sections = []CardSection{
		{Title: "Efficacy", Fields: []CardField{
			percentField("Complete response", r.CompleteResponse),
			percentField("Partial response", r.PartialResponse),
			percentField("Marrow complete response", r.MarrowCompleteResponse),
			percentField("Marrow optimal response", r.MarrowOptimalResponse),
			percentField("Overall response rate", r.OverallResponseRate),
		}},
		{Title: "Safety", Fields: []CardField{
			percentField("SAE frequency", r.SAEFrequency),
		}},
		{Title: "Survival", Fields: []CardField{
			monthsField("PFS median", r.PFSMedian),
			monthsField("OS median", r.OSMedian),
			monthsField("EFS median", r.EFSMedian),
		}},
		{Title: "RAS subgroups", Fields: subgroupFields(r)},
	}
	return card
}

func subgroupFields(r *domain.StudyRecord) []CardField {
	fields := make([]CardField, 0, 8)
	for _, group := range []struct {
		prefix string
		data   *domain.SubgroupOutcomes
	}{
		{"RAS-mutant", r.RASMutantData},
		{"Non-RAS-mutant", r.NonRASMutantData},
	} {
		var cr, pr, os, pfs *float64
		if group.data != nil {
			cr, pr, os, pfs = group.data.CRRate, group.data.PRRate, group.data.OSMedian, group.data.PFSMedian
		}
		fields = append(fields,
			percentField(group.prefix+" CR rate", cr),
			percentField(group.prefix+" PR rate", pr),
			monthsField(group.prefix+" OS median", os),
			monthsField(group.prefix+" PFS median", pfs),
		)
	}
	return fields
}

// SummarizedRows renders the pre-aggregated document as table rows. The
// statistics arrive already computed; this only formats them.
func SummarizedRows(doc *domain.SummarizedOutcomes) []OutcomeRow {
	if doc == nil {
		return nil
	}
	rows := make([]OutcomeRow, 0, len(doc.Keys)*5)
	for _, key := range doc.Keys {
		block := doc.ByDrug[key]
		if block.Efficacy != nil {
			rows = append(rows,
				outcomeRow(key, "efficacy", "cr", block.Efficacy.CRMean, block.Efficacy.CRMedian, domain.MetricPercent),
				outcomeRow(key, "efficacy", "orr", block.Efficacy.ORRMean, block.Efficacy.ORRMedian, domain.MetricPercent),
			)
		}
		if block.Safety != nil {
			rows = append(rows,
				outcomeRow(key, "safety", "sae", block.Safety.SAEMean, block.Safety.SAEMedian, domain.MetricPercent),
			)
		}
		if block.Survival != nil {
			rows = append(rows,
				outcomeRow(key, "survival", "pfs", block.Survival.PFSMean, block.Survival.PFSMedian, domain.MetricMonths),
				outcomeRow(key, "survival", "os", block.Survival.OSMean, block.Survival.OSMedian, domain.MetricMonths),
			)
		}
	}
	return rows
}

func outcomeRow(drug, section, metric string, mean, med *float64, kind domain.MetricKind) OutcomeRow {
	return OutcomeRow{
		Drug:    drug,
		Section: section,
		Metric:  metric,
		Mean:    ptrDisplay(mean, kind),
		Median:  ptrDisplay(med, kind),
	}
}

// Formatting helpers

func percentField(label string, v *float64) CardField {
	return field(label, v, domain.MetricPercent)
}

func monthsField(label string, v *float64) CardField {
	return field(label, v, domain.MetricMonths)
}

func field(label string, v *float64, kind domain.MetricKind) CardField {
	if v == nil {
		return CardField{Label: label, Value: NotReported}
	}
	return CardField{Label: label, Value: suffix(formatNumber(*v), kind), Reported: true}
}

func statDisplay(s domain.Stat, kind domain.MetricKind) string {
	v, ok := s.Rounded()
	if !ok {
		return NotReported
	}
	return suffix(strconv.FormatFloat(v, 'f', 1, 64), kind)
}

func ptrDisplay(v *float64, kind domain.MetricKind) string {
	if v == nil {
		return NotReported
	}
	rounded, _ := domain.NewStat(*v).Rounded()
	return suffix(strconv.FormatFloat(rounded, 'f', 1, 64), kind)
}

func suffix(num string, kind domain.MetricKind) string {
	switch kind {
	case domain.MetricPercent:
		return num + "%"
	case domain.MetricMonths:
		return num + " months"
	}
	return num
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func intDisplay(v *int) string {
	if v == nil {
		return NotReported
	}
	return strconv.Itoa(*v)
}

func firstInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

func kindFor(metric string) domain.MetricKind {
	// The derived ORR metric is a response-rate percentage even though its
	// short name carries no suffix hint.
	if metric == "orr" {
		return domain.MetricPercent
	}
	return domain.KindForMetric(metric)
}
