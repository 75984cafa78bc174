package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmml-outcomes-server/internal/domain"
	"github.com/cmml-outcomes-server/internal/filter"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestSummaryRowsFormatting(t *testing.T) {
	stats := []domain.AggregateStat{
		{
			MetricName:  "complete_response",
			Drug:        domain.AZACITIDINE,
			Mean:        domain.NewStat(16.375),
			Median:      domain.NewStat(15),
			SampleCount: 8,
		},
		{
			MetricName: "complete_response",
			Drug:       domain.HYDROXYUREA,
			Mean:       domain.NotAvailable(),
			Median:     domain.NotAvailable(),
		},
		{
			MetricName:  "os_median",
			Drug:        domain.DECITABINE,
			Mean:        domain.NewStat(19.96),
			Median:      domain.NewStat(19.96),
			SampleCount: 5,
		},
	}

	rows := SummaryRows(stats)
	require.Len(t, rows, 3)

	assert.Equal(t, "16.4%", rows[0].Mean, "percent metrics round to one decimal and get the suffix")
	assert.Equal(t, "15.0%", rows[0].Median)
	assert.Equal(t, 8, rows[0].N)

	assert.Equal(t, NotReported, rows[1].Mean)
	assert.Equal(t, NotReported, rows[1].Median)
	assert.Equal(t, 0, rows[1].N)

	assert.Equal(t, "20.0 months", rows[2].Mean, "month metrics get the duration suffix")
}

func TestSummaryRowsDerivedORRIsPercent(t *testing.T) {
	rows := SummaryRows([]domain.AggregateStat{{
		MetricName:  "orr",
		Drug:        domain.AZACITIDINE,
		Mean:        domain.NewStat(44.17),
		Median:      domain.NewStat(43),
		SampleCount: 6,
	}})
	require.Len(t, rows, 1)
	assert.Equal(t, "44.2%", rows[0].Mean)
}

func TestChartSeriesFor(t *testing.T) {
	stats := []domain.AggregateStat{
		{MetricName: "complete_response", Drug: domain.AZACITIDINE, Mean: domain.NewStat(16.38), SampleCount: 8},
		{MetricName: "complete_response", Drug: domain.HYDROXYUREA, Mean: domain.NotAvailable()},
	}

	series := ChartSeriesFor(stats)
	require.Len(t, series, 2)

	assert.Equal(t, "azacitidine", series[0].Label)
	require.NotNil(t, series[0].Value)
	assert.InDelta(t, 16.4, *series[0].Value, 1e-9)
	assert.Equal(t, "16.4%", series[0].Display)

	assert.Equal(t, "hydroxyurea", series[1].Label)
	assert.Nil(t, series[1].Value, "no-data drug gets a null value so its bar is skipped")
	assert.Equal(t, NotReported, series[1].Display)
}

func TestRecordCards(t *testing.T) {
	result := filter.Result{
		TotalConsidered: 3,
		Records: []filter.ScopedRecord{{
			Drug: domain.AZACITIDINE,
			Record: domain.StudyRecord{
				PMID:                 "38123456",
				Citation:             "Smith et al., Leukemia 2023",
				CompleteResponse:     fptr(17.5),
				OSMedian:             fptr(23),
				CMMLSampleSize:       iptr(38),
				SampleSize:           iptr(120),
				KeyFindings:          "CR in a fifth of patients",
				ExtractionConfidence: fptr(0.9),
				NonRASMutantData:     &domain.SubgroupOutcomes{CRRate: fptr(12.3)},
			},
		}},
	}

	v := RecordCards(result)
	assert.Equal(t, 3, v.TotalConsidered)
	assert.Empty(t, v.Message)
	require.Len(t, v.Cards, 1)

	card := v.Cards[0]
	assert.Equal(t, "azacitidine", card.Drug)
	assert.Equal(t, "38123456", card.PMID)
	assert.Equal(t, "38", card.SampleSize, "CMML-specific sample size wins over the overall one")
	assert.Equal(t, "0.9", card.Confidence)

	require.Len(t, card.Sections, 4)
	efficacy := card.Sections[0]
	assert.Equal(t, "Efficacy", efficacy.Title)
	require.Len(t, efficacy.Fields, 5)
	assert.Equal(t, "17.5%", efficacy.Fields[0].Value)
	assert.True(t, efficacy.Fields[0].Reported)
	assert.Equal(t, NotReported, efficacy.Fields[1].Value)
	assert.False(t, efficacy.Fields[1].Reported)

	survival := card.Sections[2]
	assert.Equal(t, "23 months", survival.Fields[1].Value, "card values keep their reported precision")

	ras := card.Sections[3]
	assert.Equal(t, "RAS subgroups", ras.Title)
	require.Len(t, ras.Fields, 8)
	assert.Equal(t, NotReported, ras.Fields[0].Value, "absent RAS-mutant subgroup")
	assert.Equal(t, "Non-RAS-mutant CR rate", ras.Fields[4].Label)
	assert.Equal(t, "12.3%", ras.Fields[4].Value)
}

func TestRecordCardsEmptyResult(t *testing.T) {
	v := RecordCards(filter.Result{TotalConsidered: 7})
	assert.Empty(t, v.Cards)
	assert.Equal(t, 7, v.TotalConsidered)
	assert.Equal(t, "No matching records (0 of 7 considered)", v.Message)
}

func TestRecordCardMissingSampleSize(t *testing.T) {
	v := RecordCards(filter.Result{
		TotalConsidered: 1,
		Records: []filter.ScopedRecord{{
			Drug:   domain.DECITABINE,
			Record: domain.StudyRecord{PMID: "1"},
		}},
	})
	require.Len(t, v.Cards, 1)
	assert.Equal(t, NotReported, v.Cards[0].SampleSize)
	assert.Empty(t, v.Cards[0].Confidence)
}

func TestSummarizedRows(t *testing.T) {
	doc := &domain.SummarizedOutcomes{
		Keys: []string{"azacitidine", "azacitidine_decitabine_combined"},
		ByDrug: map[string]domain.OutcomeSummary{
			"azacitidine": {
				Efficacy: &domain.EfficacySummary{CRMean: fptr(16.38), CRMedian: fptr(15), ORRMean: fptr(44.17)},
				Safety:   &domain.SafetySummary{SAEMean: fptr(40.12)},
				Survival: &domain.SurvivalSummary{OSMean: fptr(22.66), OSMedian: fptr(21.5)},
			},
			"azacitidine_decitabine_combined": {
				Efficacy: &domain.EfficacySummary{CRMean: fptr(17.2)},
			},
		},
	}

	rows := SummarizedRows(doc)
	// azacitidine contributes cr/orr/sae/pfs/os, the combined block only cr/orr
	require.Len(t, rows, 7)

	assert.Equal(t, OutcomeRow{
		Drug: "azacitidine", Section: "efficacy", Metric: "cr",
		Mean: "16.4%", Median: "15.0%",
	}, rows[0])
	assert.Equal(t, "44.2%", rows[1].Mean)
	assert.Equal(t, NotReported, rows[1].Median, "missing half of a statistic pair renders as not reported")
	assert.Equal(t, "40.1%", rows[2].Mean)
	assert.Equal(t, NotReported, rows[3].Mean, "pfs pair entirely absent")
	assert.Equal(t, "22.7 months", rows[4].Mean)

	assert.Equal(t, "azacitidine_decitabine_combined", rows[5].Drug)
	assert.Equal(t, "17.2%", rows[5].Mean)
}

func TestSummarizedRowsNilDocument(t *testing.T) {
	assert.Nil(t, SummarizedRows(nil))
}
