// Package store builds immutable in-memory datasets from the externally
// produced outcome documents. It validates only the top-level shape; numeric
// range checks are a presentation concern and individual malformed records
// are skipped rather than failing the load.
package store

import (
	"encoding/json"
	"sort"

	"github.com/cmml-outcomes-server/internal/domain"
)

const (
	metadataKey        = "extraction_metadata"
	summaryMetadataKey = "_metadata"
	combinedKey        = "azacitidine_decitabine_combined"
)

// Load parses the detailed outcomes document: a JSON object mapping drug
// names to arrays of study records, optionally carrying an
// extraction_metadata block. Unknown drug keys are retained as-is and
// unknown per-record fields are ignored, so the extraction schema can
// evolve without breaking the dashboard.
func Load(raw []byte) (*domain.DrugDataset, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, domain.NewMalformedInputError(
			"top-level document is not a JSON object keyed by drug name", err.Error())
	}

	ds := &domain.DrugDataset{
		Records: make(map[domain.Drug][]domain.StudyRecord, len(top)),
	}

	for key, val := range top {
		if key == metadataKey {
			var meta domain.ExtractionMetadata
			if err := json.Unmarshal(val, &meta); err == nil {
				ds.Metadata = &meta
			}
			continue
		}

		var elems []json.RawMessage
		if err := json.Unmarshal(val, &elems); err != nil {
			return nil, domain.NewMalformedInputError(
				"drug key does not map to a sequence of records", key)
		}

		drug := domain.Drug(key)
		records := make([]domain.StudyRecord, 0, len(elems))
		for _, elem := range elems {
			var rec domain.StudyRecord
			if err := json.Unmarshal(elem, &rec); err != nil {
				ds.Skipped++
				continue
			}
			records = append(records, rec)
		}
		ds.Records[drug] = records
	}

	ds.Drugs = orderDrugs(ds.Records)
	return ds, nil
}

// LoadSummarized parses the pre-aggregated outcomes document. Blocks that
// fail to parse are dropped individually; only a wrong top-level shape
// fails the load.
func LoadSummarized(raw []byte) (*domain.SummarizedOutcomes, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, domain.NewMalformedInputError(
			"summarized document is not a JSON object keyed by drug name", err.Error())
	}

	out := &domain.SummarizedOutcomes{
		ByDrug: make(map[string]domain.OutcomeSummary, len(top)),
	}

	for key, val := range top {
		if key == summaryMetadataKey {
			var meta domain.SummaryMetadata
			if err := json.Unmarshal(val, &meta); err == nil {
				out.Metadata = &meta
			}
			continue
		}

		var block domain.OutcomeSummary
		if err := json.Unmarshal(val, &block); err != nil {
			continue
		}
		out.ByDrug[key] = block
	}

	out.Keys = orderSummaryKeys(out.ByDrug)
	return out, nil
}

// orderDrugs returns the deterministic display order: canonical drugs that
// are present, then any unknown drug keys in lexical order.
func orderDrugs(records map[domain.Drug][]domain.StudyRecord) []domain.Drug {
	ordered := make([]domain.Drug, 0, len(records))
	for _, d := range domain.CanonicalDrugs {
		if _, ok := records[d]; ok {
			ordered = append(ordered, d)
		}
	}
	var extras []domain.Drug
	for d := range records {
		if !d.IsCanonical() {
			extras = append(extras, d)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	return append(ordered, extras...)
}

func orderSummaryKeys(blocks map[string]domain.OutcomeSummary) []string {
	ordered := make([]string, 0, len(blocks))
	for _, d := range domain.CanonicalDrugs {
		if _, ok := blocks[d.String()]; ok {
			ordered = append(ordered, d.String())
		}
	}
	if _, ok := blocks[combinedKey]; ok {
		ordered = append(ordered, combinedKey)
	}
	var extras []string
	for k := range blocks {
		if k == combinedKey {
			continue
		}
		if !domain.Drug(k).IsCanonical() {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(ordered, extras...)
}
