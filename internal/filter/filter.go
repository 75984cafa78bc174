// Package filter selects study records matching a drug selector and a
// data-category selector. Drug selection happens first, then the category
// relevance predicate runs per record; output stays drug-major in the
// dataset's display order.
package filter

import (
	"github.com/cmml-outcomes-server/internal/domain"
)

// ScopedRecord pairs a record with the drug list it came from
type ScopedRecord struct {
	Drug   domain.Drug        `json:"drug"`
	Record domain.StudyRecord `json:"record"`
}

// Result is the outcome of a filter run. An empty result is a first-class
// state, not an error; TotalConsidered reports how many records were in
// scope before the category predicate so the UI can say "0 of N match".
type Result struct {
	Records         []ScopedRecord `json:"records"`
	TotalConsidered int            `json:"total_considered"`
}

// Empty reports whether no record matched
func (r Result) Empty() bool {
	return len(r.Records) == 0
}

// Apply runs the drug selector and category predicate over a dataset.
// A selector naming a drug with no record list yields an empty result with
// TotalConsidered zero.
func Apply(ds *domain.DrugDataset, sel domain.DrugSelector, cat domain.Category) Result {
	var result Result
	if ds == nil {
		return result
	}

	drugs := ds.Drugs
	if sel != domain.DrugAll {
		drugs = nil
		for _, d := range ds.Drugs {
			if d == domain.Drug(sel) {
				drugs = []domain.Drug{d}
				break
			}
		}
	}

	for _, drug := range drugs {
		records := ds.RecordsFor(drug)
		result.TotalConsidered += len(records)
		for i := range records {
			if Relevant(&records[i], cat) {
				result.Records = append(result.Records, ScopedRecord{Drug: drug, Record: records[i]})
			}
		}
	}
	return result
}

// Relevant reports whether a record carries any data for the category.
// A record is relevant when at least one of the category's fields is
// present; partially reported records still match.
func Relevant(r *domain.StudyRecord, cat domain.Category) bool {
	switch cat {
	case domain.CategoryEfficacy:
		return r.CompleteResponse != nil || r.PartialResponse != nil ||
			r.MarrowCompleteResponse != nil || r.MarrowOptimalResponse != nil
	case domain.CategorySafety:
		return r.SAEFrequency != nil
	case domain.CategorySurvival:
		return r.PFSMedian != nil || r.OSMedian != nil || r.EFSMedian != nil
	case domain.CategoryRAS:
		return r.RASMutantData.HasData() || r.NonRASMutantData.HasData()
	}
	// CategoryAll and anything unrecognized at this level match everything;
	// category strings are validated at the API boundary.
	return true
}
