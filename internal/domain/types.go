package domain

import (
	"fmt"
	"strings"
)

// Core Enums and Types

// Drug represents one of the CMML treatment agents tracked by the dashboard
type Drug string

const (
	AZACITIDINE Drug = "azacitidine"
	DECITABINE  Drug = "decitabine"
	HYDROXYUREA Drug = "hydroxyurea"
)

// CanonicalDrugs is the display order for the three tracked agents.
// Drug keys outside this list are retained in datasets but ordered after these.
var CanonicalDrugs = []Drug{AZACITIDINE, DECITABINE, HYDROXYUREA}

// String returns the string representation of the drug
func (d Drug) String() string {
	return string(d)
}

// IsCanonical reports whether the drug is one of the three tracked agents
func (d Drug) IsCanonical() bool {
	for _, c := range CanonicalDrugs {
		if d == c {
			return true
		}
	}
	return false
}

// DrugSelector is either DrugAll or a specific drug name used by the filter engine
type DrugSelector string

// DrugAll selects every drug list in the dataset
const DrugAll DrugSelector = "all"

// ParseDrugSelector normalizes a raw drug selector string
func ParseDrugSelector(raw string) DrugSelector {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return DrugAll
	}
	return DrugSelector(s)
}

// Category represents a data-category filter over study records
type Category string

const (
	CategoryAll      Category = "all"
	CategoryEfficacy Category = "efficacy"
	CategorySafety   Category = "safety"
	CategorySurvival Category = "survival"
	CategoryRAS      Category = "ras"
)

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// ParseCategory validates a raw category string
func ParseCategory(raw string) (Category, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return CategoryAll, nil
	}
	switch Category(s) {
	case CategoryAll, CategoryEfficacy, CategorySafety, CategorySurvival, CategoryRAS:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown data category: %q", raw)
}

// MetricKind describes how a metric value is rendered
type MetricKind int

const (
	// MetricPercent renders with a trailing "%"
	MetricPercent MetricKind = iota
	// MetricMonths renders with a trailing " months"
	MetricMonths
	// MetricPlain renders as a bare number
	MetricPlain
)

// KindForMetric infers the rendering kind from a metric path.
// Rate/percentage fields get "%", "*_median" duration fields get " months",
// everything else renders as a plain number.
func KindForMetric(path string) MetricKind {
	leaf := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		leaf = path[i+1:]
	}
	switch {
	case strings.HasSuffix(leaf, "_response"),
		strings.HasSuffix(leaf, "_response_rate"),
		strings.HasSuffix(leaf, "_rate"),
		leaf == "sae_frequency":
		return MetricPercent
	case strings.HasSuffix(leaf, "_median"):
		return MetricMonths
	}
	return MetricPlain
}
