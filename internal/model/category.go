// Package model holds the value types shared by the enrichment engine:
// fetch results, quality metrics, requests, records, and the pathway contract.
package model

import "strings"

// Category is a named kind of enriched data.
type Category string

const (
	CategoryKinetics    Category = "kinetic_parameters"
	CategoryCoordinates Category = "coordinates"
	CategoryAnnotations Category = "annotations"
)

// AllCategories returns every category the engine knows how to enrich.
func AllCategories() []Category {
	return []Category{CategoryKinetics, CategoryCoordinates, CategoryAnnotations}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryKinetics, CategoryCoordinates, CategoryAnnotations:
		return true
	default:
		return false
	}
}

// ParseCategories splits a comma-separated list into categories, dropping blanks.
func ParseCategories(s string) []Category {
	var out []Category
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, Category(part))
	}
	return out
}

// Status is the outcome of a single adapter fetch.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// FailureKind classifies why a fetch or a category did not produce a change.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureSourceUnavailable FailureKind = "source_unavailable"
	FailureNotFound          FailureKind = "not_found"
	FailureValidation        FailureKind = "validation_failed"
	FailureMappingIncomplete FailureKind = "mapping_incomplete"
	FailureApplication       FailureKind = "application_failed"
	FailureBelowThreshold    FailureKind = "below_threshold"
	FailureCancelled         FailureKind = "cancelled"
)

// MergePolicy controls how a Field Enricher treats values already present.
type MergePolicy string

const (
	// MergeFillOnly writes a value only where none exists.
	MergeFillOnly MergePolicy = "fill-only"
	// MergeOverrideIfBetter replaces an existing value when the new score is higher.
	MergeOverrideIfBetter MergePolicy = "override-if-better"
)

// Valid reports whether p is a known merge policy.
func (p MergePolicy) Valid() bool {
	return p == MergeFillOnly || p == MergeOverrideIfBetter
}

// ConfidenceLabel is the human-facing bucket for a winning score.
type ConfidenceLabel string

const (
	ConfidenceHigh           ConfidenceLabel = "high"
	ConfidenceMedium         ConfidenceLabel = "medium"
	ConfidenceLow            ConfidenceLabel = "low"
	ConfidenceBelowThreshold ConfidenceLabel = "below_threshold"
)

// LabelFor buckets a score. Scores under the request floor are labelled
// below_threshold regardless of their absolute value.
func LabelFor(score, floor float64) ConfidenceLabel {
	switch {
	case score < floor:
		return ConfidenceBelowThreshold
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
