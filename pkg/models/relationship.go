package models

import "fmt"

// RelationshipType classifies how a source property relates to a target property
type RelationshipType string

const (
	RelationshipCorrelation   RelationshipType = "CORRELATION"   // statistical co-occurrence of values
	RelationshipCompatibility RelationshipType = "COMPATIBILITY" // values that work well/poorly together
	RelationshipExclusion     RelationshipType = "EXCLUSION"     // mutually prohibited values
)

// RelationshipTypes lists every relationship type in a stable order
func RelationshipTypes() []RelationshipType {
	return []RelationshipType{
		RelationshipCorrelation,
		RelationshipCompatibility,
		RelationshipExclusion,
	}
}

// PropertyRelationship describes a curated link between two properties of a
// material type. Rows are created and edited by the curation service only;
// this subsystem treats them as immutable.
type PropertyRelationship struct {
	ID               string           `json:"id"`
	MaterialType     string           `json:"material_type"`
	SourceProperty   string           `json:"source_property"`
	TargetProperty   string           `json:"target_property"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Strength         float64          `json:"strength"` // in [0,1]
	Bidirectional    bool             `json:"bidirectional"`
}

// PropertyValueCorrelation is one observed (sourceValue -> targetValue) pair
// under a CORRELATION relationship.
type PropertyValueCorrelation struct {
	RelationshipID      string  `json:"relationship_id"`
	SourceValue         string  `json:"source_value"`
	TargetValue         string  `json:"target_value"`
	CorrelationStrength float64 `json:"correlation_strength"`
	SampleSize          int     `json:"sample_size"`
}

// SampleConfidence normalizes an observation count into [0,1], saturating at
// 100 observed samples.
func SampleConfidence(sampleSize int) float64 {
	if sampleSize >= 100 {
		return 1.0
	}
	if sampleSize <= 0 {
		return 0.0
	}
	return float64(sampleSize) / 100.0
}

// CompatibilityType is the four-point qualitative scale used by compatibility
// and exclusion rules.
type CompatibilityType string

const (
	CompatibilityRecommended    CompatibilityType = "RECOMMENDED"
	CompatibilityCompatible     CompatibilityType = "COMPATIBLE"
	CompatibilityNotRecommended CompatibilityType = "NOT_RECOMMENDED"
	CompatibilityIncompatible   CompatibilityType = "INCOMPATIBLE"
)

// CompatibilityTypes lists every compatibility type in a stable order
func CompatibilityTypes() []CompatibilityType {
	return []CompatibilityType{
		CompatibilityRecommended,
		CompatibilityCompatible,
		CompatibilityNotRecommended,
		CompatibilityIncompatible,
	}
}

// Score maps the qualitative scale onto [-1,1]
func (c CompatibilityType) Score() (float64, error) {
	switch c {
	case CompatibilityRecommended:
		return 1.0, nil
	case CompatibilityCompatible:
		return 0.5, nil
	case CompatibilityNotRecommended:
		return -0.5, nil
	case CompatibilityIncompatible:
		return -1.0, nil
	default:
		return 0, fmt.Errorf("unknown compatibility type %q", string(c))
	}
}

// PropertyCompatibilityRule is one (sourceValue, targetValue) pair under a
// COMPATIBILITY or EXCLUSION relationship.
type PropertyCompatibilityRule struct {
	RelationshipID    string            `json:"relationship_id"`
	SourceValue       string            `json:"source_value"`
	TargetValue       string            `json:"target_value"`
	CompatibilityType CompatibilityType `json:"compatibility_type"`
}

// Recommendation is one candidate target value with the graph service's
// confidence in it. Confidences are in [0,1] and usable as sampling weights.
type Recommendation struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// RecommendationRequest is the input to the graph recommendation query
type RecommendationRequest struct {
	MaterialType   string            `json:"material_type"`
	Properties     map[string]string `json:"properties"`
	TargetProperty string            `json:"target_property"`
}

// RecommendationResponse wraps the recommendation list returned by the graph
type RecommendationResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}
