// Package graph provides read-only access to the property-relationship
// knowledge graph maintained by the external curation service.
package graph

import (
	"context"
	"errors"

	"github.com/materio/materio-go/pkg/models"
)

// ErrUnavailable marks graph reads that failed because the service could not
// be reached or answered with an error. Callers in the prediction pipeline
// treat it as soft: they degrade to empty or model-only results instead of
// propagating it.
var ErrUnavailable = errors.New("relationship graph unavailable")

// Client is the read surface of the relationship graph. All operations are
// pure reads and all may fail; none of them mutates graph state.
type Client interface {
	// GetRelationshipsByTargetProperty returns every relationship whose
	// target is targetProperty for the given material type.
	GetRelationshipsByTargetProperty(ctx context.Context, targetProperty, materialType string) ([]models.PropertyRelationship, error)

	// GetValueCorrelationsBySourceValue returns the correlation rows for one
	// relationship restricted to a single source value.
	GetValueCorrelationsBySourceValue(ctx context.Context, relationshipID, sourceValue string) ([]models.PropertyValueCorrelation, error)

	// GetValueCorrelationsByRelationshipID returns all correlation rows for a
	// relationship.
	GetValueCorrelationsByRelationshipID(ctx context.Context, relationshipID string) ([]models.PropertyValueCorrelation, error)

	// GetCompatibilityRulesBySourceValue returns the compatibility rows for
	// one relationship restricted to a single source value.
	GetCompatibilityRulesBySourceValue(ctx context.Context, relationshipID, sourceValue string) ([]models.PropertyCompatibilityRule, error)

	// GetCompatibilityRulesByRelationshipID returns all compatibility rows
	// for a relationship.
	GetCompatibilityRulesByRelationshipID(ctx context.Context, relationshipID string) ([]models.PropertyCompatibilityRule, error)

	// GetPropertyRecommendations asks the graph for candidate values of
	// targetProperty given a set of known properties. Confidences are in
	// [0,1], one entry per plausible target value.
	GetPropertyRecommendations(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResponse, error)
}
