// Package features turns known property values into the numeric feature map
// consumed by the property-prediction classifier.
package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/materio/materio-go/pkg/graph"
	"github.com/materio/materio-go/pkg/models"
)

// ErrInvalidParameter marks graph rows carrying an enum value this pipeline
// does not recognize. Unlike graph outages this is a hard error: it means the
// curated data and the code disagree.
var ErrInvalidParameter = errors.New("invalid parameter")

// Extractor walks the relationships applicable to a target property and emits
// numeric features for every relationship whose source property is known.
type Extractor struct {
	client graph.Client
	logger *logrus.Logger
}

// NewExtractor creates a feature extractor over the given graph client
func NewExtractor(client graph.Client, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{client: client, logger: logger}
}

// ExtractFeatures builds the feature map for predicting targetProperty from
// knownProperties. Graph outages degrade to an empty map: callers must treat
// "no features" as a degraded read, not a fatal one. An unrecognized
// compatibility type is the one hard failure.
func (e *Extractor) ExtractFeatures(ctx context.Context, materialType string, knownProperties map[string]string, targetProperty string) (map[string]float64, error) {
	fv := make(map[string]float64)

	relationships, err := e.client.GetRelationshipsByTargetProperty(ctx, targetProperty, materialType)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"material_type":   materialType,
			"target_property": targetProperty,
		}).WithError(err).Warn("feature extraction degraded: relationship query failed")
		return map[string]float64{}, nil
	}

	for _, rel := range relationships {
		sourceValue, known := knownProperties[rel.SourceProperty]
		if !known {
			continue
		}

		pair := fmt.Sprintf("%s_to_%s", rel.SourceProperty, rel.TargetProperty)

		fv["rel_strength_"+pair] = rel.Strength
		if rel.Bidirectional {
			fv["rel_bidirectional_"+pair] = 1
		} else {
			fv["rel_bidirectional_"+pair] = 0
		}
		for _, rt := range models.RelationshipTypes() {
			name := fmt.Sprintf("rel_type_%s_%s", pair, rt)
			if rt == rel.RelationshipType {
				fv[name] = 1
			} else {
				fv[name] = 0
			}
		}

		switch rel.RelationshipType {
		case models.RelationshipCorrelation:
			if err := e.correlationFeatures(ctx, rel, sourceValue, fv); err != nil {
				return map[string]float64{}, nil
			}
		case models.RelationshipCompatibility, models.RelationshipExclusion:
			if err := e.compatibilityFeatures(ctx, rel, sourceValue, fv); err != nil {
				if errors.Is(err, ErrInvalidParameter) {
					return nil, err
				}
				return map[string]float64{}, nil
			}
		}
	}

	return fv, nil
}

// correlationFeatures emits one strength feature per observed target value,
// plus a sample-confidence feature when observations were recorded.
func (e *Extractor) correlationFeatures(ctx context.Context, rel models.PropertyRelationship, sourceValue string, fv map[string]float64) error {
	correlations, err := e.client.GetValueCorrelationsBySourceValue(ctx, rel.ID, sourceValue)
	if err != nil {
		e.logger.WithField("relationship_id", rel.ID).WithError(err).
			Warn("feature extraction degraded: correlation query failed")
		return err
	}

	for _, c := range correlations {
		pair := fmt.Sprintf("%s_%s_to_%s_%s", rel.SourceProperty, c.SourceValue, rel.TargetProperty, c.TargetValue)
		fv["corr_"+pair] = c.CorrelationStrength
		if c.SampleSize > 0 {
			fv["corr_sample_"+pair] = models.SampleConfidence(c.SampleSize)
		}
	}
	return nil
}

// compatibilityFeatures emits a one-hot per compatibility type plus the scalar
// score for each rule matching the known source value.
func (e *Extractor) compatibilityFeatures(ctx context.Context, rel models.PropertyRelationship, sourceValue string, fv map[string]float64) error {
	rules, err := e.client.GetCompatibilityRulesBySourceValue(ctx, rel.ID, sourceValue)
	if err != nil {
		e.logger.WithField("relationship_id", rel.ID).WithError(err).
			Warn("feature extraction degraded: compatibility query failed")
		return err
	}

	for _, rule := range rules {
		score, err := rule.CompatibilityType.Score()
		if err != nil {
			return fmt.Errorf("%w: relationship %s: %v", ErrInvalidParameter, rel.ID, err)
		}

		pair := fmt.Sprintf("%s_%s_to_%s_%s", rel.SourceProperty, rule.SourceValue, rel.TargetProperty, rule.TargetValue)
		for _, ct := range models.CompatibilityTypes() {
			name := fmt.Sprintf("compat_%s_%s", pair, ct)
			if ct == rule.CompatibilityType {
				fv[name] = 1
			} else {
				fv[name] = 0
			}
		}
		fv["compat_score_"+pair] = score
	}
	return nil
}
