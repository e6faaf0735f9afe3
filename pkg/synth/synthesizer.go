// Package synth builds labeled training datasets by sampling the property
// relationship graph.
package synth

import (
	"context"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/materio/materio-go/pkg/features"
	"github.com/materio/materio-go/pkg/graph"
	"github.com/materio/materio-go/pkg/models"
)

// defaultVocabularies provides fallback target values for properties that
// have no curated graph data yet. Sparsely curated catalogs would otherwise
// produce empty datasets.
var defaultVocabularies = map[string][]string{
	"finish":          {"matte", "glossy", "satin"},
	"rRating":         {"R9", "R10", "R11", "R12", "R13"},
	"peiRating":       {"PEI-1", "PEI-2", "PEI-3", "PEI-4", "PEI-5"},
	"waterAbsorption": {"low", "medium", "high"},
	"frostResistant":  {"yes", "no"},
}

// genericVocabulary is the last-resort label set for unknown properties
var genericVocabulary = []string{"standard", "premium"}

// Synthesizer draws property-value combinations from the graph and labels
// them by confidence-weighted random selection over graph recommendations.
type Synthesizer struct {
	client    graph.Client
	extractor *features.Extractor
	logger    *logrus.Logger
	rng       *rand.Rand
}

// NewSynthesizer creates a synthesizer. The random source is injected so
// dataset generation and its statistical tests are reproducible.
func NewSynthesizer(client graph.Client, extractor *features.Extractor, rng *rand.Rand, logger *logrus.Logger) *Synthesizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Synthesizer{
		client:    client,
		extractor: extractor,
		logger:    logger,
		rng:       rng,
	}
}

// Generate produces up to sampleSize labeled examples for the given material
// type and target property. It is best effort: internal errors are logged and
// whatever examples were already produced are returned.
func (s *Synthesizer) Generate(ctx context.Context, materialType, targetProperty string, sampleSize int) []models.TrainingExample {
	targetValues, sourceValues := s.discoverVocabulary(ctx, materialType, targetProperty)

	if len(targetValues) == 0 {
		targetValues = defaultVocabulary(targetProperty)
		s.logger.WithFields(logrus.Fields{
			"material_type":   materialType,
			"target_property": targetProperty,
		}).Info("no graph data for target property, using default vocabulary")
	}

	sourceProps := make([]string, 0, len(sourceValues))
	for prop := range sourceValues {
		sourceProps = append(sourceProps, prop)
	}
	sort.Strings(sourceProps)

	examples := make([]models.TrainingExample, 0, sampleSize)
	for i := 0; i < sampleSize; i++ {
		// A draw with no discovered source properties would be label-less
		if len(sourceProps) == 0 {
			break
		}

		drawn := make(map[string]string, len(sourceProps))
		for _, prop := range sourceProps {
			vals := sourceValues[prop]
			drawn[prop] = vals[s.rng.Intn(len(vals))]
		}

		label := s.chooseLabel(ctx, materialType, targetProperty, drawn, targetValues)

		fv, err := s.extractor.ExtractFeatures(ctx, materialType, drawn, targetProperty)
		if err != nil {
			s.logger.WithError(err).Warn("training data generation stopped by extraction error")
			return examples
		}

		examples = append(examples, models.TrainingExample{
			Features:   fv,
			Properties: drawn,
			Label:      label,
		})
	}

	return examples
}

// discoverVocabulary collects candidate target values and, per source
// property, the observed source values from the relationships targeting
// targetProperty.
func (s *Synthesizer) discoverVocabulary(ctx context.Context, materialType, targetProperty string) ([]string, map[string][]string) {
	targetSet := make(map[string]struct{})
	sourceSets := make(map[string]map[string]struct{})

	relationships, err := s.client.GetRelationshipsByTargetProperty(ctx, targetProperty, materialType)
	if err != nil {
		s.logger.WithError(err).Warn("vocabulary discovery degraded: relationship query failed")
		return nil, nil
	}

	addSource := func(prop, value string) {
		if sourceSets[prop] == nil {
			sourceSets[prop] = make(map[string]struct{})
		}
		sourceSets[prop][value] = struct{}{}
	}

	for _, rel := range relationships {
		switch rel.RelationshipType {
		case models.RelationshipCorrelation:
			correlations, err := s.client.GetValueCorrelationsByRelationshipID(ctx, rel.ID)
			if err != nil {
				s.logger.WithField("relationship_id", rel.ID).WithError(err).
					Warn("vocabulary discovery degraded: correlation query failed")
				continue
			}
			for _, c := range correlations {
				targetSet[c.TargetValue] = struct{}{}
				addSource(rel.SourceProperty, c.SourceValue)
			}
		case models.RelationshipCompatibility, models.RelationshipExclusion:
			rules, err := s.client.GetCompatibilityRulesByRelationshipID(ctx, rel.ID)
			if err != nil {
				s.logger.WithField("relationship_id", rel.ID).WithError(err).
					Warn("vocabulary discovery degraded: rule query failed")
				continue
			}
			for _, r := range rules {
				targetSet[r.TargetValue] = struct{}{}
				addSource(rel.SourceProperty, r.SourceValue)
			}
		}
	}

	targetValues := make([]string, 0, len(targetSet))
	for v := range targetSet {
		targetValues = append(targetValues, v)
	}
	sort.Strings(targetValues)

	sourceValues := make(map[string][]string, len(sourceSets))
	for prop, set := range sourceSets {
		vals := make([]string, 0, len(set))
		for v := range set {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		sourceValues[prop] = vals
	}

	return targetValues, sourceValues
}

// chooseLabel picks a label for the drawn properties: confidence-weighted over
// graph recommendations when they exist, uniform over the candidate set when
// the weighted draw degenerates or the query fails.
func (s *Synthesizer) chooseLabel(ctx context.Context, materialType, targetProperty string, drawn map[string]string, targetValues []string) string {
	resp, err := s.client.GetPropertyRecommendations(ctx, models.RecommendationRequest{
		MaterialType:   materialType,
		Properties:     drawn,
		TargetProperty: targetProperty,
	})
	if err == nil && resp != nil {
		if label, ok := weightedChoice(s.rng, resp.Recommendations); ok {
			return label
		}
	} else if err != nil {
		s.logger.WithError(err).Debug("recommendation query failed, falling back to uniform label")
	}

	return targetValues[s.rng.Intn(len(targetValues))]
}

// weightedChoice performs cumulative-sum roulette-wheel selection over the
// recommendation confidences. It reports false when the draw degenerates:
// no recommendations or zero total confidence.
func weightedChoice(rng *rand.Rand, recs []models.Recommendation) (string, bool) {
	if len(recs) == 0 {
		return "", false
	}

	total := 0.0
	for _, r := range recs {
		if r.Confidence > 0 {
			total += r.Confidence
		}
	}
	if total <= 0 {
		return "", false
	}

	target := rng.Float64() * total
	cumulative := 0.0
	for _, r := range recs {
		if r.Confidence <= 0 {
			continue
		}
		cumulative += r.Confidence
		if target < cumulative {
			return r.Value, true
		}
	}
	// Floating point can leave target == total; the last positive entry wins
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Confidence > 0 {
			return recs[i].Value, true
		}
	}
	return "", false
}

// defaultVocabulary returns the documented fallback for a property, or two
// generic placeholder values for properties without one.
func defaultVocabulary(targetProperty string) []string {
	if vocab, ok := defaultVocabularies[targetProperty]; ok {
		return vocab
	}
	return genericVocabulary
}
