package graph

import (
	"context"
	"sort"
	"sync"

	"github.com/materio/materio-go/pkg/models"
)

// Memory is an in-memory graph client used by tests and local development.
// Its recommendation confidences are a stand-in derived from correlation
// strength and rule scores; the production formula lives in the external
// curation service and is not reproduced here.
type Memory struct {
	mu            sync.RWMutex
	relationships []models.PropertyRelationship
	correlations  map[string][]models.PropertyValueCorrelation  // keyed by relationship ID
	rules         map[string][]models.PropertyCompatibilityRule // keyed by relationship ID
}

// NewMemory creates an empty in-memory graph
func NewMemory() *Memory {
	return &Memory{
		correlations: make(map[string][]models.PropertyValueCorrelation),
		rules:        make(map[string][]models.PropertyCompatibilityRule),
	}
}

// AddRelationship loads a relationship row
func (m *Memory) AddRelationship(rel models.PropertyRelationship) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationships = append(m.relationships, rel)
}

// AddCorrelation loads a correlation row
func (m *Memory) AddCorrelation(corr models.PropertyValueCorrelation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.correlations[corr.RelationshipID] = append(m.correlations[corr.RelationshipID], corr)
}

// AddCompatibilityRule loads a compatibility rule row
func (m *Memory) AddCompatibilityRule(rule models.PropertyCompatibilityRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.RelationshipID] = append(m.rules[rule.RelationshipID], rule)
}

// GetRelationshipsByTargetProperty returns relationships targeting targetProperty
func (m *Memory) GetRelationshipsByTargetProperty(ctx context.Context, targetProperty, materialType string) ([]models.PropertyRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.PropertyRelationship
	for _, rel := range m.relationships {
		if rel.TargetProperty == targetProperty && rel.MaterialType == materialType {
			out = append(out, rel)
		}
	}
	return out, nil
}

// GetValueCorrelationsBySourceValue returns correlation rows for one source value
func (m *Memory) GetValueCorrelationsBySourceValue(ctx context.Context, relationshipID, sourceValue string) ([]models.PropertyValueCorrelation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.PropertyValueCorrelation
	for _, c := range m.correlations[relationshipID] {
		if c.SourceValue == sourceValue {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetValueCorrelationsByRelationshipID returns all correlation rows for a relationship
func (m *Memory) GetValueCorrelationsByRelationshipID(ctx context.Context, relationshipID string) ([]models.PropertyValueCorrelation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PropertyValueCorrelation, len(m.correlations[relationshipID]))
	copy(out, m.correlations[relationshipID])
	return out, nil
}

// GetCompatibilityRulesBySourceValue returns compatibility rows for one source value
func (m *Memory) GetCompatibilityRulesBySourceValue(ctx context.Context, relationshipID, sourceValue string) ([]models.PropertyCompatibilityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.PropertyCompatibilityRule
	for _, r := range m.rules[relationshipID] {
		if r.SourceValue == sourceValue {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetCompatibilityRulesByRelationshipID returns all compatibility rows for a relationship
func (m *Memory) GetCompatibilityRulesByRelationshipID(ctx context.Context, relationshipID string) ([]models.PropertyCompatibilityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PropertyCompatibilityRule, len(m.rules[relationshipID]))
	copy(out, m.rules[relationshipID])
	return out, nil
}

// GetPropertyRecommendations scores candidate target values from correlations
// and compatibility rules that match the known properties. Scores accumulate
// correlation strength weighted by sample confidence plus positive rule
// scores, then are normalized by the best candidate into [0,1].
func (m *Memory) GetPropertyRecommendations(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scores := make(map[string]float64)
	for _, rel := range m.relationships {
		if rel.TargetProperty != req.TargetProperty || rel.MaterialType != req.MaterialType {
			continue
		}
		srcVal, known := req.Properties[rel.SourceProperty]
		if !known {
			continue
		}

		switch rel.RelationshipType {
		case models.RelationshipCorrelation:
			for _, c := range m.correlations[rel.ID] {
				if c.SourceValue != srcVal {
					continue
				}
				conf := models.SampleConfidence(c.SampleSize)
				if conf == 0 {
					conf = 0.5 // unobserved sample counts still carry some signal
				}
				scores[c.TargetValue] += rel.Strength * c.CorrelationStrength * conf
			}
		case models.RelationshipCompatibility, models.RelationshipExclusion:
			for _, r := range m.rules[rel.ID] {
				if r.SourceValue != srcVal {
					continue
				}
				score, err := r.CompatibilityType.Score()
				if err != nil {
					continue
				}
				if score > 0 {
					scores[r.TargetValue] += rel.Strength * score
				} else {
					delete(scores, r.TargetValue)
				}
			}
		}
	}

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	resp := &models.RecommendationResponse{}
	for value, s := range scores {
		conf := 0.0
		if maxScore > 0 {
			conf = s / maxScore
		}
		resp.Recommendations = append(resp.Recommendations, models.Recommendation{
			Value:      value,
			Confidence: conf,
		})
	}

	sort.Slice(resp.Recommendations, func(i, j int) bool {
		if resp.Recommendations[i].Confidence != resp.Recommendations[j].Confidence {
			return resp.Recommendations[i].Confidence > resp.Recommendations[j].Confidence
		}
		return resp.Recommendations[i].Value < resp.Recommendations[j].Value
	})

	return resp, nil
}
