package features

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/materio/materio-go/pkg/graph"
	"github.com/materio/materio-go/pkg/models"
)

// ceramicTileGraph loads the curation fixture used across the extractor tests:
// finish correlates with rRating, waterAbsorption constrains frostResistant.
func ceramicTileGraph() *graph.Memory {
	g := graph.NewMemory()

	g.AddRelationship(models.PropertyRelationship{
		ID:               "rel-finish-rrating",
		MaterialType:     "ceramic_tile",
		SourceProperty:   "finish",
		TargetProperty:   "rRating",
		RelationshipType: models.RelationshipCorrelation,
		Strength:         0.8,
		Bidirectional:    false,
	})
	g.AddCorrelation(models.PropertyValueCorrelation{
		RelationshipID:      "rel-finish-rrating",
		SourceValue:         "glossy",
		TargetValue:         "R9",
		CorrelationStrength: 0.9,
		SampleSize:          150,
	})
	g.AddCorrelation(models.PropertyValueCorrelation{
		RelationshipID:      "rel-finish-rrating",
		SourceValue:         "matte",
		TargetValue:         "R11",
		CorrelationStrength: 0.7,
		SampleSize:          40,
	})

	g.AddRelationship(models.PropertyRelationship{
		ID:               "rel-water-frost",
		MaterialType:     "ceramic_tile",
		SourceProperty:   "waterAbsorption",
		TargetProperty:   "frostResistant",
		RelationshipType: models.RelationshipCompatibility,
		Strength:         0.6,
		Bidirectional:    true,
	})
	g.AddCompatibilityRule(models.PropertyCompatibilityRule{
		RelationshipID:    "rel-water-frost",
		SourceValue:       "low",
		TargetValue:       "yes",
		CompatibilityType: models.CompatibilityRecommended,
	})

	return g
}

func TestExtractFeaturesEmptyInput(t *testing.T) {
	e := NewExtractor(ceramicTileGraph(), nil)

	fv, err := e.ExtractFeatures(context.Background(), "ceramic_tile", map[string]string{}, "rRating")
	require.NoError(t, err)
	assert.Empty(t, fv)
}

func TestExtractFeaturesCorrelation(t *testing.T) {
	e := NewExtractor(ceramicTileGraph(), nil)

	fv, err := e.ExtractFeatures(context.Background(), "ceramic_tile",
		map[string]string{"finish": "glossy"}, "rRating")
	require.NoError(t, err)

	assert.Equal(t, 0.8, fv["rel_strength_finish_to_rRating"])
	assert.Equal(t, 0.0, fv["rel_bidirectional_finish_to_rRating"])
	assert.Equal(t, 1.0, fv["rel_type_finish_to_rRating_CORRELATION"])
	assert.Equal(t, 0.0, fv["rel_type_finish_to_rRating_COMPATIBILITY"])
	assert.Equal(t, 0.0, fv["rel_type_finish_to_rRating_EXCLUSION"])

	assert.Equal(t, 0.9, fv["corr_finish_glossy_to_rRating_R9"])
	// 150 samples saturate the confidence scale
	assert.Equal(t, 1.0, fv["corr_sample_finish_glossy_to_rRating_R9"])

	// The matte correlation has a different source value and must not leak in
	assert.NotContains(t, fv, "corr_finish_matte_to_rRating_R11")
}

func TestExtractFeaturesSampleConfidenceBelowSaturation(t *testing.T) {
	e := NewExtractor(ceramicTileGraph(), nil)

	fv, err := e.ExtractFeatures(context.Background(), "ceramic_tile",
		map[string]string{"finish": "matte"}, "rRating")
	require.NoError(t, err)

	assert.InDelta(t, 0.4, fv["corr_sample_finish_matte_to_rRating_R11"], 1e-9)
}

func TestExtractFeaturesCompatibility(t *testing.T) {
	e := NewExtractor(ceramicTileGraph(), nil)

	fv, err := e.ExtractFeatures(context.Background(), "ceramic_tile",
		map[string]string{"waterAbsorption": "low"}, "frostResistant")
	require.NoError(t, err)

	assert.Equal(t, 1.0, fv["rel_bidirectional_waterAbsorption_to_frostResistant"])
	assert.Equal(t, 1.0, fv["compat_waterAbsorption_low_to_frostResistant_yes_RECOMMENDED"])
	assert.Equal(t, 0.0, fv["compat_waterAbsorption_low_to_frostResistant_yes_COMPATIBLE"])
	assert.Equal(t, 0.0, fv["compat_waterAbsorption_low_to_frostResistant_yes_NOT_RECOMMENDED"])
	assert.Equal(t, 0.0, fv["compat_waterAbsorption_low_to_frostResistant_yes_INCOMPATIBLE"])
	assert.Equal(t, 1.0, fv["compat_score_waterAbsorption_low_to_frostResistant_yes"])
}

func TestExtractFeaturesIgnoresUnknownSourceProperty(t *testing.T) {
	e := NewExtractor(ceramicTileGraph(), nil)

	// thickness has no relationship row targeting rRating
	fv, err := e.ExtractFeatures(context.Background(), "ceramic_tile",
		map[string]string{"thickness": "10mm"}, "rRating")
	require.NoError(t, err)
	assert.Empty(t, fv)
}

func TestExtractFeaturesDeterministic(t *testing.T) {
	e := NewExtractor(ceramicTileGraph(), nil)
	props := map[string]string{"finish": "glossy", "waterAbsorption": "low"}

	first, err := e.ExtractFeatures(context.Background(), "ceramic_tile", props, "rRating")
	require.NoError(t, err)
	second, err := e.ExtractFeatures(context.Background(), "ceramic_tile", props, "rRating")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractFeaturesInvalidCompatibilityType(t *testing.T) {
	g := ceramicTileGraph()
	g.AddCompatibilityRule(models.PropertyCompatibilityRule{
		RelationshipID:    "rel-water-frost",
		SourceValue:       "low",
		TargetValue:       "no",
		CompatibilityType: "SOMEWHAT_OK",
	})
	e := NewExtractor(g, nil)

	fv, err := e.ExtractFeatures(context.Background(), "ceramic_tile",
		map[string]string{"waterAbsorption": "low"}, "frostResistant")
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Nil(t, fv)
}

// failingClient simulates a graph outage on every call
type failingClient struct {
	graph.Memory
}

func (f *failingClient) GetRelationshipsByTargetProperty(context.Context, string, string) ([]models.PropertyRelationship, error) {
	return nil, errors.New("connection refused")
}

func TestExtractFeaturesGraphOutage(t *testing.T) {
	e := NewExtractor(&failingClient{}, nil)

	fv, err := e.ExtractFeatures(context.Background(), "ceramic_tile",
		map[string]string{"finish": "glossy"}, "rRating")
	require.NoError(t, err)
	assert.NotNil(t, fv)
	assert.Empty(t, fv)
}
