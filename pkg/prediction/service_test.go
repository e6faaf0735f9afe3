package prediction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/materio/materio-go/pkg/graph"
	"github.com/materio/materio-go/pkg/models"
	"github.com/materio/materio-go/pkg/modelstore"
	"github.com/materio/materio-go/pkg/registry"
)

// ceramicTileGraph curates a small catalog where finish strongly predicts
// rRating: glossy tiles rate R9, matte tiles rate R11.
func ceramicTileGraph() *graph.Memory {
	g := graph.NewMemory()
	g.AddRelationship(models.PropertyRelationship{
		ID:               "rel-finish-rrating",
		MaterialType:     "ceramic_tile",
		SourceProperty:   "finish",
		TargetProperty:   "rRating",
		RelationshipType: models.RelationshipCorrelation,
		Strength:         0.8,
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
		CorrelationStrength: 0.85,
		SampleSize:          120,
	})
	return g
}

func newTestService(t *testing.T, client graph.Client) *Service {
	t.Helper()
	artifacts, err := modelstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg, err := registry.NewSQLiteStore(t.TempDir() + "/registry.db")
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return NewService(client, artifacts, reg, nil)
}

func trainOpts() models.TrainOptions {
	return models.TrainOptions{
		SampleSize:      300,
		Epochs:          40,
		BatchSize:       32,
		ValidationSplit: 0.2,
		RandomSeed:      42,
	}
}

func TestTrainModelInsufficientData(t *testing.T) {
	s := newTestService(t, graph.NewMemory())

	_, err := s.TrainModel(context.Background(), "ceramic_tile", "rRating", trainOpts())
	assert.ErrorIs(t, err, ErrInsufficientTrainingData)
}

func TestTrainModelRejectsInvalidOptions(t *testing.T) {
	s := newTestService(t, ceramicTileGraph())

	opts := trainOpts()
	opts.ValidationSplit = 1.5
	_, err := s.TrainModel(context.Background(), "ceramic_tile", "rRating", opts)
	assert.Error(t, err)
}

func TestTrainModelPersistsAndActivates(t *testing.T) {
	s := newTestService(t, ceramicTileGraph())

	id, err := s.TrainModel(context.Background(), "ceramic_tile", "rRating", trainOpts())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	meta, err := s.artifacts.LoadMetadata(id)
	require.NoError(t, err)
	assert.Equal(t, "ceramic_tile", meta.MaterialType)
	assert.Equal(t, "rRating", meta.TargetProperty)
	assert.Equal(t, []string{"R11", "R9"}, meta.TargetValues)
	assert.NotEmpty(t, meta.FeatureNames)
	assert.Contains(t, meta.PropertyVocab, "finish")

	weights, err := s.artifacts.LoadWeights(id)
	require.NoError(t, err)
	assert.NotEmpty(t, weights)

	regModel, err := s.registry.Get(id)
	require.NoError(t, err)
	assert.True(t, regModel.IsActive)
	assert.Equal(t, 1, regModel.Version)
	assert.Equal(t, "property-prediction", regModel.Type)
}

func TestRetrainActivatesNewVersion(t *testing.T) {
	s := newTestService(t, ceramicTileGraph())
	ctx := context.Background()

	first, err := s.TrainModel(ctx, "ceramic_tile", "rRating", trainOpts())
	require.NoError(t, err)
	second, err := s.TrainModel(ctx, "ceramic_tile", "rRating", trainOpts())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	active, err := s.registry.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second, active[0].ID)
	assert.Equal(t, 2, active[0].Version)

	// The old artifact stays addressable
	_, err = s.artifacts.LoadMetadata(first)
	assert.NoError(t, err)
}

func TestPredictPropertyModelNotFound(t *testing.T) {
	s := newTestService(t, ceramicTileGraph())

	_, err := s.PredictProperty(context.Background(), "no-such-model", map[string]string{"finish": "matte"})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestPredictPropertyEndToEnd(t *testing.T) {
	s := newTestService(t, ceramicTileGraph())
	ctx := context.Background()

	id, err := s.TrainModel(ctx, "ceramic_tile", "rRating", trainOpts())
	require.NoError(t, err)

	results, err := s.PredictProperty(ctx, id, map[string]string{"finish": "matte"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Matte tiles correlate with R11; both the classifier and the graph agree
	assert.Equal(t, "R11", results[0].Value)
	assert.Greater(t, results[0].Confidence, results[1].Confidence)

	total := 0.0
	for _, r := range results {
		total += r.Probability
	}
	assert.InDelta(t, 1.0, total, 1e-6)

	results, err = s.PredictProperty(ctx, id, map[string]string{"finish": "glossy"})
	require.NoError(t, err)
	assert.Equal(t, "R9", results[0].Value)
}

func TestPredictPropertySharesLoadedNetwork(t *testing.T) {
	s := newTestService(t, ceramicTileGraph())
	ctx := context.Background()

	id, err := s.TrainModel(ctx, "ceramic_tile", "rRating", trainOpts())
	require.NoError(t, err)

	first, err := s.network(id)
	require.NoError(t, err)
	second, err := s.network(id)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

// stubRecClient overrides only the recommendation query
type stubRecClient struct {
	graph.Client
	resp *models.RecommendationResponse
	err  error
}

func (c *stubRecClient) GetPropertyRecommendations(context.Context, models.RecommendationRequest) (*models.RecommendationResponse, error) {
	return c.resp, c.err
}

func TestEnhancePredictionsFusion(t *testing.T) {
	client := &stubRecClient{
		resp: &models.RecommendationResponse{Recommendations: []models.Recommendation{
			{Value: "R9", Confidence: 0.2},
			{Value: "R11", Confidence: 0.9},
		}},
	}

	results := EnhancePredictions(context.Background(), client, nil, "ceramic_tile",
		map[string]string{"finish": "matte"}, "rRating",
		[]string{"R10", "R11", "R9"}, []float64{0.5, 0.3, 0.2})

	require.Len(t, results, 3)

	byValue := map[string]models.PredictionResult{}
	for _, r := range results {
		byValue[r.Value] = r
	}

	// combined = 0.7*probability + 0.3*graphConfidence, zero when unrecommended
	assert.InDelta(t, 0.7*0.5+0.3*0.0, byValue["R10"].Confidence, 1e-9)
	assert.InDelta(t, 0.7*0.3+0.3*0.9, byValue["R11"].Confidence, 1e-9)
	assert.InDelta(t, 0.7*0.2+0.3*0.2, byValue["R9"].Confidence, 1e-9)

	// Graph support lifts R11 over the classifier's favorite R10
	assert.Equal(t, "R11", results[0].Value)
	assert.Equal(t, "R10", results[1].Value)
	assert.Equal(t, "R9", results[2].Value)
}

func TestEnhancePredictionsRecommendationFailure(t *testing.T) {
	client := &stubRecClient{err: errors.New("graph unavailable")}

	results := EnhancePredictions(context.Background(), client, nil, "ceramic_tile",
		map[string]string{"finish": "matte"}, "rRating",
		[]string{"R11", "R9"}, []float64{0.4, 0.6})

	require.Len(t, results, 2)
	// Fallback: confidence equals the raw probability
	assert.Equal(t, "R9", results[0].Value)
	assert.Equal(t, results[0].Probability, results[0].Confidence)
	assert.Equal(t, results[1].Probability, results[1].Confidence)
}

func TestEnhancePredictionsPreservesCandidateSet(t *testing.T) {
	client := &stubRecClient{
		resp: &models.RecommendationResponse{Recommendations: []models.Recommendation{
			{Value: "R13", Confidence: 1.0}, // not a candidate, must not appear
		}},
	}

	results := EnhancePredictions(context.Background(), client, nil, "ceramic_tile",
		nil, "rRating", []string{"R11", "R9"}, []float64{0.5, 0.5})

	values := []string{results[0].Value, results[1].Value}
	assert.ElementsMatch(t, []string{"R11", "R9"}, values)
}

func TestDesignVectorProjection(t *testing.T) {
	meta := &models.PredictionModelMeta{
		FeatureNames: []string{"corr_a", "rel_strength_b", "prop_finish_matte"},
	}

	vec := designVector(meta,
		map[string]float64{"corr_a": 0.9, "unknown_feature": 5},
		map[string]string{"finish": "matte", "color": "white"})

	assert.Equal(t, []float64{0.9, 0, 1}, vec)
}
