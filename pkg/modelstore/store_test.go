package modelstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/materio/materio-go/pkg/models"
)

func TestSaveAndLoadMetadata(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	meta := &models.PredictionModelMeta{
		ID:             "model-1",
		MaterialType:   "ceramic_tile",
		TargetProperty: "rRating",
		FeatureNames:   []string{"rel_strength_finish_to_rRating", "prop_finish_glossy"},
		TargetValues:   []string{"R10", "R9"},
		PropertyVocab:  map[string][]string{"finish": {"glossy", "matte"}},
		TrainOptions:   models.DefaultTrainOptions(),
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveMetadata(meta))

	got, err := store.LoadMetadata("model-1")
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestSaveMetadataRequiresID(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.SaveMetadata(&models.PredictionModelMeta{}))
}

func TestLoadMetadataNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadMetadata("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAndLoadWeights(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	weights := []byte(`{"input_size":2,"output_size":2,"layers":[]}`)
	require.NoError(t, store.SaveWeights("model-1", weights))

	got, err := store.LoadWeights("model-1")
	require.NoError(t, err)
	assert.Equal(t, weights, got)
}

func TestLoadWeightsNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadWeights("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoragePathIsPerModel(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, store.StoragePath("a"), store.StoragePath("b"))
}
