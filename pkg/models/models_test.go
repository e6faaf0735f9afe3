package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleConfidence(t *testing.T) {
	assert.Equal(t, 0.0, SampleConfidence(0))
	assert.Equal(t, 0.0, SampleConfidence(-3))
	assert.InDelta(t, 0.25, SampleConfidence(25), 1e-9)
	assert.Equal(t, 1.0, SampleConfidence(100))
	assert.Equal(t, 1.0, SampleConfidence(5000))
}

func TestCompatibilityScore(t *testing.T) {
	cases := map[CompatibilityType]float64{
		CompatibilityRecommended:    1.0,
		CompatibilityCompatible:     0.5,
		CompatibilityNotRecommended: -0.5,
		CompatibilityIncompatible:   -1.0,
	}
	for ct, want := range cases {
		got, err := ct.Score()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := CompatibilityType("MAYBE").Score()
	assert.Error(t, err)
}

func TestTrainOptionsNormalizeDefaults(t *testing.T) {
	var opts TrainOptions
	require.NoError(t, opts.Normalize())
	assert.Equal(t, DefaultTrainOptions(), opts)
}

func TestTrainOptionsNormalizeKeepsExplicitValues(t *testing.T) {
	opts := TrainOptions{SampleSize: 200, Epochs: 10, BatchSize: 16, ValidationSplit: 0.1, RandomSeed: 7}
	require.NoError(t, opts.Normalize())
	assert.Equal(t, 200, opts.SampleSize)
	assert.Equal(t, 10, opts.Epochs)
	assert.Equal(t, 16, opts.BatchSize)
	assert.Equal(t, 0.1, opts.ValidationSplit)
}

func TestTrainOptionsNormalizeRejectsInvalid(t *testing.T) {
	opts := TrainOptions{SampleSize: -1}
	assert.Error(t, opts.Normalize())

	opts = TrainOptions{ValidationSplit: 1.0}
	assert.Error(t, opts.Normalize())
}

func TestTrainingTaskValidate(t *testing.T) {
	task := TrainingTask{MaterialType: "ceramic_tile", TargetProperty: "rRating"}
	assert.NoError(t, task.Validate())

	task = TrainingTask{TargetProperty: "rRating"}
	assert.Error(t, task.Validate())

	task = TrainingTask{MaterialType: "ceramic_tile"}
	assert.Error(t, task.Validate())
}
