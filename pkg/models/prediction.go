package models

import (
	"fmt"
	"time"
)

// TrainOptions configures one training run
type TrainOptions struct {
	SampleSize      int     `json:"sample_size"`      // synthetic examples to draw
	Epochs          int     `json:"epochs"`           // training epochs
	BatchSize       int     `json:"batch_size"`       // minibatch size
	ValidationSplit float64 `json:"validation_split"` // fraction held out for validation
	RandomSeed      int64   `json:"random_seed,omitempty"`
}

// DefaultTrainOptions returns the documented defaults (1000/50/32/0.2)
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		SampleSize:      1000,
		Epochs:          50,
		BatchSize:       32,
		ValidationSplit: 0.2,
	}
}

// Normalize fills unset fields with defaults and validates the rest
func (o *TrainOptions) Normalize() error {
	d := DefaultTrainOptions()
	if o.SampleSize == 0 {
		o.SampleSize = d.SampleSize
	}
	if o.Epochs == 0 {
		o.Epochs = d.Epochs
	}
	if o.BatchSize == 0 {
		o.BatchSize = d.BatchSize
	}
	if o.ValidationSplit == 0 {
		o.ValidationSplit = d.ValidationSplit
	}
	if o.SampleSize < 0 {
		return fmt.Errorf("sample_size must be positive, got %d", o.SampleSize)
	}
	if o.Epochs < 0 {
		return fmt.Errorf("epochs must be positive, got %d", o.Epochs)
	}
	if o.BatchSize < 0 {
		return fmt.Errorf("batch_size must be positive, got %d", o.BatchSize)
	}
	if o.ValidationSplit < 0 || o.ValidationSplit >= 1 {
		return fmt.Errorf("validation_split must be in [0,1), got %g", o.ValidationSplit)
	}
	return nil
}

// TrainingExample is one synthesized, labeled example. Relationship-derived
// numeric features and the raw drawn property values are kept separate so the
// raw values can be one-hot encoded against a stable per-property vocabulary
// instead of being collapsed to a placeholder.
type TrainingExample struct {
	Features   map[string]float64 `json:"features"`
	Properties map[string]string  `json:"properties"`
	Label      string             `json:"label"`
}

// PredictionModelMeta is the immutable metadata persisted alongside a trained
// model's weights. FeatureNames order is authoritative: every later extraction
// for this model is projected onto exactly this order.
type PredictionModelMeta struct {
	ID             string              `json:"id"`
	MaterialType   string              `json:"material_type"`
	TargetProperty string              `json:"target_property"`
	FeatureNames   []string            `json:"feature_names"`
	TargetValues   []string            `json:"target_values"`
	PropertyVocab  map[string][]string `json:"property_vocab"` // per-property value vocabulary for one-hot columns
	TrainOptions   TrainOptions        `json:"train_options"`
	CreatedAt      time.Time           `json:"created_at"`
}

// PredictionResult is one ranked candidate value for a predicted property
type PredictionResult struct {
	Value       string  `json:"value"`
	Probability float64 `json:"probability"` // raw classifier output
	Confidence  float64 `json:"confidence"`  // fused with graph recommendation confidence
}

// RegistryModel is the discovery row registered for each completed training run
type RegistryModel struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Type           string                 `json:"type"` // "property-prediction"
	Version        int                    `json:"version"`
	MaterialType   string                 `json:"material_type"`
	TargetProperty string                 `json:"target_property"`
	StoragePath    string                 `json:"storage_path"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IsActive       bool                   `json:"is_active"`
	CreatedAt      time.Time              `json:"created_at"`
}
