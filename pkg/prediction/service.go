// Package prediction orchestrates the property-prediction pipeline: it
// synthesizes training data from the relationship graph, trains and persists
// classifiers, and fuses classifier output with live graph recommendations at
// inference time.
package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/materio/materio-go/pkg/cache"
	"github.com/materio/materio-go/pkg/features"
	"github.com/materio/materio-go/pkg/graph"
	"github.com/materio/materio-go/pkg/models"
	"github.com/materio/materio-go/pkg/modelstore"
	"github.com/materio/materio-go/pkg/neural"
	"github.com/materio/materio-go/pkg/registry"
	"github.com/materio/materio-go/pkg/synth"
)

// Fusion weights between classifier probability and graph recommendation
// confidence
const (
	modelWeight = 0.7
	graphWeight = 0.3
)

// Service trains property-prediction models and serves predictions from them
type Service struct {
	client    graph.Client
	extractor *features.Extractor
	artifacts modelstore.Store
	registry  registry.Store
	cache     *cache.PredictionCache // optional
	logger    *logrus.Logger

	mu     sync.RWMutex
	loaded map[string]*neural.Network // read-only once loaded
}

// NewService creates a prediction service with injected dependencies
func NewService(client graph.Client, artifacts modelstore.Store, reg registry.Store, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		client:    client,
		extractor: features.NewExtractor(client, logger),
		artifacts: artifacts,
		registry:  reg,
		logger:    logger,
		loaded:    make(map[string]*neural.Network),
	}
}

// SetCache attaches an optional prediction cache
func (s *Service) SetCache(c *cache.PredictionCache) {
	s.cache = c
}

// TrainModel synthesizes a dataset for (materialType, targetProperty), trains
// a classifier on it, persists the artifact and registers it as the active
// version. It returns the fresh model id. Each call produces a new immutable
// artifact; nothing is edited in place.
func (s *Service) TrainModel(ctx context.Context, materialType, targetProperty string, opts models.TrainOptions) (string, error) {
	if err := opts.Normalize(); err != nil {
		return "", fmt.Errorf("invalid training options: %w", err)
	}

	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	synthesizer := synth.NewSynthesizer(s.client, s.extractor, rng, s.logger)
	examples := synthesizer.Generate(ctx, materialType, targetProperty, opts.SampleSize)
	if len(examples) == 0 {
		return "", fmt.Errorf("%w: no examples for %s/%s", ErrInsufficientTrainingData, materialType, targetProperty)
	}

	meta := buildSchema(examples, materialType, targetProperty, opts)

	x := make([][]float64, len(examples))
	labels := make([]int, len(examples))
	labelIndex := make(map[string]int, len(meta.TargetValues))
	for i, v := range meta.TargetValues {
		labelIndex[v] = i
	}
	for i, ex := range examples {
		x[i] = designVector(meta, ex.Features, ex.Properties)
		labels[i] = labelIndex[ex.Label]
	}

	cfg := neural.DefaultConfig()
	cfg.Epochs = opts.Epochs
	cfg.BatchSize = opts.BatchSize
	cfg.ValidationSplit = opts.ValidationSplit

	net, err := neural.New(len(meta.FeatureNames), len(meta.TargetValues), cfg.HiddenSizes, rng)
	if err != nil {
		return "", fmt.Errorf("failed to build network: %w", err)
	}
	fit, err := net.Fit(x, labels, cfg, rng)
	if err != nil {
		return "", fmt.Errorf("training failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"model_id":        meta.ID,
		"material_type":   materialType,
		"target_property": targetProperty,
		"examples":        len(examples),
		"features":        len(meta.FeatureNames),
		"classes":         len(meta.TargetValues),
		"train_accuracy":  fit.TrainAccuracy,
		"val_accuracy":    fit.ValAccuracy,
	}).Info("model trained")

	// Write metadata, then weights, then register. If registration fails the
	// artifact is orphaned but never listed as usable.
	if err := s.artifacts.SaveMetadata(meta); err != nil {
		return "", fmt.Errorf("%w: metadata: %v", ErrPersistence, err)
	}
	weights, err := json.Marshal(net)
	if err != nil {
		return "", fmt.Errorf("%w: weights: %v", ErrPersistence, err)
	}
	if err := s.artifacts.SaveWeights(meta.ID, weights); err != nil {
		return "", fmt.Errorf("%w: weights: %v", ErrPersistence, err)
	}

	regModel := &models.RegistryModel{
		ID:             meta.ID,
		Name:           fmt.Sprintf("%s/%s predictor", materialType, targetProperty),
		Type:           "property-prediction",
		MaterialType:   materialType,
		TargetProperty: targetProperty,
		StoragePath:    s.artifacts.StoragePath(meta.ID),
		Metadata: map[string]interface{}{
			"examples":       len(examples),
			"feature_count":  len(meta.FeatureNames),
			"class_count":    len(meta.TargetValues),
			"train_accuracy": fit.TrainAccuracy,
			"val_accuracy":   fit.ValAccuracy,
		},
		CreatedAt: meta.CreatedAt,
	}
	if err := s.registry.Register(regModel); err != nil {
		return "", fmt.Errorf("%w: registry: %v", ErrPersistence, err)
	}
	if err := s.registry.SetActive(meta.ID); err != nil {
		return "", fmt.Errorf("%w: activation: %v", ErrPersistence, err)
	}

	return meta.ID, nil
}

// PredictProperty loads the model, extracts features for the known
// properties, runs one forward pass and fuses the result with live graph
// recommendations. Results are sorted by descending fused confidence.
func (s *Service) PredictProperty(ctx context.Context, modelID string, knownProperties map[string]string) ([]models.PredictionResult, error) {
	if s.cache != nil {
		if results, ok := s.cache.Get(ctx, modelID, knownProperties); ok {
			return results, nil
		}
	}

	meta, err := s.artifacts.LoadMetadata(modelID)
	if err != nil {
		if errors.Is(err, modelstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
		}
		return nil, fmt.Errorf("failed to load model metadata: %w", err)
	}

	fv, err := s.extractor.ExtractFeatures(ctx, meta.MaterialType, knownProperties, meta.TargetProperty)
	if err != nil {
		return nil, err
	}

	net, err := s.network(modelID)
	if err != nil {
		return nil, err
	}

	probs, err := net.Predict(designVector(meta, fv, knownProperties))
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	results := EnhancePredictions(ctx, s.client, s.logger, meta.MaterialType, knownProperties, meta.TargetProperty, meta.TargetValues, probs)

	if s.cache != nil {
		s.cache.Set(ctx, modelID, knownProperties, results)
	}
	return results, nil
}

// EnhancePredictions fuses classifier probabilities with graph recommendation
// confidences: combined = 0.7*probability + 0.3*graphConfidence, with zero
// graph confidence for values the graph does not recommend. When the
// recommendation query fails the confidence falls back to the raw
// probability. The candidate set is exactly targetValues either way.
func EnhancePredictions(ctx context.Context, client graph.Client, logger *logrus.Logger, materialType string, knownProperties map[string]string, targetProperty string, targetValues []string, probs []float64) []models.PredictionResult {
	graphConfidence := make(map[string]float64)
	fused := true

	resp, err := client.GetPropertyRecommendations(ctx, models.RecommendationRequest{
		MaterialType:   materialType,
		Properties:     knownProperties,
		TargetProperty: targetProperty,
	})
	if err != nil {
		fused = false
		if logger != nil {
			logger.WithError(err).Warn("recommendation query failed, serving raw classifier output")
		}
	} else {
		for _, rec := range resp.Recommendations {
			graphConfidence[rec.Value] = rec.Confidence
		}
	}

	results := make([]models.PredictionResult, len(targetValues))
	for i, value := range targetValues {
		p := probs[i]
		confidence := p
		if fused {
			confidence = modelWeight*p + graphWeight*graphConfidence[value]
		}
		results[i] = models.PredictionResult{
			Value:       value,
			Probability: p,
			Confidence:  confidence,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results
}

// network returns the loaded model for an id, sharing one read-only instance
// across concurrent calls.
func (s *Service) network(modelID string) (*neural.Network, error) {
	s.mu.RLock()
	net, ok := s.loaded[modelID]
	s.mu.RUnlock()
	if ok {
		return net, nil
	}

	data, err := s.artifacts.LoadWeights(modelID)
	if err != nil {
		if errors.Is(err, modelstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
		}
		return nil, fmt.Errorf("failed to load model weights: %w", err)
	}

	loaded := &neural.Network{}
	if err := json.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("failed to deserialize model %s: %w", modelID, err)
	}

	s.mu.Lock()
	// Another caller may have loaded it meanwhile; either instance is fine
	if existing, ok := s.loaded[modelID]; ok {
		loaded = existing
	} else {
		s.loaded[modelID] = loaded
	}
	s.mu.Unlock()
	return loaded, nil
}

// buildSchema fixes the feature and label vocabularies for a training run.
// Numeric feature names come from the first example's feature map; raw
// property values get one one-hot column per (property, observed value) so
// categorical signal survives tensor conversion.
func buildSchema(examples []models.TrainingExample, materialType, targetProperty string, opts models.TrainOptions) *models.PredictionModelMeta {
	numericNames := make([]string, 0, len(examples[0].Features))
	for name := range examples[0].Features {
		numericNames = append(numericNames, name)
	}
	sort.Strings(numericNames)

	vocabSets := make(map[string]map[string]struct{})
	labelSet := make(map[string]struct{})
	for _, ex := range examples {
		for prop, val := range ex.Properties {
			if vocabSets[prop] == nil {
				vocabSets[prop] = make(map[string]struct{})
			}
			vocabSets[prop][val] = struct{}{}
		}
		labelSet[ex.Label] = struct{}{}
	}

	props := make([]string, 0, len(vocabSets))
	for prop := range vocabSets {
		props = append(props, prop)
	}
	sort.Strings(props)

	vocab := make(map[string][]string, len(vocabSets))
	featureNames := numericNames
	for _, prop := range props {
		vals := make([]string, 0, len(vocabSets[prop]))
		for v := range vocabSets[prop] {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		vocab[prop] = vals
		for _, v := range vals {
			featureNames = append(featureNames, propertyColumn(prop, v))
		}
	}

	targetValues := make([]string, 0, len(labelSet))
	for label := range labelSet {
		targetValues = append(targetValues, label)
	}
	sort.Strings(targetValues)

	return &models.PredictionModelMeta{
		ID:             uuid.New().String(),
		MaterialType:   materialType,
		TargetProperty: targetProperty,
		FeatureNames:   featureNames,
		TargetValues:   targetValues,
		PropertyVocab:  vocab,
		TrainOptions:   opts,
		CreatedAt:      time.Now().UTC(),
	}
}

// designVector projects a feature map plus raw property values onto the
// model's recorded feature order. Missing features become 0, unexpected
// features are dropped; this keeps inputs shape-compatible with the trained
// weights.
func designVector(meta *models.PredictionModelMeta, fv map[string]float64, properties map[string]string) []float64 {
	index := make(map[string]int, len(meta.FeatureNames))
	for i, name := range meta.FeatureNames {
		index[name] = i
	}

	vec := make([]float64, len(meta.FeatureNames))
	for name, value := range fv {
		if i, ok := index[name]; ok {
			vec[i] = value
		}
	}
	for prop, val := range properties {
		if i, ok := index[propertyColumn(prop, val)]; ok {
			vec[i] = 1
		}
	}
	return vec
}

func propertyColumn(property, value string) string {
	return fmt.Sprintf("prop_%s_%s", property, value)
}
