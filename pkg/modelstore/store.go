// Package modelstore persists trained model artifacts. Each model id owns one
// directory holding a metadata document and the serialized weights; artifacts
// are written once and never mutated.
package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/materio/materio-go/pkg/models"
)

// ErrNotFound is returned when no artifact exists for a model id
var ErrNotFound = errors.New("model artifact not found")

const (
	metadataFile = "metadata.json"
	weightsFile  = "weights.json"
)

// Store is the artifact contract: content addressed by model id
type Store interface {
	SaveMetadata(meta *models.PredictionModelMeta) error
	LoadMetadata(modelID string) (*models.PredictionModelMeta, error)
	SaveWeights(modelID string, weights []byte) error
	LoadWeights(modelID string) ([]byte, error)
	StoragePath(modelID string) string
}

// FileStore keeps artifacts on the local filesystem
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file store rooted at baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// StoragePath returns the artifact directory for a model id
func (s *FileStore) StoragePath(modelID string) string {
	return filepath.Join(s.baseDir, modelID)
}

// SaveMetadata writes the metadata document for a model
func (s *FileStore) SaveMetadata(meta *models.PredictionModelMeta) error {
	if meta.ID == "" {
		return fmt.Errorf("model metadata has no id")
	}
	dir := s.StoragePath(meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write model metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads the metadata document for a model
func (s *FileStore) LoadMetadata(modelID string) (*models.PredictionModelMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.StoragePath(modelID), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, modelID)
		}
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}

	var meta models.PredictionModelMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model metadata: %w", err)
	}
	return &meta, nil
}

// SaveWeights writes the serialized weights for a model
func (s *FileStore) SaveWeights(modelID string, weights []byte) error {
	dir := s.StoragePath(modelID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, weightsFile), weights, 0644); err != nil {
		return fmt.Errorf("failed to write model weights: %w", err)
	}
	return nil
}

// LoadWeights reads the serialized weights for a model
func (s *FileStore) LoadWeights(modelID string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.StoragePath(modelID), weightsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, modelID)
		}
		return nil, fmt.Errorf("failed to read model weights: %w", err)
	}
	return data, nil
}
