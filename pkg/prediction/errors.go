package prediction

import "errors"

var (
	// ErrInsufficientTrainingData is raised when synthesis yields zero
	// examples for a training run
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrModelNotFound is raised when no metadata exists for a model id
	ErrModelNotFound = errors.New("model not found")

	// ErrPersistence is raised when an artifact or registry write fails
	// during training. A partially written model is never marked active.
	ErrPersistence = errors.New("model persistence failed")
)
