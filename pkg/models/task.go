package models

import (
	"fmt"
	"time"
)

// TrainingTaskStatus tracks a queued training run through its lifecycle
type TrainingTaskStatus string

const (
	TrainingTaskQueued    TrainingTaskStatus = "queued"
	TrainingTaskRunning   TrainingTaskStatus = "running"
	TrainingTaskCompleted TrainingTaskStatus = "completed"
	TrainingTaskFailed    TrainingTaskStatus = "failed"
)

// TrainingTask is a background training job. Training is long-running and
// CPU-bound, so it never runs on the request-serving path.
type TrainingTask struct {
	ID             string             `json:"id"`
	MaterialType   string             `json:"material_type"`
	TargetProperty string             `json:"target_property"`
	Options        TrainOptions       `json:"options"`
	Priority       int                `json:"priority"`
	Status         TrainingTaskStatus `json:"status"`
	ModelID        string             `json:"model_id,omitempty"` // set on completion
	ErrorMessage   string             `json:"error_message,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
}

// Validate checks the fields the worker needs before a task is accepted
func (t *TrainingTask) Validate() error {
	if t.MaterialType == "" {
		return fmt.Errorf("material_type is required")
	}
	if t.TargetProperty == "" {
		return fmt.Errorf("target_property is required")
	}
	return t.Options.Normalize()
}
