package prediction

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/materio/materio-go/pkg/modelstore"
	"github.com/materio/materio-go/pkg/registry"
)

// Retrainer periodically retrains every active model against fresh graph
// state. Each run produces a new artifact and flips the active flag to it;
// old versions stay addressable.
type Retrainer struct {
	service   *Service
	registry  registry.Store
	artifacts modelstore.Store
	logger    *logrus.Logger
	schedule  string
	cron      *cron.Cron
}

// NewRetrainer creates a retrainer with a cron schedule such as "0 3 * * *"
func NewRetrainer(service *Service, reg registry.Store, artifacts modelstore.Store, schedule string, logger *logrus.Logger) *Retrainer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Retrainer{
		service:   service,
		registry:  reg,
		artifacts: artifacts,
		logger:    logger,
		schedule:  schedule,
	}
}

// Start begins the schedule
func (r *Retrainer) Start() error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, r.RetrainAll); err != nil {
		return fmt.Errorf("invalid retrain schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.logger.WithField("schedule", r.schedule).Info("scheduled retraining started")
	return nil
}

// Stop halts the schedule; a retrain already in flight finishes
func (r *Retrainer) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RetrainAll retrains every active registry model with the options recorded
// at its original training time. Failures are logged per model; a failed
// retrain leaves the previous version active.
func (r *Retrainer) RetrainAll() {
	active, err := r.registry.ListActive()
	if err != nil {
		r.logger.WithError(err).Error("retrain skipped: failed to list active models")
		return
	}

	ctx := context.Background()
	for _, model := range active {
		meta, err := r.artifacts.LoadMetadata(model.ID)
		if err != nil {
			r.logger.WithField("model_id", model.ID).WithError(err).
				Error("retrain skipped: failed to load model metadata")
			continue
		}

		newID, err := r.service.TrainModel(ctx, meta.MaterialType, meta.TargetProperty, meta.TrainOptions)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"model_id":        model.ID,
				"material_type":   meta.MaterialType,
				"target_property": meta.TargetProperty,
			}).WithError(err).Error("retrain failed, previous version stays active")
			continue
		}

		r.logger.WithFields(logrus.Fields{
			"old_model_id": model.ID,
			"new_model_id": newID,
		}).Info("model retrained")
	}
}
