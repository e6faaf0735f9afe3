package queue

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/materio/materio-go/pkg/models"
)

// Trainer runs one training job to completion and returns the new model id
type Trainer interface {
	TrainModel(ctx context.Context, materialType, targetProperty string, opts models.TrainOptions) (string, error)
}

// Worker drains the training queue one task at a time. A single worker keeps
// concurrent training runs from competing for CPU.
type Worker struct {
	queue    *Queue
	trainer  Trainer
	logger   *logrus.Logger
	interval time.Duration
}

// NewWorker creates a worker polling the queue at the given interval
func NewWorker(q *Queue, trainer Trainer, interval time.Duration, logger *logrus.Logger) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Worker{queue: q, trainer: trainer, logger: logger, interval: interval}
}

// Run processes tasks until the context is cancelled. A task already running
// when the context ends is allowed to finish and record its outcome.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("training worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("training worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain runs every queued task before going back to sleep
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := w.queue.Dequeue()
		if err != nil {
			w.logger.WithError(err).Error("failed to dequeue training task")
			return
		}
		if task == nil {
			return
		}
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task *models.TrainingTask) {
	log := w.logger.WithFields(logrus.Fields{
		"task_id":         task.ID,
		"material_type":   task.MaterialType,
		"target_property": task.TargetProperty,
	})

	if err := w.queue.UpdateStatus(task.ID, models.TrainingTaskRunning, "", ""); err != nil {
		log.WithError(err).Error("failed to mark training task running")
		return
	}
	log.Info("training task started")

	modelID, err := w.trainer.TrainModel(ctx, task.MaterialType, task.TargetProperty, task.Options)
	if err != nil {
		log.WithError(err).Error("training task failed")
		if uerr := w.queue.UpdateStatus(task.ID, models.TrainingTaskFailed, "", err.Error()); uerr != nil {
			log.WithError(uerr).Error("failed to record training task failure")
		}
		return
	}

	if err := w.queue.UpdateStatus(task.ID, models.TrainingTaskCompleted, modelID, ""); err != nil {
		log.WithError(err).Error("failed to record training task completion")
		return
	}
	log.WithField("model_id", modelID).Info("training task completed")
}
