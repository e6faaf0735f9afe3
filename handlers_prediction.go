package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/materio/materio-go/pkg/features"
	"github.com/materio/materio-go/pkg/models"
	"github.com/materio/materio-go/pkg/prediction"
	"github.com/materio/materio-go/pkg/registry"
)

// TrainModelRequest asks for a new model for one material type / target
// property pair
type TrainModelRequest struct {
	MaterialType   string `json:"material_type"`
	TargetProperty string `json:"target_property"`
	SampleSize     int    `json:"sample_size,omitempty"`
	Epochs         int    `json:"epochs,omitempty"`
	BatchSize      int    `json:"batch_size,omitempty"`
	RandomSeed     int64  `json:"random_seed,omitempty"`
	Priority       int    `json:"priority,omitempty"`
}

// PredictRequest carries the known properties of a material
type PredictRequest struct {
	Properties map[string]string `json:"properties"`
}

// PredictResponse is the ranked prediction list for one request
type PredictResponse struct {
	ModelID     string                    `json:"model_id"`
	Predictions []models.PredictionResult `json:"predictions"`
}

// handleTrainModel enqueues a background training task and returns its job id
func (s *Server) handleTrainModel(w http.ResponseWriter, r *http.Request) {
	var req TrainModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid request body: "+err.Error())
		return
	}

	opts := models.DefaultTrainOptions()
	if req.SampleSize > 0 {
		opts.SampleSize = req.SampleSize
	} else if s.config.DefaultSampleSize > 0 {
		opts.SampleSize = s.config.DefaultSampleSize
	}
	if req.Epochs > 0 {
		opts.Epochs = req.Epochs
	}
	if req.BatchSize > 0 {
		opts.BatchSize = req.BatchSize
	}
	opts.RandomSeed = req.RandomSeed

	task := &models.TrainingTask{
		ID:             uuid.New().String(),
		MaterialType:   req.MaterialType,
		TargetProperty: req.TargetProperty,
		Options:        opts,
		Priority:       req.Priority,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.queue.Enqueue(task); err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}

	writeJSONResponse(w, http.StatusAccepted, map[string]any{
		"job_id": task.ID,
		"status": task.Status,
	})
}

// handleGetJob reports the status of a training task
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	task, err := s.queue.Get(taskID)
	if err != nil {
		writeNotFoundResponse(w, "job not found: "+taskID)
		return
	}
	writeJSONResponse(w, http.StatusOK, task)
}

// handlePredict runs a synchronous prediction against one model
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	modelID := mux.Vars(r)["id"]

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid request body: "+err.Error())
		return
	}
	if len(req.Properties) == 0 {
		writeBadRequestResponse(w, "properties are required")
		return
	}

	results, err := s.service.PredictProperty(r.Context(), modelID, req.Properties)
	switch {
	case errors.Is(err, prediction.ErrModelNotFound):
		writeNotFoundResponse(w, "model not found: "+modelID)
		return
	case errors.Is(err, features.ErrInvalidParameter):
		writeBadRequestResponse(w, err.Error())
		return
	case err != nil:
		s.logger.WithError(err).WithField("model_id", modelID).Error("prediction failed")
		writeInternalServerErrorResponse(w, "prediction failed")
		return
	}

	writeJSONResponse(w, http.StatusOK, PredictResponse{ModelID: modelID, Predictions: results})
}

// handleListModels returns every registered model
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	var (
		list []*models.RegistryModel
		err  error
	)
	if r.URL.Query().Get("active") == "true" {
		list, err = s.registry.ListActive()
	} else {
		list, err = s.registry.List()
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to list models")
		writeInternalServerErrorResponse(w, "failed to list models")
		return
	}
	if list == nil {
		list = []*models.RegistryModel{}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"models": list})
}

// handleGetModel returns one registry entry
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	model, err := s.registry.Get(id)
	if errors.Is(err, registry.ErrNotFound) {
		writeNotFoundResponse(w, "model not found: "+id)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to get model")
		writeInternalServerErrorResponse(w, "failed to get model")
		return
	}
	writeJSONResponse(w, http.StatusOK, model)
}

// handleActivateModel flips serving for the model's material type and target
// property to this version
func (s *Server) handleActivateModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.registry.SetActive(id)
	if errors.Is(err, registry.ErrNotFound) {
		writeNotFoundResponse(w, "model not found: "+id)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to activate model")
		writeInternalServerErrorResponse(w, "failed to activate model")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"message":  "model activated",
		"model_id": id,
	})
}

// handleHealth reports service liveness
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"version":      materioVersion,
		"queue_length": s.queue.Length(),
	})
}
