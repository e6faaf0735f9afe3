package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/materio/materio-go/pkg/cache"
	"github.com/materio/materio-go/pkg/config"
	"github.com/materio/materio-go/pkg/graph"
	"github.com/materio/materio-go/pkg/modelstore"
	"github.com/materio/materio-go/pkg/prediction"
	"github.com/materio/materio-go/pkg/queue"
	"github.com/materio/materio-go/pkg/registry"
)

// Server wires the prediction pipeline behind an HTTP API
type Server struct {
	router    *mux.Router
	config    *config.Config
	logger    *logrus.Logger
	service   *prediction.Service
	queue     *queue.Queue
	worker    *queue.Worker
	registry  registry.Store
	retrainer *prediction.Retrainer
	cache     *cache.PredictionCache

	workerCancel context.CancelFunc
	workerDone   chan struct{}
}

// NewServer assembles the service from configuration. The Redis cache and the
// retrain schedule are optional; everything else is required.
func NewServer(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	reg, err := registry.NewSQLiteStore(cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open model registry: %w", err)
	}

	artifacts, err := modelstore.NewFileStore(cfg.ModelDir)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}

	client := graph.NewHTTPClient(cfg.GraphServiceURL)
	service := prediction.NewService(client, artifacts, reg, logger)

	s := &Server{
		router:   mux.NewRouter(),
		config:   cfg,
		logger:   logger,
		service:  service,
		queue:    queue.NewQueue(),
		registry: reg,
	}
	s.worker = queue.NewWorker(s.queue, service, time.Second, logger)

	if cfg.RedisURL != "" {
		ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
		predCache, err := cache.New(cfg.RedisURL, ttl, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect prediction cache: %w", err)
		}
		s.cache = predCache
		service.SetCache(predCache)
	}

	if cfg.RetrainSchedule != "" {
		s.retrainer = prediction.NewRetrainer(service, reg, artifacts, cfg.RetrainSchedule, logger)
	}

	s.setupRoutes()
	return s, nil
}

// Start launches the background worker and the optional retrainer. The HTTP
// listener itself is run by the caller.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.workerCancel = cancel
	s.workerDone = make(chan struct{})
	go func() {
		defer close(s.workerDone)
		s.worker.Run(ctx)
	}()

	if s.retrainer != nil {
		if err := s.retrainer.Start(); err != nil {
			cancel()
			return err
		}
	}
	return nil
}

// Shutdown stops background work and closes resources
func (s *Server) Shutdown(ctx context.Context) error {
	if s.retrainer != nil {
		s.retrainer.Stop()
	}

	if s.workerCancel != nil {
		s.workerCancel()
		select {
		case <-s.workerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close prediction cache")
		}
	}
	return s.registry.Close()
}
