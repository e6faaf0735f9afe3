package main

// setupRoutes sets up the HTTP routes with API versioning
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.errorRecoveryMiddleware)

	// Health check (no version)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.versionMiddleware("v1"))

	// Training runs in the background; the endpoint returns a job id
	v1.HandleFunc("/models/train", s.handleTrainModel).Methods("POST")
	v1.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")

	// Prediction and model management
	v1.HandleFunc("/models", s.handleListModels).Methods("GET")
	v1.HandleFunc("/models/{id}", s.handleGetModel).Methods("GET")
	v1.HandleFunc("/models/{id}/predict", s.handlePredict).Methods("POST")
	v1.HandleFunc("/models/{id}/activate", s.handleActivateModel).Methods("POST")
}
