package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogger, s.recoverer, s.cors)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/assessments/{type}").Subrouter()
	api.Use(s.requireUser)

	api.HandleFunc("/questions", s.handleQuestions).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/generate-questions", s.handleGenerate).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/store-answers", s.handleStoreAnswers).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/result", s.handleResult).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost, http.MethodOptions)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}
