// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/store"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{StatusCode: status, Message: message})
}

// decode reads a JSON body into v. It writes a 400 and returns false on
// malformed input.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// storeError maps a store error to a response. Unexpected errors are logged
// and answered with fallback.
func (s *Server) storeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrImageNotFound):
		writeError(w, http.StatusNotFound, store.ErrImageNotFound.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, store.ErrNotFound.Error())
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"store": "healthy"}
	code := http.StatusOK
	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.Warn("store health check failed", zap.Error(err))
		status["store"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	if s.deps.Agent == nil {
		status["agent"] = "uninitialized"
	} else {
		status["agent"] = "ready"
	}
	writeJSON(w, code, status)
}

// --- records ---

func (s *Server) handleListDinosaurs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := types.Filter{
		Search: strings.TrimSpace(q.Get("search")),
		Period: q.Get("period"),
		Diet:   q.Get("diet"),
	}
	records, err := s.deps.Store.List(r.Context(), f)
	if err != nil {
		s.storeError(w, err, "Failed to fetch dinosaurs")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetDinosaur(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err, "Failed to fetch dinosaur")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreateDinosaur(w http.ResponseWriter, r *http.Request) {
	var info types.DinosaurInfo
	if !decode(w, r, &info) {
		return
	}
	d, err := s.deps.Store.Create(r.Context(), info)
	if err != nil {
		s.storeError(w, err, "Failed to create dinosaur")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleUpdateDinosaur(w http.ResponseWriter, r *http.Request) {
	var patch types.DinosaurPatch
	if !decode(w, r, &patch) {
		return
	}
	d, err := s.deps.Store.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.storeError(w, err, "Failed to update dinosaur")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDinosaur(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err, "Failed to delete dinosaur")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- fossils and images ---

func (s *Server) handleAddFossils(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fossils []types.Fossil `json:"fossils"`
	}
	if !decode(w, r, &body) {
		return
	}
	if len(body.Fossils) == 0 {
		writeError(w, http.StatusBadRequest, "fossils must not be empty")
		return
	}
	saved, err := s.deps.Store.AddFossils(r.Context(), chi.URLParam(r, "id"), body.Fossils)
	if err != nil {
		s.storeError(w, err, "Failed to add fossils")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleAddImages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Images []types.Image `json:"images"`
	}
	if !decode(w, r, &body) {
		return
	}
	if len(body.Images) == 0 {
		writeError(w, http.StatusBadRequest, "images must not be empty")
		return
	}
	if err := s.deps.Store.AddImages(r.Context(), chi.URLParam(r, "id"), body.Images); err != nil {
		s.storeError(w, err, "Failed to add images")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"added": len(body.Images)})
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.deps.Store.ListImages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err, "Failed to fetch dinosaur images")
		return
	}
	writeJSON(w, http.StatusOK, images)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if !decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.deps.Store.DeleteImage(r.Context(), chi.URLParam(r, "id"), body.URL); err != nil {
		s.storeError(w, err, "Failed to delete dinosaur image")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
