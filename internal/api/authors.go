package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kalambet/bookwise/internal/storage"
)

type authorPayload struct {
	Name      string `json:"name"`
	Biography string `json:"biography,omitempty"`
}

type authorResponse struct {
	ID int64 `json:"id"`
	authorPayload
}

func toAuthorResponse(a storage.Author) authorResponse {
	return authorResponse{ID: a.ID, authorPayload: authorPayload{Name: a.Name, Biography: a.Biography}}
}

func (s *Server) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	authors, err := s.store.ListAuthors(r.Context(), page, pageSize)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing authors: %v", err)
		return
	}
	out := make([]authorResponse, len(authors))
	for i, a := range authors {
		out[i] = toAuthorResponse(a)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid author id")
		return
	}
	author, err := s.store.GetAuthor(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "author not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading author: %v", err)
		return
	}
	respondJSON(w, http.StatusOK, toAuthorResponse(author))
}

func (s *Server) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	var payload authorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if payload.Name == "" {
		httpError(w, http.StatusBadRequest, "name is required")
		return
	}

	author, err := s.store.CreateAuthor(r.Context(), payload.Name, payload.Biography)
	if errors.Is(err, storage.ErrAlreadyExists) {
		httpError(w, http.StatusConflict, "author already exists")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "creating author: %v", err)
		return
	}
	s.logActivity(r, "created author '"+author.Name+"'")
	respondJSON(w, http.StatusCreated, toAuthorResponse(author))
}

func (s *Server) handleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid author id")
		return
	}
	var payload authorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	err = s.store.UpdateAuthor(r.Context(), storage.Author{ID: id, Name: payload.Name, Biography: payload.Biography})
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "author not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "updating author: %v", err)
		return
	}
	s.logActivity(r, "updated author '"+payload.Name+"'")
	respondJSON(w, http.StatusOK, authorResponse{ID: id, authorPayload: payload})
}

func (s *Server) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid author id")
		return
	}
	err = s.store.DeleteAuthor(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "author not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "deleting author: %v", err)
		return
	}
	s.logActivity(r, "deleted author "+strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusNoContent)
}
