package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kalambet/bookwise/internal/auth"
	"github.com/kalambet/bookwise/internal/storage"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		httpError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	// Only "user" accounts are self-service; admins are provisioned out of band.
	if req.Role == "" {
		req.Role = "user"
	}
	if req.Role != "user" {
		httpError(w, http.StatusBadRequest, "unsupported role %q", req.Role)
		return
	}

	err := s.store.CreateUser(r.Context(), storage.User{
		Username:     req.Username,
		PasswordHash: s.tokens.HashPassword(req.Password),
		Role:         req.Role,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		httpError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "creating user: %v", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"username": req.Username, "role": req.Role})
}

// handleLogin accepts form credentials and returns a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form: %v", err)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		httpError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.store.GetUser(r.Context(), username)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !s.tokens.VerifyPassword(password, user.PasswordHash)) {
		httpError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading user: %v", err)
		return
	}

	token, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "issuing token: %v", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"username": u.Username, "role": u.Role})
}

type preferencePayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	prefs, err := s.store.GetPreferences(r.Context(), u.Username)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading preferences: %v", err)
		return
	}
	out := make([]preferencePayload, len(prefs))
	for i, p := range prefs {
		out[i] = preferencePayload{Type: p.Type, Value: p.Value}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddPreference(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	var payload preferencePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if payload.Type == "" || payload.Value == "" {
		httpError(w, http.StatusBadRequest, "type and value are required")
		return
	}

	if err := s.store.AddPreference(r.Context(), u.Username, payload.Type, payload.Value); err != nil {
		httpError(w, http.StatusInternalServerError, "saving preference: %v", err)
		return
	}
	s.logActivity(r, "added preference "+payload.Type+"="+payload.Value)
	respondJSON(w, http.StatusCreated, payload)
}

func (s *Server) handleLikedBooks(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	books, err := s.store.LikedBooks(r.Context(), u.Username)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading liked books: %v", err)
		return
	}
	respondJSON(w, http.StatusOK, toBookResponses(books))
}

// handleRecommendations returns books matching the user's stored genre
// preferences. This is the profile-based variant; the semantic one lives on
// the chat surface.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	books, err := s.store.RecommendedBooks(r.Context(), u.Username)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading recommendations: %v", err)
		return
	}
	respondJSON(w, http.StatusOK, toBookResponses(books))
}

type activityResponse struct {
	Activity  string `json:"activity"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	activities, err := s.store.RecentActivities(r.Context(), u.Username, 50)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading activities: %v", err)
		return
	}
	out := make([]activityResponse, len(activities))
	for i, a := range activities {
		out[i] = activityResponse{Activity: a.Activity, Timestamp: a.Timestamp.UTC().Format(time.RFC3339)}
	}
	respondJSON(w, http.StatusOK, out)
}
