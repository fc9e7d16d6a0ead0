package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/bookwise/internal/agent"
)

// Assistant is the conversational core behind the chat endpoints.
type Assistant interface {
	Respond(ctx context.Context, sessionID, utterance string) (string, error)
	RespondStream(ctx context.Context, sessionID, utterance string, onChunk func(chunk string) error) (string, error)
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return chatRequest{}, false
	}
	if strings.TrimSpace(req.Query) == "" {
		httpError(w, http.StatusBadRequest, "query is required")
		return chatRequest{}, false
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	return req, true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	// The agent converts its own failures into a user-facing notice, so the
	// reply is always presentable; the error only feeds the log.
	reply, err := s.agent.Respond(r.Context(), req.SessionID, req.Query)
	if err != nil {
		s.logger.Error("chat turn degraded", "session", req.SessionID, "error", err)
	}

	respondJSON(w, http.StatusOK, chatResponse{Response: reply, SessionID: req.SessionID})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	_, err := s.agent.RespondStream(r.Context(), req.SessionID, req.Query, func(chunk string) error {
		writeSSEData(w, chunk)
		flusher.Flush()
		return r.Context().Err()
	})
	if err != nil {
		if agent.IsClientAbort(err) || r.Context().Err() != nil {
			return
		}
		s.logger.Error("chat stream degraded", "session", req.SessionID, "error", err)
		fmt.Fprint(w, "event: error\n")
		writeSSEData(w, "something went wrong while handling your request")
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// writeSSEData writes one SSE event payload, splitting embedded newlines into
// multiple data lines as the protocol requires.
func writeSSEData(w http.ResponseWriter, chunk string) {
	for _, line := range strings.Split(chunk, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
