package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/bookwise/internal/auth"
	"github.com/kalambet/bookwise/internal/storage"
)

type bookPayload struct {
	Title         string  `json:"title"`
	AuthorID      int64   `json:"author_id"`
	Genre         string  `json:"genre"`
	Description   string  `json:"description"`
	AverageRating float64 `json:"average_rating"`
	PublishedYear int     `json:"published_year"`
	Cover         string  `json:"cover,omitempty"`
}

type bookResponse struct {
	ID int64 `json:"id"`
	bookPayload
	AuthorName string `json:"author_name"`
}

func toBookResponse(b storage.Book) bookResponse {
	return bookResponse{
		ID: b.ID,
		bookPayload: bookPayload{
			Title:         b.Title,
			AuthorID:      b.AuthorID,
			Genre:         b.Genre,
			Description:   b.Description,
			AverageRating: b.AverageRating,
			PublishedYear: b.PublishedYear,
			Cover:         b.Cover,
		},
		AuthorName: b.AuthorName,
	}
}

func toBookResponses(books []storage.Book) []bookResponse {
	out := make([]bookResponse, len(books))
	for i, b := range books {
		out[i] = toBookResponse(b)
	}
	return out
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// handleListBooks serves plain listing plus two query variants: ?title=
// substring search and ?sort=rating|year ordering.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	q := r.URL.Query()

	var (
		books []storage.Book
		err   error
	)
	switch {
	case q.Get("title") != "":
		books, err = s.store.SearchBooksByTitle(r.Context(), q.Get("title"), page, pageSize)
	case q.Get("sort") != "":
		sort := q.Get("sort")
		if sort != "rating" && sort != "year" {
			httpError(w, http.StatusBadRequest, "unsupported sort %q, use rating or year", sort)
			return
		}
		books, err = s.store.ListBooksSorted(r.Context(), sort, q.Get("order"), page, pageSize)
	default:
		books, err = s.store.ListBooks(r.Context(), page, pageSize)
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing books: %v", err)
		return
	}
	respondJSON(w, http.StatusOK, toBookResponses(books))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := s.store.GetBook(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "book not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading book: %v", err)
		return
	}
	respondJSON(w, http.StatusOK, toBookResponse(book))
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var payload bookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if payload.Title == "" || payload.AuthorID == 0 {
		httpError(w, http.StatusBadRequest, "title and author_id are required")
		return
	}

	book, err := s.store.InsertBook(r.Context(), storage.Book{
		Title:         payload.Title,
		AuthorID:      payload.AuthorID,
		Genre:         payload.Genre,
		Description:   payload.Description,
		AverageRating: payload.AverageRating,
		PublishedYear: payload.PublishedYear,
		Cover:         payload.Cover,
	})
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusBadRequest, "author %d does not exist", payload.AuthorID)
		return
	}
	if errors.Is(err, storage.ErrAlreadyExists) {
		httpError(w, http.StatusConflict, "book already exists")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "creating book: %v", err)
		return
	}

	s.logActivity(r, "created book '"+book.Title+"'")
	respondJSON(w, http.StatusCreated, toBookResponse(book))
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	var payload bookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	err = s.store.UpdateBook(r.Context(), storage.Book{
		ID:            id,
		Title:         payload.Title,
		AuthorID:      payload.AuthorID,
		Genre:         payload.Genre,
		Description:   payload.Description,
		AverageRating: payload.AverageRating,
		PublishedYear: payload.PublishedYear,
		Cover:         payload.Cover,
	})
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "book not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "updating book: %v", err)
		return
	}

	book, err := s.store.GetBook(r.Context(), id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading book: %v", err)
		return
	}
	s.logActivity(r, "updated book '"+book.Title+"'")
	respondJSON(w, http.StatusOK, toBookResponse(book))
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	err = s.store.DeleteBook(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "book not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "deleting book: %v", err)
		return
	}
	s.logActivity(r, "deleted book "+strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLikeBook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	u, _ := auth.FromContext(r.Context())

	if _, err := s.store.GetBook(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "book not found")
		return
	} else if err != nil {
		httpError(w, http.StatusInternalServerError, "loading book: %v", err)
		return
	}

	// Liking twice is idempotent.
	err = s.store.LikeBook(r.Context(), u.Username, id)
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		httpError(w, http.StatusInternalServerError, "liking book: %v", err)
		return
	}
	if err == nil {
		s.logActivity(r, "liked book "+strconv.FormatInt(id, 10))
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "liked"})
}

func (s *Server) handleUnlikeBook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	u, _ := auth.FromContext(r.Context())

	err = s.store.UnlikeBook(r.Context(), u.Username, id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "book not liked")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "unliking book: %v", err)
		return
	}
	s.logActivity(r, "unliked book "+strconv.FormatInt(id, 10))
	respondJSON(w, http.StatusOK, map[string]string{"status": "unliked"})
}

// logActivity records an authenticated mutation; failures only warn.
func (s *Server) logActivity(r *http.Request, activity string) {
	u, ok := auth.FromContext(r.Context())
	if !ok {
		return
	}
	if err := s.store.LogActivity(r.Context(), u.Username, activity); err != nil {
		s.logger.Warn("logging activity", "user", u.Username, "error", err)
	}
}
