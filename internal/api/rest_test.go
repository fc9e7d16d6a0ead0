package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/kalambet/bookwise/internal/auth"
	"github.com/kalambet/bookwise/internal/storage"
)

func registerUser(t *testing.T, store *storage.Store, tokens *auth.Tokens, username, password, role string) {
	t.Helper()
	err := store.CreateUser(context.Background(), storage.User{
		Username:     username,
		PasswordHash: tokens.HashPassword(password),
		Role:         role,
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
}

func login(t *testing.T, router http.Handler, username, password string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing login response: %v", err)
	}
	return resp["access_token"]
}

func doJSON(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubAssistant{})

	rec := doJSON(router, http.MethodPost, "/users/register", "", `{"username": "alice", "password": "secret"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}

	token := login(t, router, "alice", "secret")
	if token == "" {
		t.Fatal("empty access token")
	}

	rec = doJSON(router, http.MethodGet, "/users/me", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"alice"`) {
		t.Fatalf("me body = %s", rec.Body.String())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubAssistant{})

	body := `{"username": "alice", "password": "secret"}`
	if rec := doJSON(router, http.MethodPost, "/users/register", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}
	if rec := doJSON(router, http.MethodPost, "/users/register", "", body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubAssistant{})

	rec := doJSON(router, http.MethodPost, "/users/register", "", `{"username": "eve", "password": "x", "role": "admin"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, store, tokens := newTestRouter(t, &stubAssistant{})
	registerUser(t, store, tokens, "alice", "secret", "user")

	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminGateOnMutations(t *testing.T) {
	router, store, tokens := newTestRouter(t, &stubAssistant{})
	registerUser(t, store, tokens, "alice", "secret", "user")
	token := login(t, router, "alice", "secret")

	// No token at all.
	if rec := doJSON(router, http.MethodPost, "/authors/", "", `{"name": "X"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create status = %d, want 401", rec.Code)
	}
	// Authenticated but not admin.
	if rec := doJSON(router, http.MethodPost, "/authors/", token, `{"name": "X"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("user create status = %d, want 403", rec.Code)
	}
}

func TestAuthorAndBookCRUD(t *testing.T) {
	router, store, tokens := newTestRouter(t, &stubAssistant{})
	registerUser(t, store, tokens, "root", "secret", "admin")
	token := login(t, router, "root", "secret")

	rec := doJSON(router, http.MethodPost, "/authors/", token, `{"name": "Frank Herbert", "biography": "American writer."}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create author status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var author authorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &author); err != nil {
		t.Fatalf("parsing author: %v", err)
	}

	rec = doJSON(router, http.MethodPost, "/books/", token,
		`{"title": "Dune", "author_id": `+jsonInt(author.ID)+`, "genre": "Science Fiction", "average_rating": 4.7, "published_year": 1965}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create book status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var book bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &book); err != nil {
		t.Fatalf("parsing book: %v", err)
	}
	if book.AuthorName != "Frank Herbert" {
		t.Fatalf("author_name = %q", book.AuthorName)
	}

	// Public read endpoints.
	rec = doJSON(router, http.MethodGet, "/books/?title=dune", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Dune"`) {
		t.Fatalf("search status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(router, http.MethodGet, "/books/?sort=rating", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sorted status = %d", rec.Code)
	}
	rec = doJSON(router, http.MethodGet, "/books/?sort=title", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad sort status = %d, want 400", rec.Code)
	}

	// Delete, then verify 404.
	rec = doJSON(router, http.MethodDelete, "/books/"+jsonInt(book.ID), token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(router, http.MethodGet, "/books/"+jsonInt(book.ID), "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestLikesAndRecommendations(t *testing.T) {
	router, store, tokens := newTestRouter(t, &stubAssistant{})
	registerUser(t, store, tokens, "alice", "secret", "user")
	token := login(t, router, "alice", "secret")

	ctx := context.Background()
	author, err := store.CreateAuthor(ctx, "Frank Herbert", "")
	if err != nil {
		t.Fatalf("seeding author: %v", err)
	}
	book, err := store.InsertBook(ctx, storage.Book{Title: "Dune", AuthorID: author.ID, Genre: "Science Fiction", AverageRating: 4.7})
	if err != nil {
		t.Fatalf("seeding book: %v", err)
	}

	if rec := doJSON(router, http.MethodPost, "/books/"+jsonInt(book.ID)+"/like", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("like status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// Repeated like is idempotent.
	if rec := doJSON(router, http.MethodPost, "/books/"+jsonInt(book.ID)+"/like", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("second like status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec := doJSON(router, http.MethodGet, "/users/me/likes", token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Dune"`) {
		t.Fatalf("likes body = %s", rec.Body.String())
	}
	if n := strings.Count(rec.Body.String(), `"Dune"`); n != 1 {
		t.Errorf("liked list contains %d entries for the book, want 1", n)
	}

	if rec := doJSON(router, http.MethodPost, "/users/me/preferences", token, `{"type": "genre", "value": "Science Fiction"}`); rec.Code != http.StatusCreated {
		t.Fatalf("preference status = %d", rec.Code)
	}
	rec = doJSON(router, http.MethodGet, "/users/me/recommendations", token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Dune"`) {
		t.Fatalf("recommendations body = %s", rec.Body.String())
	}

	// Mutations show up in the activity log.
	rec = doJSON(router, http.MethodGet, "/users/me/activities", token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "liked book") {
		t.Fatalf("activities body = %s", rec.Body.String())
	}
}

func jsonInt(id int64) string {
	return strconv.FormatInt(id, 10)
}
