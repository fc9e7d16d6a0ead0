package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/bookwise/internal/ollama"
	"github.com/kalambet/bookwise/internal/session"
	"github.com/kalambet/bookwise/internal/storage"
)

const (
	topGenreFormatMessage = "Please specify the number of top books and the genre, " +
		"for example: top 5 books in fantasy."
	topAuthorFormatMessage = "Please specify the number of top books and the author, " +
		"for example: top 3 books by Ursula K. Le Guin."
	addBookFormatMessage = "Please provide all the required information: title, author, genre, " +
		"description, rating, and published year. The correct format is: " +
		`add book titled "BOOK_TITLE" by AUTHOR_NAME, genre: GENRE, description: DESCRIPTION, ` +
		"rating: RATING, published in YEAR."
)

// chunkAbortError marks an error raised by the streaming consumer, as opposed
// to a model or storage failure. Aborts discard the turn; failures degrade it.
type chunkAbortError struct{ err error }

func (e *chunkAbortError) Error() string { return e.err.Error() }
func (e *chunkAbortError) Unwrap() error { return e.err }

// IsClientAbort reports whether a streaming turn failed because the consumer
// stopped accepting chunks rather than because a dependency broke.
func IsClientAbort(err error) bool {
	var abort *chunkAbortError
	return errors.As(err, &abort)
}

func (a *Agent) handleRecommend(ctx context.Context, utterance string, onChunk func(string) error) (string, error) {
	passages, err := a.retriever.Retrieve(ctx, utterance, a.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve passages: %w", err)
	}
	return a.generate(ctx, buildRecommendPrompt(utterance, passages), onChunk)
}

func (a *Agent) handleHistory(ctx context.Context, turns []session.Turn, onChunk func(string) error) (string, error) {
	return a.generate(ctx, buildHistoryPrompt(turns), onChunk)
}

func (a *Agent) generate(ctx context.Context, messages []ollama.Message, onChunk func(string) error) (string, error) {
	if onChunk == nil {
		reply, err := a.model.Chat(ctx, a.chatModel, messages)
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		return reply, nil
	}

	reply, err := a.model.ChatStream(ctx, a.chatModel, messages, func(token string) error {
		if err := onChunk(token); err != nil {
			return &chunkAbortError{err: err}
		}
		return nil
	})
	if err != nil {
		if IsClientAbort(err) {
			return "", err
		}
		return "", fmt.Errorf("chat stream: %w", err)
	}
	return reply, nil
}

func (a *Agent) handleTopGenre(ctx context.Context, utterance string) (string, error) {
	q, ok := parseTopGenre(utterance)
	if !ok {
		return topGenreFormatMessage, nil
	}

	books, err := a.store.FindBooksByGenre(ctx, q.Subject, q.K)
	if err != nil {
		return "", fmt.Errorf("find books by genre: %w", err)
	}
	if len(books) == 0 {
		return fmt.Sprintf("No books found in the genre '%s'.", q.Subject), nil
	}
	return formatBookList(books), nil
}

func (a *Agent) handleTopAuthor(ctx context.Context, utterance string) (string, error) {
	q, ok := parseTopAuthor(utterance)
	if !ok {
		return topAuthorFormatMessage, nil
	}

	author, err := a.store.FindAuthorByName(ctx, q.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Sprintf("No author matching '%s' found in the database.", q.Subject), nil
	}
	if err != nil {
		return "", fmt.Errorf("find author: %w", err)
	}

	books, err := a.store.FindBooksByAuthor(ctx, author.ID, q.K)
	if err != nil {
		return "", fmt.Errorf("find books by author: %w", err)
	}
	if len(books) == 0 {
		return fmt.Sprintf("No books by '%s' found in the database.", author.Name), nil
	}
	return formatBookList(books), nil
}

func (a *Agent) handleAddBook(ctx context.Context, utterance string) (string, error) {
	cmd, ok := parseAddBook(utterance)
	if !ok {
		return addBookFormatMessage, nil
	}

	author, err := a.store.GetAuthorByExactName(ctx, cmd.Author)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Sprintf("Author '%s' does not exist in the database. Please add the author first.", cmd.Author), nil
	}
	if err != nil {
		return "", fmt.Errorf("look up author: %w", err)
	}

	_, err = a.store.InsertBook(ctx, storage.Book{
		Title:         cmd.Title,
		AuthorID:      author.ID,
		Genre:         cmd.Genre,
		Description:   cmd.Description,
		AverageRating: cmd.Rating,
		PublishedYear: cmd.Year,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Sprintf("Book '%s' by %s is already in the database.", cmd.Title, author.Name), nil
	}
	if err != nil {
		return "", fmt.Errorf("insert book: %w", err)
	}
	return fmt.Sprintf("Book '%s' by %s added successfully.", cmd.Title, author.Name), nil
}

// formatBookList renders one numbered line per book:
//
//	1. "The Dispossessed" by Ursula K. Le Guin (Rating: 4.5)
func formatBookList(books []storage.Book) string {
	lines := make([]string, 0, len(books))
	for i, b := range books {
		rating := strconv.FormatFloat(b.AverageRating, 'g', -1, 64)
		lines = append(lines, fmt.Sprintf("%d. %q by %s (Rating: %s)", i+1, b.Title, b.AuthorName, rating))
	}
	return strings.Join(lines, "\n")
}
