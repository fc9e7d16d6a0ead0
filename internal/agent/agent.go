// Package agent is the conversational core: it classifies each utterance,
// routes it to the matching handler, and keeps one alternating transcript per
// session.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/bookwise/internal/intent"
	"github.com/kalambet/bookwise/internal/ollama"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/session"
	"github.com/kalambet/bookwise/internal/storage"
)

const (
	// defaultSession is used when the caller does not supply a session id.
	defaultSession = "default_session"

	refusalMessage = "I'm sorry, I can only answer questions that relate to book recommendations, " +
		"finding books that relate to a description, top books in a specific genre, " +
		"or adding a book to the database."

	greetingMessage = "Hello! How can I assist you today?"

	degradedMessage = "Sorry, something went wrong while handling your request. Please try again."
)

// ModelClient is the slice of the chat API the agent needs.
type ModelClient interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (string, error)
	ChatStream(ctx context.Context, model string, messages []ollama.Message, onToken func(string) error) (string, error)
}

// IntentClassifier maps an utterance to an intent label.
type IntentClassifier interface {
	Classify(ctx context.Context, utterance string) (string, error)
}

// PassageRetriever finds catalog passages relevant to a query.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Passage, error)
}

// Bookstore is the catalog surface the deterministic handlers touch.
type Bookstore interface {
	FindBooksByGenre(ctx context.Context, genre string, limit int) ([]storage.Book, error)
	FindBooksByAuthor(ctx context.Context, authorID int64, limit int) ([]storage.Book, error)
	FindAuthorByName(ctx context.Context, name string) (storage.Author, error)
	GetAuthorByExactName(ctx context.Context, name string) (storage.Author, error)
	InsertBook(ctx context.Context, book storage.Book) (storage.Book, error)
}

// State is the per-turn snapshot the handlers operate on.
type State struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
	Intent    intent.Intent  `json:"intent"`
}

// Agent routes each utterance through classification and the matching
// handler, maintaining one transcript per session.
type Agent struct {
	sessions   session.Store
	classifier IntentClassifier
	model      ModelClient
	chatModel  string
	retriever  PassageRetriever
	store      Bookstore
	topK       int
	timeout    time.Duration
	log        *slog.Logger
}

// Options carries the wiring for New.
type Options struct {
	Sessions   session.Store
	Classifier IntentClassifier
	Model      ModelClient
	ChatModel  string
	Retriever  PassageRetriever
	Store      Bookstore
	TopK       int
	Timeout    time.Duration
	Logger     *slog.Logger
}

func New(opts Options) *Agent {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{
		sessions:   opts.Sessions,
		classifier: opts.Classifier,
		model:      opts.Model,
		chatModel:  opts.ChatModel,
		retriever:  opts.Retriever,
		store:      opts.Store,
		topK:       opts.TopK,
		timeout:    opts.Timeout,
		log:        opts.Logger,
	}
}

// Respond handles one utterance and returns the assistant's reply. Dependency
// failures never surface raw: the reply degrades to a generic apology and the
// returned error carries the cause for the caller's logs.
func (a *Agent) Respond(ctx context.Context, sessionID, utterance string) (string, error) {
	return a.run(ctx, sessionID, utterance, nil)
}

// RespondStream is Respond with incremental delivery. Model-backed replies
// stream token by token; deterministic replies arrive as a single chunk. The
// assistant turn is committed to the transcript only after the full reply has
// been produced, so an abandoned stream leaves no partial turn behind.
func (a *Agent) RespondStream(ctx context.Context, sessionID, utterance string, onChunk func(chunk string) error) (string, error) {
	return a.run(ctx, sessionID, utterance, onChunk)
}

func (a *Agent) run(ctx context.Context, sessionID, utterance string, onChunk func(string) error) (string, error) {
	if sessionID == "" {
		sessionID = defaultSession
	}

	unlock := a.sessions.Lock(sessionID)
	defer unlock()

	if err := a.sessions.Append(ctx, sessionID, session.Human(utterance)); err != nil {
		return degradedMessage, fmt.Errorf("append human turn: %w", err)
	}

	st := State{SessionID: sessionID}

	label, err := a.classifier.Classify(ctx, utterance)
	if err != nil {
		return a.degrade(ctx, sessionID, fmt.Errorf("classify: %w", err))
	}
	st.Intent = intent.FromLabel(label)

	if err := a.sessions.SetLastIntent(ctx, sessionID, string(st.Intent)); err != nil {
		a.log.Warn("record intent", "session", sessionID, "error", err)
	}
	a.log.Debug("classified", "session", sessionID, "intent", st.Intent)

	st.Turns, err = a.sessions.Transcript(ctx, sessionID)
	if err != nil {
		return a.degrade(ctx, sessionID, fmt.Errorf("load transcript: %w", err))
	}

	reply, streamed, err := a.dispatch(ctx, st, utterance, onChunk)
	if err != nil {
		if ctx.Err() != nil || IsClientAbort(err) {
			// Consumer went away: discard the turn instead of degrading.
			return "", err
		}
		return a.degrade(ctx, sessionID, err)
	}

	if err := a.sessions.Append(ctx, sessionID, session.Assistant(reply)); err != nil {
		return degradedMessage, fmt.Errorf("append assistant turn: %w", err)
	}
	if !streamed && onChunk != nil {
		if err := onChunk(reply); err != nil {
			return reply, &chunkAbortError{err: err}
		}
	}
	return reply, nil
}

// dispatch routes by intent. streamed reports whether the reply already went
// out through onChunk.
func (a *Agent) dispatch(ctx context.Context, st State, utterance string, onChunk func(string) error) (reply string, streamed bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	switch st.Intent {
	case intent.Greet:
		return greetingMessage, false, nil
	case intent.TopBooksGenre:
		reply, err = a.handleTopGenre(ctx, utterance)
		return reply, false, err
	case intent.TopBooksAuthor:
		reply, err = a.handleTopAuthor(ctx, utterance)
		return reply, false, err
	case intent.AddBook:
		reply, err = a.handleAddBook(ctx, utterance)
		return reply, false, err
	case intent.BookRecommendation:
		reply, err = a.handleRecommend(ctx, utterance, onChunk)
		return reply, onChunk != nil, err
	case intent.ChatHistoryQuery:
		reply, err = a.handleHistory(ctx, st.Turns, onChunk)
		return reply, onChunk != nil, err
	default:
		return refusalMessage, false, nil
	}
}

// degrade commits the apology as the assistant turn so the transcript stays
// alternating, then reports the cause.
func (a *Agent) degrade(ctx context.Context, sessionID string, cause error) (string, error) {
	a.log.Error("turn failed", "session", sessionID, "error", cause)
	if err := a.sessions.Append(ctx, sessionID, session.Assistant(degradedMessage)); err != nil {
		a.log.Error("append degraded turn", "session", sessionID, "error", err)
	}
	return degradedMessage, cause
}
