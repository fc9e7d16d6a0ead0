package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/storage"
)

// MCPRetriever abstracts semantic search for the MCP layer.
type MCPRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Passage, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Retriever MCPRetriever
	Vectors   retrieval.VectorStore
}

// NewMCPServer creates an MCP server exposing the catalog to local agents.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"bookwise",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("bookwise — local bookstore catalog with semantic search and curated top lists."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_books",
			mcp.WithDescription("Semantically search the catalog and return passages from matching book descriptions."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 4)")),
		),
		mcpSearchBooks(deps),
	)

	s.AddTool(
		mcp.NewTool("top_books",
			mcp.WithDescription("Return the highest rated books in a genre or by an author. Exactly one of genre or author must be given."),
			mcp.WithString("genre", mcp.Description("Genre to rank, substring match")),
			mcp.WithString("author", mcp.Description("Author name, substring match")),
			mcp.WithNumber("limit", mcp.Description("Number of books to return (default 5)")),
		),
		mcpTopBooks(deps),
	)

	s.AddTool(
		mcp.NewTool("add_book",
			mcp.WithDescription("Add a book to the catalog. The author must already exist."),
			mcp.WithString("title", mcp.Description("Book title"), mcp.Required()),
			mcp.WithString("author", mcp.Description("Author name, exact match"), mcp.Required()),
			mcp.WithString("genre", mcp.Description("Genre")),
			mcp.WithString("description", mcp.Description("Short description")),
			mcp.WithNumber("rating", mcp.Description("Average rating, 0-5")),
			mcp.WithNumber("year", mcp.Description("Publication year")),
		),
		mcpAddBook(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"bookstore://stats",
			"Catalog Statistics",
			mcp.WithResourceDescription("Book, author, user and index counts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpSearchBooks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 4)
		if limit <= 0 {
			limit = 4
		}
		if limit > 20 {
			limit = 20
		}

		passages, err := deps.Retriever.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(passages) == 0 {
			return mcpText("[]"), nil
		}

		type passageResult struct {
			BookID int64   `json:"book_id"`
			Text   string  `json:"text"`
			Score  float32 `json:"score"`
		}
		results := make([]passageResult, len(passages))
		for i, p := range passages {
			results[i] = passageResult{BookID: p.BookID, Text: p.Text, Score: p.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpTopBooks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		genre := req.GetString("genre", "")
		authorName := req.GetString("author", "")
		if (genre == "") == (authorName == "") {
			return mcpError("exactly one of genre or author is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		var (
			books []storage.Book
			err   error
		)
		if genre != "" {
			books, err = deps.Store.FindBooksByGenre(ctx, genre, limit)
		} else {
			var author storage.Author
			author, err = deps.Store.FindAuthorByName(ctx, authorName)
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError(fmt.Sprintf("no author matching %q", authorName)), nil
			}
			if err == nil {
				books, err = deps.Store.FindBooksByAuthor(ctx, author.ID, limit)
			}
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		type bookResult struct {
			ID     int64   `json:"id"`
			Title  string  `json:"title"`
			Author string  `json:"author"`
			Genre  string  `json:"genre"`
			Rating float64 `json:"rating"`
			Year   int     `json:"year"`
		}
		results := make([]bookResult, len(books))
		for i, b := range books {
			results[i] = bookResult{
				ID:     b.ID,
				Title:  b.Title,
				Author: b.AuthorName,
				Genre:  b.Genre,
				Rating: b.AverageRating,
				Year:   b.PublishedYear,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddBook(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		authorName, err := req.RequireString("author")
		if err != nil {
			return mcpError("author is required"), nil
		}

		author, err := deps.Store.GetAuthorByExactName(ctx, authorName)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("author %q does not exist, add the author first", authorName)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("author lookup failed: %v", err)), nil
		}

		book, err := deps.Store.InsertBook(ctx, storage.Book{
			Title:         title,
			AuthorID:      author.ID,
			Genre:         req.GetString("genre", ""),
			Description:   req.GetString("description", ""),
			AverageRating: req.GetFloat("rating", 0),
			PublishedYear: req.GetInt("year", 0),
		})
		if errors.Is(err, storage.ErrAlreadyExists) {
			return mcpError(fmt.Sprintf("book %q by %s is already in the catalog", title, author.Name)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add book: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Added book %d: %q by %s", book.ID, book.Title, author.Name)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Store.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load stats: %w", err)
		}
		indexed, err := deps.Vectors.Count()
		if err != nil {
			return nil, fmt.Errorf("failed to count vectors: %w", err)
		}

		b, err := json.Marshal(map[string]int{
			"books":            stats.Books,
			"authors":          stats.Authors,
			"users":            stats.Users,
			"indexed_passages": indexed,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
