// Package intent classifies a user utterance into one of the assistant's
// fixed intent labels using a fast local model.
package intent

import "strings"

// Intent is a classified utterance purpose.
type Intent string

const (
	BookRecommendation Intent = "book_recommendation"
	TopBooksGenre      Intent = "top_books_genre"
	TopBooksAuthor     Intent = "top_books_author"
	AddBook            Intent = "add_book"
	ChatHistoryQuery   Intent = "chat_history_query"
	Greet              Intent = "greet"
	Unknown            Intent = "unknown"
)

// FromLabel maps a classifier label onto the intent enumeration. Any label
// outside the fixed set maps to Unknown, so an out-of-set model response can
// never reach a handler.
func FromLabel(label string) Intent {
	switch Intent(label) {
	case BookRecommendation, TopBooksGenre, TopBooksAuthor, AddBook, ChatHistoryQuery, Greet, Unknown:
		return Intent(label)
	default:
		return Unknown
	}
}

// ParseLabel normalizes a raw model response into a label: lowercased, first
// whitespace-delimited token, surrounding quotes stripped. The result is
// forwarded as-is; mapping onto the enum is the caller's concern.
func ParseLabel(raw string) string {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], `"'`)
}
