package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// The command grammars are deliberately narrow: each is a documented literal
// template, not general language understanding. Utterances that don't match
// get a corrective message, never a guess.
var (
	topGenreRe  = regexp.MustCompile(`(?i)top (\d+) books in (.+)`)
	topAuthorRe = regexp.MustCompile(`(?i)top (\d+) books by (.+)`)
	addBookRe   = regexp.MustCompile(`(?i)add book titled "(.+?)" by (.+?), genre: (.+?), description: (.+?), rating: (\d+(?:\.\d+)?), published in (\d{4})`)
)

// topQuery is a parsed "top <K> books in/by <subject>" request.
type topQuery struct {
	K       int
	Subject string
}

func parseTop(re *regexp.Regexp, utterance string) (topQuery, bool) {
	m := re.FindStringSubmatch(utterance)
	if m == nil {
		return topQuery{}, false
	}
	k, err := strconv.Atoi(m[1])
	if err != nil || k < 1 {
		return topQuery{}, false
	}
	return topQuery{K: k, Subject: strings.TrimSpace(m[2])}, true
}

func parseTopGenre(utterance string) (topQuery, bool) {
	return parseTop(topGenreRe, utterance)
}

func parseTopAuthor(utterance string) (topQuery, bool) {
	return parseTop(topAuthorRe, utterance)
}

// bookCommand is a parsed add-book instruction.
type bookCommand struct {
	Title       string
	Author      string
	Genre       string
	Description string
	Rating      float64
	Year        int
}

// parseAddBook matches the fixed template:
//
//	add book titled "<title>" by <author>, genre: <genre>, description: <description>, rating: <rating>, published in <year>
//
// Keyword matching is case-insensitive; rating is a decimal number and year
// is exactly four digits.
func parseAddBook(utterance string) (bookCommand, bool) {
	m := addBookRe.FindStringSubmatch(utterance)
	if m == nil {
		return bookCommand{}, false
	}

	rating, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return bookCommand{}, false
	}
	year, err := strconv.Atoi(m[6])
	if err != nil {
		return bookCommand{}, false
	}

	return bookCommand{
		Title:       m[1],
		Author:      strings.TrimSpace(m[2]),
		Genre:       strings.TrimSpace(m[3]),
		Description: strings.TrimSpace(m[4]),
		Rating:      rating,
		Year:        year,
	}, true
}
