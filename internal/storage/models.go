package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when an insert violates a uniqueness constraint.
var ErrAlreadyExists = errors.New("already exists")

type Author struct {
	ID        int64
	Name      string
	Biography string
}

type Book struct {
	ID            int64
	Title         string
	AuthorID      int64
	AuthorName    string // populated on reads via join
	Genre         string
	Description   string
	AverageRating float64
	PublishedYear int
	Cover         string
}

type User struct {
	Username     string
	PasswordHash string
	Role         string
}

type UserPreference struct {
	ID       int64
	Username string
	Type     string
	Value    string
}

type UserActivity struct {
	ID        int64
	Username  string
	Activity  string
	Timestamp time.Time
}
