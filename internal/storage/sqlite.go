package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for books, authors, and users.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "bookwise.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the vector store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// mapConstraintErr converts SQLite uniqueness violations into ErrAlreadyExists.
func mapConstraintErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrAlreadyExists
	}
	return err
}

// --- Authors ---

func (s *Store) CreateAuthor(ctx context.Context, name, biography string) (Author, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO authors (name, biography) VALUES (?, ?)`, name, biography)
	if err != nil {
		return Author{}, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Author{}, err
	}
	return Author{ID: id, Name: name, Biography: biography}, nil
}

func (s *Store) GetAuthor(ctx context.Context, id int64) (Author, error) {
	var a Author
	err := s.db.QueryRowContext(ctx,
		`SELECT author_id, name, biography FROM authors WHERE author_id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Biography)
	if err == sql.ErrNoRows {
		return Author{}, ErrNotFound
	}
	return a, err
}

func (s *Store) ListAuthors(ctx context.Context, page, pageSize int) ([]Author, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT author_id, name, biography FROM authors ORDER BY author_id LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name, &a.Biography); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

func (s *Store) UpdateAuthor(ctx context.Context, a Author) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE authors SET name = ?, biography = ? WHERE author_id = ?`,
		a.Name, a.Biography, a.ID,
	)
	if err != nil {
		return mapConstraintErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM authors WHERE author_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindAuthorByName returns the first author whose name contains the given
// text, case-insensitively.
func (s *Store) FindAuthorByName(ctx context.Context, name string) (Author, error) {
	var a Author
	err := s.db.QueryRowContext(ctx,
		`SELECT author_id, name, biography FROM authors
		 WHERE name LIKE '%' || ? || '%' COLLATE NOCASE
		 ORDER BY author_id LIMIT 1`, name,
	).Scan(&a.ID, &a.Name, &a.Biography)
	if err == sql.ErrNoRows {
		return Author{}, ErrNotFound
	}
	return a, err
}

// GetAuthorByExactName returns the author whose name matches exactly,
// case-insensitively. Used by the add-book flow, which must not match
// partial names.
func (s *Store) GetAuthorByExactName(ctx context.Context, name string) (Author, error) {
	var a Author
	err := s.db.QueryRowContext(ctx,
		`SELECT author_id, name, biography FROM authors
		 WHERE name = ? COLLATE NOCASE LIMIT 1`, strings.TrimSpace(name),
	).Scan(&a.ID, &a.Name, &a.Biography)
	if err == sql.ErrNoRows {
		return Author{}, ErrNotFound
	}
	return a, err
}

// --- Books ---

const bookColumns = `b.book_id, b.title, b.author_id, a.name, b.genre, b.description,
	b.average_rating, b.published_year, b.cover`

func scanBook(row interface{ Scan(...any) error }) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.AuthorID, &b.AuthorName, &b.Genre,
		&b.Description, &b.AverageRating, &b.PublishedYear, &b.Cover)
	return b, err
}

func (s *Store) collectBooks(rows *sql.Rows) ([]Book, error) {
	defer rows.Close()
	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// InsertBook creates a book row. The author must already exist.
func (s *Store) InsertBook(ctx context.Context, b Book) (Book, error) {
	if _, err := s.GetAuthor(ctx, b.AuthorID); err != nil {
		return Book{}, fmt.Errorf("looking up author %d: %w", b.AuthorID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (title, author_id, genre, description, average_rating, published_year, cover)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.AuthorID, b.Genre, b.Description, b.AverageRating, b.PublishedYear, b.Cover,
	)
	if err != nil {
		return Book{}, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Book{}, err
	}
	return s.GetBook(ctx, id)
}

func (s *Store) GetBook(ctx context.Context, id int64) (Book, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		WHERE b.book_id = ?`, id)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return Book{}, ErrNotFound
	}
	return b, err
}

func (s *Store) ListBooks(ctx context.Context, page, pageSize int) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		ORDER BY b.book_id LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	return s.collectBooks(rows)
}

func (s *Store) UpdateBook(ctx context.Context, b Book) error {
	if _, err := s.GetAuthor(ctx, b.AuthorID); err != nil {
		return fmt.Errorf("looking up author %d: %w", b.AuthorID, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET title = ?, author_id = ?, genre = ?, description = ?,
			average_rating = ?, published_year = ?, cover = ?, indexed = 0
		WHERE book_id = ?`,
		b.Title, b.AuthorID, b.Genre, b.Description, b.AverageRating, b.PublishedYear, b.Cover, b.ID,
	)
	if err != nil {
		return mapConstraintErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBook removes a book together with its indexed passages, so the
// vector index never serves content for a book that no longer exists.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_vectors WHERE book_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE book_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// FindBooksByGenre returns up to limit books whose genre contains the given
// text, ordered by descending rating.
func (s *Store) FindBooksByGenre(ctx context.Context, genre string, limit int) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		WHERE b.genre LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY b.average_rating DESC, b.book_id
		LIMIT ?`, genre, limit,
	)
	if err != nil {
		return nil, err
	}
	return s.collectBooks(rows)
}

// FindBooksByAuthor returns up to limit books by the given author, ordered by
// descending rating.
func (s *Store) FindBooksByAuthor(ctx context.Context, authorID int64, limit int) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		WHERE b.author_id = ?
		ORDER BY b.average_rating DESC, b.book_id
		LIMIT ?`, authorID, limit,
	)
	if err != nil {
		return nil, err
	}
	return s.collectBooks(rows)
}

func (s *Store) SearchBooksByTitle(ctx context.Context, title string, page, pageSize int) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		WHERE b.title LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY b.book_id LIMIT ? OFFSET ?`,
		title, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	return s.collectBooks(rows)
}

// ListBooksSorted returns a page of books ordered by the given column
// ("rating" or "year") in asc or desc order.
func (s *Store) ListBooksSorted(ctx context.Context, column, order string, page, pageSize int) ([]Book, error) {
	var col string
	switch column {
	case "rating":
		col = "b.average_rating"
	case "year":
		col = "b.published_year"
	default:
		return nil, fmt.Errorf("unsupported sort column %q", column)
	}
	dir := "DESC"
	if order == "asc" {
		dir = "ASC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		ORDER BY `+col+` `+dir+`, b.book_id LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	return s.collectBooks(rows)
}

// RecommendedBooks returns books matching the user's stored genre preferences.
func (s *Store) RecommendedBooks(ctx context.Context, username string) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		WHERE b.genre IN (
			SELECT preference_value FROM user_preferences
			WHERE username = ? AND preference_type = 'genre'
		)
		ORDER BY b.average_rating DESC, b.book_id`, username,
	)
	if err != nil {
		return nil, err
	}
	return s.collectBooks(rows)
}

// UnindexedBooks returns up to limit books not yet embedded into the vector store.
func (s *Store) UnindexedBooks(ctx context.Context, limit int) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		WHERE b.indexed = 0
		ORDER BY b.book_id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	return s.collectBooks(rows)
}

func (s *Store) MarkBookIndexed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE books SET indexed = 1 WHERE book_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CatalogStats summarizes catalog size for status reporting.
type CatalogStats struct {
	Books   int
	Authors int
	Users   int
}

func (s *Store) Stats(ctx context.Context) (CatalogStats, error) {
	var stats CatalogStats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM authors),
			(SELECT COUNT(*) FROM users)`,
	)
	if err := row.Scan(&stats.Books, &stats.Authors, &stats.Users); err != nil {
		return CatalogStats{}, err
	}
	return stats, nil
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		u.Username, u.PasswordHash, u.Role,
	)
	return mapConstraintErr(err)
}

func (s *Store) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role FROM users WHERE username = ?`, username,
	).Scan(&u.Username, &u.PasswordHash, &u.Role)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE username = ?`, username,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) AddPreference(ctx context.Context, username, prefType, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (username, preference_type, preference_value) VALUES (?, ?, ?)`,
		username, prefType, value,
	)
	return err
}

func (s *Store) GetPreferences(ctx context.Context, username string) ([]UserPreference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT preference_id, username, preference_type, preference_value
		FROM user_preferences WHERE username = ? ORDER BY preference_id`, username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []UserPreference
	for rows.Next() {
		var p UserPreference
		if err := rows.Scan(&p.ID, &p.Username, &p.Type, &p.Value); err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// LogActivity records a user action for the activity log.
func (s *Store) LogActivity(ctx context.Context, username, activity string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_activities (username, activity, timestamp) VALUES (?, ?, ?)`,
		username, activity, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) RecentActivities(ctx context.Context, username string, limit int) ([]UserActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, activity, timestamp FROM user_activities
		WHERE username = ? ORDER BY id DESC LIMIT ?`, username, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acts []UserActivity
	for rows.Next() {
		var a UserActivity
		var ts string
		if err := rows.Scan(&a.ID, &a.Username, &a.Activity, &ts); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		a.Timestamp = t
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// --- Likes ---

func (s *Store) LikeBook(ctx context.Context, username string, bookID int64) error {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_liked_books (username, book_id) VALUES (?, ?)`,
		username, bookID,
	)
	return mapConstraintErr(err)
}

func (s *Store) UnlikeBook(ctx context.Context, username string, bookID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_liked_books WHERE username = ? AND book_id = ?`,
		username, bookID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) LikedBooks(ctx context.Context, username string) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books b
		JOIN authors a ON a.author_id = b.author_id
		JOIN user_liked_books l ON l.book_id = b.book_id
		WHERE l.username = ?
		ORDER BY b.book_id`, username,
	)
	if err != nil {
		return nil, err
	}
	return s.collectBooks(rows)
}
