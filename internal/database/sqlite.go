package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/watchmenow/watchmenow-be/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store on top of a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the database at path (":memory:" for a private in-memory one).
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers anyway, and an in-memory database only lives
	// on the connection that created it.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Migrate runs the SQL statements to set up the database schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		verified INTEGER NOT NULL DEFAULT 0,
		role TEXT NOT NULL DEFAULT 'user',
		current_token TEXT NOT NULL DEFAULT '',
		token_expires_at INTEGER NOT NULL DEFAULT 0, -- unix nanoseconds, 0 when logged out
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS films (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		director TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		poster_url TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_films_title ON films(title);
	CREATE INDEX IF NOT EXISTS idx_films_type ON films(type);
	CREATE INDEX IF NOT EXISTS idx_films_owner ON films(owner_id);
	CREATE INDEX IF NOT EXISTS idx_films_updated ON films(updated_at);
	`
	_, err := s.db.ExecContext(ctx, sqlStmt)
	return err
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const userColumns = `id, email, password_hash, name, last_name, bio, verified, role,
	current_token, token_expires_at, created_at, updated_at`

// scanUser is a helper to scan a user from a row or rows object.
func scanUser(scanner interface{ Scan(...interface{}) error }) (models.User, error) {
	var u models.User
	var tokenExpires, created, updated int64
	err := scanner.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.LastName, &u.Bio, &u.Verified, &u.Role,
		&u.CurrentToken, &tokenExpires, &created, &updated,
	)
	if err != nil {
		return models.User{}, err
	}
	u.TokenExpiresAt = fromUnixNano(tokenExpires)
	u.CreatedAt = fromUnixNano(created)
	u.UpdatedAt = fromUnixNano(updated)
	return u, nil
}

// InsertUser adds a new user.
func (s *SQLiteStore) InsertUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(`+userColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.LastName, u.Bio, u.Verified, u.Role,
		u.CurrentToken, toUnixNano(u.TokenExpiresAt), toUnixNano(u.CreatedAt), toUnixNano(u.UpdatedAt),
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

// FindUserByID retrieves a single user by their ID.
func (s *SQLiteStore) FindUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.userFromRow(row)
}

// FindUserByEmail retrieves a single user by their email.
func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return s.userFromRow(row)
}

func (s *SQLiteStore) userFromRow(row *sql.Row) (models.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdateUser overwrites every mutable column of an existing user.
func (s *SQLiteStore) UpdateUser(ctx context.Context, u models.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = ?, password_hash = ?, name = ?, last_name = ?, bio = ?,
		                 verified = ?, role = ?, current_token = ?, token_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, u.PasswordHash, u.Name, u.LastName, u.Bio,
		u.Verified, u.Role, u.CurrentToken, toUnixNano(u.TokenExpiresAt), toUnixNano(u.UpdatedAt),
		u.ID,
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return requireAffected(res)
}

// DeleteUser removes a user.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ClearExpiredTokens logs out users whose session token has expired.
func (s *SQLiteStore) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET current_token = '', token_expires_at = 0
		WHERE current_token != '' AND token_expires_at <= ?`, toUnixNano(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const filmColumns = `id, title, type, owner_id, description, director, year, poster_url, link, created_at, updated_at`

func scanFilm(scanner interface{ Scan(...interface{}) error }) (models.Film, error) {
	var f models.Film
	var created, updated int64
	err := scanner.Scan(
		&f.ID, &f.Title, &f.Type, &f.OwnerID, &f.Description, &f.Director, &f.Year,
		&f.PosterURL, &f.Link, &created, &updated,
	)
	if err != nil {
		return models.Film{}, err
	}
	f.CreatedAt = fromUnixNano(created)
	f.UpdatedAt = fromUnixNano(updated)
	return f, nil
}

// InsertFilm adds a new film.
func (s *SQLiteStore) InsertFilm(ctx context.Context, f models.Film) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO films(`+filmColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Title, f.Type, f.OwnerID, f.Description, f.Director, f.Year,
		f.PosterURL, f.Link, toUnixNano(f.CreatedAt), toUnixNano(f.UpdatedAt),
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

// FindFilmByTitle returns the first film inserted with the given title.
func (s *SQLiteStore) FindFilmByTitle(ctx context.Context, title string) (models.Film, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+filmColumns+` FROM films WHERE title = ? ORDER BY rowid LIMIT 1`, title)
	f, err := scanFilm(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Film{}, ErrNotFound
		}
		return models.Film{}, err
	}
	return f, nil
}

// FindFilms lists films matching filter in insertion order.
func (s *SQLiteStore) FindFilms(ctx context.Context, filter FilmFilter) ([]models.Film, error) {
	query := `SELECT ` + filmColumns + ` FROM films WHERE 1 = 1`
	var args []interface{}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFilms(rows)
}

// FindRecentlyUpdatedFilms returns the most recently updated films.
func (s *SQLiteStore) FindRecentlyUpdatedFilms(ctx context.Context, limit int) ([]models.Film, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+filmColumns+` FROM films ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFilms(rows)
}

func scanFilms(rows *sql.Rows) ([]models.Film, error) {
	films := []models.Film{}
	for rows.Next() {
		f, err := scanFilm(rows)
		if err != nil {
			return nil, err
		}
		films = append(films, f)
	}
	return films, rows.Err()
}

// UpdateFilm overwrites every mutable column of an existing film.
func (s *SQLiteStore) UpdateFilm(ctx context.Context, f models.Film) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE films SET title = ?, type = ?, owner_id = ?, description = ?, director = ?,
		                 year = ?, poster_url = ?, link = ?, updated_at = ?
		WHERE id = ?`,
		f.Title, f.Type, f.OwnerID, f.Description, f.Director,
		f.Year, f.PosterURL, f.Link, toUnixNano(f.UpdatedAt),
		f.ID,
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return requireAffected(res)
}

// DeleteFilmsByTitle removes every film with the given title.
func (s *SQLiteStore) DeleteFilmsByTitle(ctx context.Context, title string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM films WHERE title = ?", title)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountFilmsByOwner counts the films created by a user.
func (s *SQLiteStore) CountFilmsByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM films WHERE owner_id = ?", ownerID).Scan(&n)
	return n, err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapSQLiteError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case sqlite3.SQLITE_CONSTRAINT:
			// Extended result codes disabled.
			if strings.Contains(sqliteErr.Error(), "UNIQUE") {
				return fmt.Errorf("%w: %v", ErrDuplicate, err)
			}
		}
	}
	return err
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
