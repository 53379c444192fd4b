// Package database holds the persistence collaborators for users and films.
// Two backends implement Store: SQLite for single-node deployments and tests,
// and MongoDB as the document store used in production.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchmenow/watchmenow-be/internal/config"
	"github.com/watchmenow/watchmenow-be/internal/models"
)

var (
	// ErrNotFound is returned when no record matches a lookup or update.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a storage-level unique constraint fails.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository is the user collection.
type UserRepository interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	DeleteUser(ctx context.Context, id string) error
	// ClearExpiredTokens empties current_token on users whose token expired
	// at or before now and returns how many users were touched.
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// FilmFilter narrows FindFilms. Empty fields match everything.
type FilmFilter struct {
	Type    string
	OwnerID string
}

// FilmRepository is the film collection.
type FilmRepository interface {
	InsertFilm(ctx context.Context, film models.Film) error
	FindFilmByTitle(ctx context.Context, title string) (models.Film, error)
	// FindFilms returns matching films in insertion order.
	FindFilms(ctx context.Context, filter FilmFilter) ([]models.Film, error)
	// FindRecentlyUpdatedFilms returns at most limit films, newest update first.
	FindRecentlyUpdatedFilms(ctx context.Context, limit int) ([]models.Film, error)
	UpdateFilm(ctx context.Context, film models.Film) error
	DeleteFilmsByTitle(ctx context.Context, title string) (int64, error)
	CountFilmsByOwner(ctx context.Context, ownerID string) (int64, error)
}

// Store is a connected backend holding both collections.
type Store interface {
	UserRepository
	FilmRepository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg.DatabaseDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		return NewSQLite(cfg.DatabasePath)
	case config.DriverMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}
