package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/watchmenow/watchmenow-be/internal/database"
	"github.com/watchmenow/watchmenow-be/internal/models"
)

// RecentFilmsLimit is the size of the "last updated" list.
const RecentFilmsLimit = 4

// Actions published on the live film feed.
const (
	ActionFilmCreated = "film.created"
	ActionFilmUpdated = "film.updated"
	ActionFilmDeleted = "film.deleted"
)

// FilmServiceProvider defines the interface for film services.
type FilmServiceProvider interface {
	AddFilm(ctx context.Context, token string, film models.Film) (models.Film, error)
	GetFilmByTitle(ctx context.Context, token, title string) (models.Film, error)
	GetAllFilms(ctx context.Context, token string) ([]models.Film, error)
	GetFilmsByType(ctx context.Context, token, filmType string) ([]models.Film, error)
	GetLastUpdatedFilms(ctx context.Context) ([]models.Film, error)
	RemoveFilm(ctx context.Context, token, title string) error
	UpdateFilm(ctx context.Context, token string, patch models.FilmPatch) (models.Film, error)
}

// TokenChecker resolves a session token to its user.
type TokenChecker interface {
	CheckToken(ctx context.Context, token string) (models.User, error)
}

// Notifier receives film changes, e.g. the websocket hub.
type Notifier interface {
	Publish(action string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, interface{}) {}

// FilmService provides business logic for the film catalog.
type FilmService struct {
	films    database.FilmRepository
	sessions TokenChecker
	notifier Notifier
	now      func() time.Time
}

// NewFilmService creates a new FilmService. notifier may be nil.
func NewFilmService(films database.FilmRepository, sessions TokenChecker, notifier Notifier) *FilmService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &FilmService{
		films:    films,
		sessions: sessions,
		notifier: notifier,
		now:      clock,
	}
}

// AddFilm stores a new film owned by the token's user.
func (s *FilmService) AddFilm(ctx context.Context, token string, film models.Film) (models.Film, error) {
	user, err := s.sessions.CheckToken(ctx, token)
	if err != nil {
		return models.Film{}, err
	}

	film.Title = strings.TrimSpace(film.Title)
	film.Type = strings.TrimSpace(film.Type)

	var missing []string
	if film.Title == "" {
		missing = append(missing, "title")
	}
	if film.Type == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return models.Film{}, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	id, err := newID()
	if err != nil {
		return models.Film{}, err
	}

	now := s.now()
	film.ID = id
	film.OwnerID = user.ID
	film.CreatedAt = now
	film.UpdatedAt = now

	if err := s.films.InsertFilm(ctx, film); err != nil {
		return models.Film{}, fmt.Errorf("failed to insert film: %w", err)
	}

	s.notifier.Publish(ActionFilmCreated, film)
	return film, nil
}

// GetFilmByTitle looks a film up by its title.
func (s *FilmService) GetFilmByTitle(ctx context.Context, token, title string) (models.Film, error) {
	if _, err := s.sessions.CheckToken(ctx, token); err != nil {
		return models.Film{}, err
	}
	return s.findByTitle(ctx, title)
}

func (s *FilmService) findByTitle(ctx context.Context, title string) (models.Film, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Film{}, fmt.Errorf("%w: missing title", ErrValidation)
	}

	film, err := s.films.FindFilmByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Film{}, fmt.Errorf("%w: %q", ErrFilmNotFound, title)
		}
		return models.Film{}, err
	}
	return film, nil
}

// GetAllFilms lists the whole catalog in insertion order.
func (s *FilmService) GetAllFilms(ctx context.Context, token string) ([]models.Film, error) {
	if _, err := s.sessions.CheckToken(ctx, token); err != nil {
		return nil, err
	}
	return s.films.FindFilms(ctx, database.FilmFilter{})
}

// GetFilmsByType lists the films of one category.
func (s *FilmService) GetFilmsByType(ctx context.Context, token, filmType string) ([]models.Film, error) {
	if _, err := s.sessions.CheckToken(ctx, token); err != nil {
		return nil, err
	}

	filmType = strings.TrimSpace(filmType)
	if filmType == "" {
		return nil, fmt.Errorf("%w: missing type", ErrValidation)
	}
	return s.films.FindFilms(ctx, database.FilmFilter{Type: filmType})
}

// GetLastUpdatedFilms returns the most recently updated films, newest first.
// It is public and takes no token.
func (s *FilmService) GetLastUpdatedFilms(ctx context.Context) ([]models.Film, error) {
	return s.films.FindRecentlyUpdatedFilms(ctx, RecentFilmsLimit)
}

// RemoveFilm deletes every film with the given title.
func (s *FilmService) RemoveFilm(ctx context.Context, token, title string) error {
	if _, err := s.sessions.CheckToken(ctx, token); err != nil {
		return err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: missing title", ErrValidation)
	}

	n, err := s.films.DeleteFilmsByTitle(ctx, title)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrFilmNotFound, title)
	}

	s.notifier.Publish(ActionFilmDeleted, map[string]string{"title": title})
	return nil
}

// UpdateFilm merges the non-nil fields of patch into the film named by patch.Title.
func (s *FilmService) UpdateFilm(ctx context.Context, token string, patch models.FilmPatch) (models.Film, error) {
	if _, err := s.sessions.CheckToken(ctx, token); err != nil {
		return models.Film{}, err
	}

	if patch.Type != nil && strings.TrimSpace(*patch.Type) == "" {
		return models.Film{}, fmt.Errorf("%w: type cannot be empty", ErrValidation)
	}

	film, err := s.findByTitle(ctx, patch.Title)
	if err != nil {
		return models.Film{}, err
	}

	patch.Apply(&film)
	film.Type = strings.TrimSpace(film.Type)
	film.UpdatedAt = s.now()

	if err := s.films.UpdateFilm(ctx, film); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Film{}, fmt.Errorf("%w: %q", ErrFilmNotFound, film.Title)
		}
		return models.Film{}, err
	}

	s.notifier.Publish(ActionFilmUpdated, film)
	return film, nil
}
