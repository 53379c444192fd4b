package services

import (
	"errors"

	"github.com/watchmenow/watchmenow-be/internal/auth"
)

// Error kinds returned by the services. Match them with errors.Is; the API
// layer maps each kind to a status code.
var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = auth.ErrInvalidToken
	ErrHasDependentFilms  = errors.New("user still owns films")
	ErrFilmNotFound       = errors.New("film not found")
)
