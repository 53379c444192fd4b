package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/watchmenow/watchmenow-be/internal/services"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// MessageResponse is the body of requests that return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

var errorKinds = []struct {
	err    error
	kind   string
	status int
}{
	{services.ErrValidation, "validation", http.StatusBadRequest},
	{services.ErrDuplicateEmail, "duplicate_email", http.StatusConflict},
	{services.ErrInvalidCredentials, "invalid_credentials", http.StatusUnauthorized},
	{services.ErrUserNotFound, "user_not_found", http.StatusNotFound},
	{services.ErrInvalidToken, "invalid_token", http.StatusUnauthorized},
	{services.ErrHasDependentFilms, "has_dependent_films", http.StatusConflict},
	{services.ErrFilmNotFound, "film_not_found", http.StatusNotFound},
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps a service error to its status code. Unknown errors are
// persistence failures and their details stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			log.Debug().Err(err).Str("path", r.URL.Path).Str("kind", k.kind).Msg("Request rejected")
			writeJSON(w, k.status, ErrorResponse{Error: err.Error(), Kind: k.kind})
			return
		}
	}

	log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Kind: "persistence"})
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeBadBody(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Kind: "validation"})
}

// queryOrHeader reads a parameter from the query string, falling back to a
// request header of the same name.
func queryOrHeader(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return r.Header.Get(name)
}
