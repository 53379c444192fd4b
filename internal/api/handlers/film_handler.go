package handlers

import (
	"net/http"

	"github.com/watchmenow/watchmenow-be/internal/auth"
	"github.com/watchmenow/watchmenow-be/internal/models"
	"github.com/watchmenow/watchmenow-be/internal/services"
)

// FilmHandler handles HTTP requests for the film catalog.
type FilmHandler struct {
	service services.FilmServiceProvider
}

// NewFilmHandler creates a new FilmHandler.
func NewFilmHandler(service services.FilmServiceProvider) *FilmHandler {
	return &FilmHandler{service: service}
}

// AddFilm stores a film owned by the caller.
func (h *FilmHandler) AddFilm(w http.ResponseWriter, r *http.Request) {
	var film models.Film
	if err := decodeJSON(r, &film); err != nil {
		writeBadBody(w, err)
		return
	}

	created, err := h.service.AddFilm(r.Context(), auth.TokenFromRequest(r), film)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetFilmByTitle looks a film up by the `title` query parameter or header.
func (h *FilmHandler) GetFilmByTitle(w http.ResponseWriter, r *http.Request) {
	film, err := h.service.GetFilmByTitle(r.Context(), auth.TokenFromRequest(r), queryOrHeader(r, "title"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, film)
}

// GetAllFilms lists the catalog.
func (h *FilmHandler) GetAllFilms(w http.ResponseWriter, r *http.Request) {
	films, err := h.service.GetAllFilms(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, films)
}

// GetFilmsByType lists the films of the `type` query parameter or header.
func (h *FilmHandler) GetFilmsByType(w http.ResponseWriter, r *http.Request) {
	films, err := h.service.GetFilmsByType(r.Context(), auth.TokenFromRequest(r), queryOrHeader(r, "type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, films)
}

// GetLastUpdated returns the most recently updated films. No token needed.
func (h *FilmHandler) GetLastUpdated(w http.ResponseWriter, r *http.Request) {
	films, err := h.service.GetLastUpdatedFilms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, films)
}

// RemoveFilm deletes the films with the title in the body.
func (h *FilmHandler) RemoveFilm(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.service.RemoveFilm(r.Context(), auth.TokenFromRequest(r), payload.Title); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Film removed"})
}

// UpdateFilm merges the fields in the body into the film named by its title.
func (h *FilmHandler) UpdateFilm(w http.ResponseWriter, r *http.Request) {
	var patch models.FilmPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeBadBody(w, err)
		return
	}

	film, err := h.service.UpdateFilm(r.Context(), auth.TokenFromRequest(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, film)
}
