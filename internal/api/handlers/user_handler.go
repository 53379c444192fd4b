package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/watchmenow/watchmenow-be/internal/auth"
	"github.com/watchmenow/watchmenow-be/internal/models"
	"github.com/watchmenow/watchmenow-be/internal/services"
)

// UserHandler handles HTTP requests for accounts and sessions.
type UserHandler struct {
	service      services.UserServiceProvider
	secureCookie bool
}

// NewUserHandler creates a new UserHandler. secureCookie marks the session
// cookie Secure, which production deployments behind TLS want.
func NewUserHandler(service services.UserServiceProvider, secureCookie bool) *UserHandler {
	return &UserHandler{service: service, secureCookie: secureCookie}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload services.RegisterInput
	if err := decodeJSON(r, &payload); err != nil {
		writeBadBody(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")
	writeJSON(w, http.StatusCreated, user)
}

// VerifyEmail confirms the address behind the link sent on registration.
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Login handles authentication and sets the session cookie.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": res.Token,
		"user":  res.User,
	})
}

// CheckToken reports the identity behind the request's token.
func (h *UserHandler) CheckToken(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CheckToken(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Identity{ID: user.ID, Email: user.Email})
}

// Logout ends the session and clears the cookie.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// FindUser returns the profile of the authenticated user.
func (h *UserHandler) FindUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.FindUserByToken(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// RemoveUser deletes the authenticated user's account.
func (h *UserHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveUser(r.Context(), auth.TokenFromRequest(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User removed"})
}

// UpdateUser applies a partial profile update.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch models.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeBadBody(w, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), auth.TokenFromRequest(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
