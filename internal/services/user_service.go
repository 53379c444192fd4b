package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/watchmenow/watchmenow-be/internal/auth"
	"github.com/watchmenow/watchmenow-be/internal/database"
	"github.com/watchmenow/watchmenow-be/internal/mailer"
	"github.com/watchmenow/watchmenow-be/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, input RegisterInput) (models.User, error)
	Login(ctx context.Context, email, password string) (LoginResult, error)
	CheckToken(ctx context.Context, token string) (models.User, error)
	Logout(ctx context.Context, token string) error
	FindUserByToken(ctx context.Context, token string) (models.User, error)
	RemoveUser(ctx context.Context, token string) error
	UpdateUser(ctx context.Context, token string, patch models.UserPatch) (models.User, error)
	VerifyEmail(ctx context.Context, verificationToken string) (models.User, error)
}

// RegisterInput holds the fields accepted on registration.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	Bio      string `json:"bio"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// UserService provides business logic for accounts and sessions.
type UserService struct {
	users     database.UserRepository
	films     database.FilmRepository
	tokens    *auth.TokenManager
	mailer    mailer.Sender
	publicURL string
	hashCost  int
	now       func() time.Time
}

// NewUserService creates a new UserService. publicURL is the base of the
// verification link sent after registration.
func NewUserService(users database.UserRepository, films database.FilmRepository, tokens *auth.TokenManager, sender mailer.Sender, publicURL string) *UserService {
	return &UserService{
		users:     users,
		films:     films,
		tokens:    tokens,
		mailer:    sender,
		publicURL: strings.TrimRight(publicURL, "/"),
		hashCost:  bcrypt.DefaultCost,
		now:       clock,
	}
}

// newID returns a time-ordered UUIDv7, so ids break ties between records
// written in the same millisecond.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}

// clock is the default time source. Millisecond precision survives every backend.
func clock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new unverified user and sends the verification e-mail.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	email := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)

	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if input.Password == "" {
		missing = append(missing, "password")
	}
	if name == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return models.User{}, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	// Only a bare mailbox is accepted; display names and angle brackets
	// would otherwise alias an existing address.
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || normalizeEmail(addr.Address) != email {
		return models.User{}, fmt.Errorf("%w: malformed email", ErrValidation)
	}
	email = normalizeEmail(addr.Address)

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return models.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, database.ErrNotFound) {
		return models.User{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := newID()
	if err != nil {
		return models.User{}, err
	}

	now := s.now()
	user := models.User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		LastName:     strings.TrimSpace(input.LastName),
		Bio:          input.Bio,
		Verified:     false,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}

	go s.sendVerification(user)

	return user.Sanitized(), nil
}

// sendVerification runs detached from the request; a failure never undoes
// the registration.
func (s *UserService) sendVerification(user models.User) {
	token, err := s.tokens.IssueVerification(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to issue verification token")
		return
	}

	link := s.publicURL + "/api/verifyemail?id=" + url.QueryEscape(token)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.mailer.SendVerification(ctx, user, link); err != nil {
		log.Warn().Err(err).Str("email", user.Email).Msg("Failed to send verification e-mail")
	}
}

// Login verifies credentials and replaces the user's session token.
func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, err
	}

	user.CurrentToken = token
	user.TokenExpiresAt = expiresAt
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return LoginResult{}, fmt.Errorf("failed to store session token: %w", err)
	}

	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user.Sanitized()}, nil
}

// CheckToken validates a session token and returns the full user record it
// belongs to. The token must be the user's current one.
func (s *UserService) CheckToken(ctx context.Context, token string) (models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	if user.CurrentToken == "" || subtle.ConstantTimeCompare([]byte(user.CurrentToken), []byte(token)) != 1 {
		return models.User{}, fmt.Errorf("%w: session is no longer active", ErrInvalidToken)
	}
	return user, nil
}

// Logout clears the user's session token.
func (s *UserService) Logout(ctx context.Context, token string) error {
	user, err := s.CheckToken(ctx, token)
	if err != nil {
		return err
	}

	user.CurrentToken = ""
	user.TokenExpiresAt = time.Time{}
	return s.users.UpdateUser(ctx, user)
}

// FindUserByToken returns the profile of the token's owner.
func (s *UserService) FindUserByToken(ctx context.Context, token string) (models.User, error) {
	user, err := s.CheckToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// RemoveUser deletes the token's owner unless they still own films.
func (s *UserService) RemoveUser(ctx context.Context, token string) error {
	user, err := s.CheckToken(ctx, token)
	if err != nil {
		return err
	}

	count, err := s.films.CountFilmsByOwner(ctx, user.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d film(s) left", ErrHasDependentFilms, count)
	}

	if err := s.users.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// UpdateUser merges the non-nil fields of patch into the token owner's profile.
func (s *UserService) UpdateUser(ctx context.Context, token string, patch models.UserPatch) (models.User, error) {
	user, err := s.CheckToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.User{}, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		user.Name = name
	}
	if patch.LastName != nil {
		user.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return models.User{}, fmt.Errorf("%w: password cannot be empty", ErrValidation)
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.hashCost)
		if err != nil {
			return models.User{}, fmt.Errorf("failed to hash new password: %w", err)
		}
		user.PasswordHash = string(hashedPassword)
	}
	user.UpdatedAt = s.now()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// VerifyEmail marks the account referenced by a verification token as verified.
func (s *UserService) VerifyEmail(ctx context.Context, verificationToken string) (models.User, error) {
	claims, err := s.tokens.ParseVerification(verificationToken)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	if !user.Verified {
		user.Verified = true
		user.UpdatedAt = s.now()
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return models.User{}, err
		}
	}
	return user.Sanitized(), nil
}
