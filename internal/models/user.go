package models

import "time"

// RoleUser is the role given to every registered account.
const RoleUser = "user"

// User represents a registered account.
type User struct {
	ID             string    `json:"id" bson:"_id"`
	Email          string    `json:"email" bson:"email"`
	PasswordHash   string    `json:"-" bson:"password_hash"` // Never expose this to the client
	Name           string    `json:"name" bson:"name"`
	LastName       string    `json:"lastName,omitempty" bson:"last_name"`
	Bio            string    `json:"bio,omitempty" bson:"bio"`
	Verified       bool      `json:"verified" bson:"verified"`
	Role           string    `json:"role" bson:"role"`
	CurrentToken   string    `json:"-" bson:"current_token"` // Empty when logged out
	TokenExpiresAt time.Time `json:"-" bson:"token_expires_at"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updated_at"`
}

// Sanitized returns a copy safe to send to clients.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.CurrentToken = ""
	u.TokenExpiresAt = time.Time{}
	return u
}

// UserPatch carries the fields of a partial profile update. Nil fields are
// left untouched.
type UserPatch struct {
	Name     *string `json:"name"`
	LastName *string `json:"lastName"`
	Bio      *string `json:"bio"`
	Password *string `json:"password"`
}

// Identity is the minimal view of an authenticated user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
