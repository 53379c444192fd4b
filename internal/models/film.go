package models

import "time"

// Film is a tip in the catalog. Title is the lookup key.
type Film struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Type        string    `json:"type" bson:"type"`
	OwnerID     string    `json:"ownerId" bson:"owner_id"`
	Description string    `json:"description,omitempty" bson:"description"`
	Director    string    `json:"director,omitempty" bson:"director"`
	Year        int       `json:"year,omitempty" bson:"year"`
	PosterURL   string    `json:"posterUrl,omitempty" bson:"poster_url"`
	Link        string    `json:"link,omitempty" bson:"link"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// FilmPatch selects a film by Title and carries the fields to merge into it.
type FilmPatch struct {
	Title       string  `json:"title"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
	Director    *string `json:"director"`
	Year        *int    `json:"year"`
	PosterURL   *string `json:"posterUrl"`
	Link        *string `json:"link"`
}

// Apply merges the non-nil fields of p into f.
func (p FilmPatch) Apply(f *Film) {
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Director != nil {
		f.Director = *p.Director
	}
	if p.Year != nil {
		f.Year = *p.Year
	}
	if p.PosterURL != nil {
		f.PosterURL = *p.PosterURL
	}
	if p.Link != nil {
		f.Link = *p.Link
	}
}
