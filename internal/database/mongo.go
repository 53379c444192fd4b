package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchmenow/watchmenow-be/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection = "users"
	filmsCollection = "films"
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	films  *mongo.Collection
}

// NewMongo connects to uri and uses the named database.
func NewMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return newMongoStore(client, client.Database(dbName)), nil
}

func newMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client: client,
		users:  db.Collection(usersCollection),
		films:  db.Collection(filmsCollection),
	}
}

// Ids are UUIDv7 and grow with insertion, so they order records sharing a
// millisecond timestamp.
var (
	insertionOrder = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	newestUpdate   = bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}
)

// Migrate creates the indexes the queries rely on.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	_, err = s.films.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: newestUpdate},
	})
	if err != nil {
		return fmt.Errorf("failed to create films indexes: %w", err)
	}
	return nil
}

// Ping checks the connection to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// InsertUser adds a new user.
func (s *MongoStore) InsertUser(ctx context.Context, u models.User) error {
	_, err := s.users.InsertOne(ctx, u)
	return mapMongoError(err)
}

// FindUserByID retrieves a single user by their ID.
func (s *MongoStore) FindUserByID(ctx context.Context, id string) (models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

// FindUserByEmail retrieves a single user by their email.
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return models.User{}, mapMongoError(err)
	}
	return u, nil
}

// UpdateUser replaces the stored document of an existing user.
func (s *MongoStore) UpdateUser(ctx context.Context, u models.User) error {
	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user.
func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearExpiredTokens logs out users whose session token has expired.
func (s *MongoStore) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.users.UpdateMany(ctx,
		bson.M{
			"current_token":    bson.M{"$ne": ""},
			"token_expires_at": bson.M{"$lte": now},
		},
		bson.M{"$set": bson.M{"current_token": "", "token_expires_at": time.Time{}}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// InsertFilm adds a new film.
func (s *MongoStore) InsertFilm(ctx context.Context, f models.Film) error {
	_, err := s.films.InsertOne(ctx, f)
	return mapMongoError(err)
}

// FindFilmByTitle returns the first film inserted with the given title.
func (s *MongoStore) FindFilmByTitle(ctx context.Context, title string) (models.Film, error) {
	var f models.Film
	opts := options.FindOne().SetSort(insertionOrder)
	if err := s.films.FindOne(ctx, bson.M{"title": title}, opts).Decode(&f); err != nil {
		return models.Film{}, mapMongoError(err)
	}
	return f, nil
}

// FindFilms lists films matching filter in insertion order.
func (s *MongoStore) FindFilms(ctx context.Context, filter FilmFilter) ([]models.Film, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.OwnerID != "" {
		query["owner_id"] = filter.OwnerID
	}
	opts := options.Find().SetSort(insertionOrder)
	return s.findFilms(ctx, query, opts)
}

// FindRecentlyUpdatedFilms returns the most recently updated films.
func (s *MongoStore) FindRecentlyUpdatedFilms(ctx context.Context, limit int) ([]models.Film, error) {
	opts := options.Find().
		SetSort(newestUpdate).
		SetLimit(int64(limit))
	return s.findFilms(ctx, bson.M{}, opts)
}

func (s *MongoStore) findFilms(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Film, error) {
	cursor, err := s.films.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	films := []models.Film{}
	if err := cursor.All(ctx, &films); err != nil {
		return nil, err
	}
	return films, nil
}

// UpdateFilm replaces the stored document of an existing film.
func (s *MongoStore) UpdateFilm(ctx context.Context, f models.Film) error {
	res, err := s.films.ReplaceOne(ctx, bson.M{"_id": f.ID}, f)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFilmsByTitle removes every film with the given title.
func (s *MongoStore) DeleteFilmsByTitle(ctx context.Context, title string) (int64, error) {
	res, err := s.films.DeleteMany(ctx, bson.M{"title": title})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CountFilmsByOwner counts the films created by a user.
func (s *MongoStore) CountFilmsByOwner(ctx context.Context, ownerID string) (int64, error) {
	return s.films.CountDocuments(ctx, bson.M{"owner_id": ownerID})
}

func mapMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
