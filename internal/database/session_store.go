package database

import (
	"context"
	"errors"
	"fmt"

	"fieldcam/backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// The device has one session; it lives in a single fixed document.
const sessionDocID = "current"

type sessionDoc struct {
	ID             string `bson:"_id"`
	models.Session `bson:",inline"`
}

// SessionStore persists the session so a restart can restore it.
type SessionStore struct {
	coll *mongo.Collection
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{coll: db.Collection("sessions")}
}

func (s *SessionStore) Load(ctx context.Context) (*models.Session, error) {
	var doc sessionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": sessionDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load session: %w", err)
	}
	return &doc.Session, nil
}

func (s *SessionStore) Save(ctx context.Context, session models.Session) error {
	doc := sessionDoc{ID: sessionDocID, Session: session}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": sessionDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("could not save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": sessionDocID}); err != nil {
		return fmt.Errorf("could not clear session: %w", err)
	}
	return nil
}
