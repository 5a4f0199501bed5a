// ./fieldcam-backend/internal/database/photo_repository.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldcam/backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrPhotoNotFound = errors.New("photo not found")

// PhotoRepository is the local gallery index.
type PhotoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewPhotoRepository(db *mongo.Database) *PhotoRepository {
	return &PhotoRepository{coll: db.Collection("photos"), now: time.Now}
}

// EnsureIndexes creates the lookup and ordering indexes.
func (r *PhotoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "captureId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "capturedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("could not create photo indexes: %w", err)
	}
	return nil
}

func (r *PhotoRepository) Save(ctx context.Context, p *models.Photo) error {
	now := r.now()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("could not save photo record: %w", err)
	}
	return nil
}

// List returns the newest photos first. limit <= 0 means all.
func (r *PhotoRepository) List(ctx context.Context, limit int) ([]models.Photo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "capturedAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{}, opts)
}

func (r *PhotoRepository) Get(ctx context.Context, id string) (*models.Photo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrPhotoNotFound
	}
	var p models.Photo
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not fetch photo: %w", err)
	}
	return &p, nil
}

// Delete removes one record and returns it so the caller can drop the file.
func (r *PhotoRepository) Delete(ctx context.Context, id string) (*models.Photo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrPhotoNotFound
	}
	var p models.Photo
	err = r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not delete photo: %w", err)
	}
	return &p, nil
}

func (r *PhotoRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("could not clear photos: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *PhotoRepository) MarkSynced(ctx context.Context, captureID string, ref models.RemoteFileRef) error {
	return r.setSync(ctx, captureID, bson.M{
		"syncState":  models.SyncSynced,
		"remoteFile": ref,
		"syncError":  "",
	})
}

func (r *PhotoRepository) MarkFailed(ctx context.Context, captureID, reason string) error {
	return r.setSync(ctx, captureID, bson.M{
		"syncState": models.SyncFailed,
		"syncError": reason,
	})
}

// Prune keeps the newest keep records and deletes the rest, returning the
// deleted ones.
func (r *PhotoRepository) Prune(ctx context.Context, keep int) ([]models.Photo, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "capturedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(keep))
	old, err := r.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	if len(old) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, len(old))
	for i, p := range old {
		ids[i] = p.ID
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, fmt.Errorf("could not prune photos: %w", err)
	}
	return old, nil
}

func (r *PhotoRepository) setSync(ctx context.Context, captureID string, set bson.M) error {
	set["updatedAt"] = r.now()
	res, err := r.coll.UpdateOne(ctx, bson.M{"captureId": captureID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("could not update sync state: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

func (r *PhotoRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]models.Photo, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch photos: %w", err)
	}
	defer cursor.Close(ctx)

	var photos []models.Photo
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, fmt.Errorf("failed to decode photos: %w", err)
	}
	if photos == nil {
		photos = make([]models.Photo, 0)
	}
	return photos, nil
}
