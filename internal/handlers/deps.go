package handlers

import (
	"context"
	"time"

	"fieldcam/backend/internal/auth"
	"fieldcam/backend/internal/location"
	"fieldcam/backend/internal/models"
)

// PhotoStore is the gallery index.
type PhotoStore interface {
	Save(ctx context.Context, p *models.Photo) error
	List(ctx context.Context, limit int) ([]models.Photo, error)
	Get(ctx context.Context, id string) (*models.Photo, error)
	Delete(ctx context.Context, id string) (*models.Photo, error)
	DeleteAll(ctx context.Context) (int64, error)
	MarkSynced(ctx context.Context, captureID string, ref models.RemoteFileRef) error
	MarkFailed(ctx context.Context, captureID, reason string) error
	Prune(ctx context.Context, keep int) ([]models.Photo, error)
}

// FileStore holds the stamped image bytes.
type FileStore interface {
	Save(name string, data []byte) (string, error)
	Read(path string) ([]byte, error)
	Remove(path string) error
}

type Stamper interface {
	Stamp(raw []byte, at time.Time) ([]byte, error)
}

type Uploader interface {
	Upload(ctx context.Context, img models.CapturedImage) (*models.RemoteFileRef, error)
}

// SessionView is the read side of the session manager.
type SessionView interface {
	State() auth.State
	Identity() *models.Identity
}

type LocationView interface {
	Current() location.Snapshot
}
