// ./fieldcam-backend/internal/models/models.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnknownLocation is the display name used when no property matches a fix.
const UnknownLocation = "Unknown Location"

type Coordinate struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Property is a configured rental site. Order in the configured list matters:
// it breaks ties when detection radii overlap.
type Property struct {
	Name                  string     `json:"name"`
	Address               string     `json:"address"`
	Coordinate            Coordinate `json:"coordinate"`
	DetectionRadiusMeters float64    `json:"detectionRadiusMeters"`
	StorageFolderID       string     `json:"storageFolderId"`
}

type LocationFix struct {
	Coordinate     Coordinate `json:"coordinate" bson:"coordinate"`
	AccuracyMeters float64    `json:"accuracyMeters" bson:"accuracyMeters"`
	ObservedAt     time.Time  `json:"observedAt" bson:"observedAt"`
}

type Identity struct {
	Email string `json:"email" bson:"email"`
}

// Session is the signed-in state shared by every authenticated remote call.
type Session struct {
	AccessToken string    `json:"-" bson:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt" bson:"expiresAt"`
	Identity    *Identity `json:"identity,omitempty" bson:"identity,omitempty"`
}

// Expired reports whether the session can no longer be used at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// CapturedImage is immutable once built; it is handed to exactly one upload.
type CapturedImage struct {
	ID              string
	Bytes           []byte
	CapturedAt      time.Time
	MatchedProperty *Property
	Fix             *LocationFix
	CaptureIdentity *Identity
}

type RemoteFileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Link     string `json:"link"`
	FolderID string `json:"folderId"`
}

// RemoteLayout is a cache derived from the remote store by find-or-create.
type RemoteLayout struct {
	RootFolderID string            `json:"rootFolderId"`
	LogSheetID   string            `json:"logSheetId"`
	DateFolders  map[string]string `json:"dateFolders"`
}

// LogEntry is one row of the write-only audit sheet.
type LogEntry struct {
	PropertyName string
	Date         string
	Time         string
	Filename     string
	GPS          string
	RemoteLink   string
	UploadedBy   string
}

// Row renders the entry in sheet column order.
func (e LogEntry) Row() []string {
	return []string{e.PropertyName, e.Date, e.Time, e.Filename, e.GPS, e.RemoteLink, e.UploadedBy}
}

type SyncState string

const (
	SyncPending SyncState = "pending"
	SyncSkipped SyncState = "skipped"
	SyncSynced  SyncState = "synced"
	SyncFailed  SyncState = "failed"
)

// Photo is the local gallery record of a capture.
type Photo struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CaptureID  string             `bson:"captureId" json:"captureId"`
	FilePath   string             `bson:"filePath" json:"-"`
	Size       int64              `bson:"size" json:"size"`
	Property   string             `bson:"property,omitempty" json:"property,omitempty"`
	Location   *LocationFix       `bson:"location,omitempty" json:"location,omitempty"`
	CapturedAt time.Time          `bson:"capturedAt" json:"capturedAt"`
	SyncState  SyncState          `bson:"syncState" json:"syncState"`
	SyncError  string             `bson:"syncError,omitempty" json:"syncError,omitempty"`
	RemoteFile *RemoteFileRef     `bson:"remoteFile,omitempty" json:"remoteFile,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
