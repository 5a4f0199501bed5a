// ./fieldcam-backend/internal/services/store.go
package services

import (
	"context"

	"fieldcam/backend/internal/models"
)

type EntryKind string

const (
	KindFolder      EntryKind = "folder"
	KindSpreadsheet EntryKind = "spreadsheet"
	KindFile        EntryKind = "file"
)

// Entry is one non-trashed child of a remote folder.
type Entry struct {
	ID   string
	Name string
	Kind EntryKind
}

type FileUpload struct {
	Name     string
	ParentID string
	MimeType string
	Content  []byte
}

// Store is a hierarchical remote file store.
type Store interface {
	ListChildren(ctx context.Context, parentID string) ([]Entry, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, f FileUpload) (*models.RemoteFileRef, error)
}

// LogSheet is the tabular audit log.
type LogSheet interface {
	CreateSpreadsheet(ctx context.Context, title, tab string, header []string) (string, error)
	MoveToFolder(ctx context.Context, fileID, folderID string) error
	AppendRow(ctx context.Context, spreadsheetID, cellRange string, row []string) error
}

// rootProvider is implemented by stores that have a natural root folder.
type rootProvider interface {
	RootID() string
}
