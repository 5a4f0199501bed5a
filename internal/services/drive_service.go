// ./fieldcam-backend/internal/services/drive_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"fieldcam/backend/internal/models"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType      = "application/vnd.google-apps.folder"
	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
)

// DriveStore is the Google Drive Store. Credentials come from the HTTP
// client handed in through opts, normally the session manager's client.
type DriveStore struct {
	srv *drive.Service
	log *zap.Logger
}

func NewDriveStore(ctx context.Context, logger *zap.Logger, opts ...option.ClientOption) (*DriveStore, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %v", err)
	}
	logger.Named("drive").Info("Google Drive client initialized")
	return &DriveStore{srv: srv, log: logger.Named("drive")}, nil
}

func (s *DriveStore) ListChildren(ctx context.Context, parentID string) ([]Entry, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(parentID))

	var entries []Entry
	err := s.srv.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name, mimeType)").
		PageSize(1000).
		Pages(ctx, func(list *drive.FileList) error {
			for _, f := range list.Files {
				entries = append(entries, Entry{ID: f.Id, Name: f.Name, Kind: kindOf(f.MimeType)})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("could not list folder %s: %w", parentID, classify(err))
	}
	s.log.Debug("listed folder", zap.String("parent_id", parentID), zap.Int("children", len(entries)))
	return entries, nil
}

func (s *DriveStore) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}
	f, err := s.srv.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("could not create folder %q: %w", name, classify(err))
	}
	s.log.Info("created folder", zap.String("name", name), zap.String("id", f.Id), zap.String("parent_id", parentID))
	return f.Id, nil
}

// Upload sends metadata and bytes in one multipart request.
func (s *DriveStore) Upload(ctx context.Context, up FileUpload) (*models.RemoteFileRef, error) {
	meta := &drive.File{
		Name:     up.Name,
		MimeType: up.MimeType,
		Parents:  []string{up.ParentID},
	}
	f, err := s.srv.Files.Create(meta).
		Media(bytes.NewReader(up.Content), googleapi.ContentType(up.MimeType)).
		Fields("id, name, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("could not create file: %w", classify(err))
	}
	s.log.Info("file uploaded", zap.String("id", f.Id), zap.String("name", up.Name), zap.Int("bytes", len(up.Content)))
	return &models.RemoteFileRef{ID: f.Id, Name: up.Name, Link: f.WebViewLink, FolderID: up.ParentID}, nil
}

// MoveToFolder adds folderID as a parent of fileID.
func (s *DriveStore) MoveToFolder(ctx context.Context, fileID, folderID string) error {
	_, err := s.srv.Files.Update(fileID, &drive.File{}).AddParents(folderID).Fields("id").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("could not move %s into %s: %w", fileID, folderID, classify(err))
	}
	return nil
}

func kindOf(mimeType string) EntryKind {
	switch mimeType {
	case folderMimeType:
		return KindFolder
	case spreadsheetMimeType:
		return KindSpreadsheet
	default:
		return KindFile
	}
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
