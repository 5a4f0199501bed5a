// ./fieldcam-backend/internal/services/mega_service.go
package services

import (
	"context"
	"fmt"
	"os"

	"fieldcam/backend/internal/models"

	"github.com/t3rm1n4l/go-mega"
	"go.uber.org/zap"
)

// MegaStore is the MEGA Store. It logs in once with a service account;
// folder ids are node hashes.
type MegaStore struct {
	m   *mega.Mega
	log *zap.Logger
}

func NewMegaStore(email, password string, logger *zap.Logger) (*MegaStore, error) {
	log := logger.Named("mega")
	log.Info("initializing MEGA client")
	if email == "" || password == "" {
		return nil, fmt.Errorf("MEGA_EMAIL and MEGA_PASSWORD must be set")
	}

	m := mega.New()
	if err := m.Login(email, password); err != nil {
		return nil, fmt.Errorf("failed to log into MEGA: %v", err)
	}
	log.Info("logged into MEGA")
	return &MegaStore{m: m, log: log}, nil
}

// RootID is the hash of the account's cloud drive root.
func (s *MegaStore) RootID() string {
	return s.m.FS.GetRoot().GetHash()
}

func (s *MegaStore) node(id string) (*mega.Node, error) {
	if id == "" {
		return s.m.FS.GetRoot(), nil
	}
	n := s.m.FS.HashLookup(id)
	if n == nil {
		return nil, fmt.Errorf("MEGA node %s not found", id)
	}
	return n, nil
}

func (s *MegaStore) ListChildren(_ context.Context, parentID string) ([]Entry, error) {
	parent, err := s.node(parentID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.m.FS.GetChildren(parent)
	if err != nil {
		return nil, fmt.Errorf("could not get children of %s from MEGA: %v", parentID, err)
	}

	entries := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		kind := KindFile
		if n.GetType() == mega.FOLDER {
			kind = KindFolder
		}
		entries = append(entries, Entry{ID: n.GetHash(), Name: n.GetName(), Kind: kind})
	}
	return entries, nil
}

func (s *MegaStore) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	parent, err := s.node(parentID)
	if err != nil {
		return "", err
	}
	n, err := s.m.CreateDir(name, parent)
	if err != nil {
		return "", fmt.Errorf("failed to create %q folder in MEGA: %v", name, err)
	}
	s.log.Info("created folder", zap.String("name", name), zap.String("id", n.GetHash()))
	return n.GetHash(), nil
}

// Upload stages the bytes in a temp file since the client uploads from disk.
// MEGA has no stable web link without exporting the node, so Link stays empty.
func (s *MegaStore) Upload(_ context.Context, up FileUpload) (*models.RemoteFileRef, error) {
	parent, err := s.node(up.ParentID)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "fieldcam-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("could not stage upload: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(up.Content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("could not stage upload: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("could not stage upload: %v", err)
	}

	n, err := s.m.UploadFile(tmp.Name(), parent, up.Name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %q to MEGA: %v", up.Name, err)
	}
	s.log.Info("file uploaded", zap.String("id", n.GetHash()), zap.String("name", up.Name))
	return &models.RemoteFileRef{ID: n.GetHash(), Name: up.Name, FolderID: up.ParentID}, nil
}
