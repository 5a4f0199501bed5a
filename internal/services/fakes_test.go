package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldcam/backend/internal/auth"
	"fieldcam/backend/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	children map[string][]Entry
	uploads  []FileUpload
	lists    int
	creates  int

	listErr     error
	createErr   error
	uploadErr   error
	createDelay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{children: map[string][]Entry{}}
}

func (s *fakeStore) add(parentID string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[parentID] = append(s.children[parentID], e)
}

func (s *fakeStore) ListChildren(_ context.Context, parentID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]Entry(nil), s.children[parentID]...), nil
}

func (s *fakeStore) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	time.Sleep(s.createDelay)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return "", s.createErr
	}
	s.nextID++
	id := fmt.Sprintf("folder-%d", s.nextID)
	s.children[parentID] = append(s.children[parentID], Entry{ID: id, Name: name, Kind: KindFolder})
	return id, nil
}

func (s *fakeStore) Upload(_ context.Context, f FileUpload) (*models.RemoteFileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	s.uploads = append(s.uploads, f)
	s.nextID++
	id := fmt.Sprintf("file-%d", s.nextID)
	s.children[f.ParentID] = append(s.children[f.ParentID], Entry{ID: id, Name: f.Name, Kind: KindFile})
	return &models.RemoteFileRef{ID: id, Name: f.Name, Link: "https://drive.example/" + id, FolderID: f.ParentID}, nil
}

type fakeSheet struct {
	mu      sync.Mutex
	created []string
	header  []string
	moved   map[string]string
	rows    [][]string
	ranges  []string

	createErr error
	moveErr   error
	appendErr error
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{moved: map[string]string{}}
}

func (s *fakeSheet) CreateSpreadsheet(_ context.Context, title, tab string, header []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = append(s.created, title+"/"+tab)
	s.header = header
	return fmt.Sprintf("sheet-%d", len(s.created)), nil
}

func (s *fakeSheet) MoveToFolder(_ context.Context, fileID, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moveErr != nil {
		return s.moveErr
	}
	s.moved[fileID] = folderID
	return nil
}

func (s *fakeSheet) AppendRow(_ context.Context, _ string, cellRange string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.ranges = append(s.ranges, cellRange)
	s.rows = append(s.rows, row)
	return nil
}

type fakeSessions struct {
	mu          sync.Mutex
	session     *models.Session
	err         error
	invalidated []string
	rejected    []string
}

func signedIn(email string) *fakeSessions {
	return &fakeSessions{session: &models.Session{
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
		Identity:    &models.Identity{Email: email},
	}}
}

func (s *fakeSessions) EnsureValid(context.Context) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.Session{}, s.err
	}
	if s.session == nil {
		return models.Session{}, auth.ErrNotAuthenticated
	}
	return *s.session, nil
}

func (s *fakeSessions) Invalidate(_ context.Context, accessToken, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.invalidated = append(s.invalidated, reason)
	s.rejected = append(s.rejected, accessToken)
}
