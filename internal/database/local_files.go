package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalFiles stores stamped JPEGs on disk under Directory.
type LocalFiles struct {
	Directory string
}

func NewLocalFiles(dir string) (*LocalFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create upload dir: %v", err)
	}
	return &LocalFiles{Directory: dir}, nil
}

// Save writes data as name and returns the stored path.
func (s *LocalFiles) Save(name string, data []byte) (string, error) {
	path := filepath.Join(s.Directory, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("could not write %s: %v", name, err)
	}
	return path, nil
}

func (s *LocalFiles) Read(path string) ([]byte, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Remove deletes path; a file already gone is not an error.
func (s *LocalFiles) Remove(path string) error {
	if err := s.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalFiles) contains(path string) error {
	rel, err := filepath.Rel(s.Directory, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s is outside %s", path, s.Directory)
	}
	return nil
}
