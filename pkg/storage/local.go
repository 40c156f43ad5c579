package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStorage keeps image assets on the local filesystem, one
// directory per document.
type LocalStorage struct {
	basePath string
}

// LocalConfig holds local storage settings.
type LocalConfig struct {
	Path string // base directory for image assets
}

// NewLocalStorage creates a local image store rooted at cfg.Path.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: absPath}, nil
}

// Save writes the bytes under <base>/<docID>/<ref>, hashing while copying.
func (s *LocalStorage) Save(reader io.Reader, docID string, page int) (ImageInfo, error) {
	if docID == "" {
		return ImageInfo{}, fmt.Errorf("docID cannot be empty")
	}

	ref := uuid.New().String()

	dirPath := filepath.Join(s.basePath, docID)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return ImageInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	filePath := filepath.Join(dirPath, ref)
	file, err := os.Create(filePath)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), reader)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	return ImageInfo{
		Ref:   ref,
		Hash:  hex.EncodeToString(hasher.Sum(nil)),
		Size:  size,
		DocID: docID,
		Page:  page,
		Path:  filepath.Join(docID, ref),
	}, nil
}

// Get opens a stored asset by reference.
func (s *LocalStorage) Get(ref string) (io.ReadCloser, error) {
	filePath, err := s.findPathByRef(ref)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored asset.
func (s *LocalStorage) Delete(ref string) error {
	filePath, err := s.findPathByRef(ref)
	if err != nil {
		return err
	}
	return os.Remove(filePath)
}

// List enumerates assets, optionally restricted to one document.
func (s *LocalStorage) List(docID string) ([]ImageInfo, error) {
	pattern := filepath.Join(s.basePath, "*", "*")
	if docID != "" {
		pattern = filepath.Join(s.basePath, docID, "*")
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	assets := make([]ImageInfo, 0, len(matches))
	for _, match := range matches {
		stat, err := os.Stat(match)
		if err != nil || stat.IsDir() {
			continue
		}
		rel, err := filepath.Rel(s.basePath, match)
		if err != nil {
			continue
		}
		assets = append(assets, ImageInfo{
			Ref:   filepath.Base(match),
			Size:  stat.Size(),
			DocID: filepath.Dir(rel),
			Path:  rel,
		})
	}

	return assets, nil
}

// Exists reports whether a reference resolves to a file.
func (s *LocalStorage) Exists(ref string) (bool, error) {
	_, err := s.findPathByRef(ref)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// findPathByRef locates an asset file across document directories.
func (s *LocalStorage) findPathByRef(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("ref cannot be empty")
	}

	matches, err := filepath.Glob(filepath.Join(s.basePath, "*", ref))
	if err != nil {
		return "", fmt.Errorf("failed to search for asset: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("asset with ref %s not found", ref)
	}
	return matches[0], nil
}
