package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	appfulfillment "github.com/carebridge/backend/internal/application/fulfillment"
)

// StubDocumentStorage is an in-memory DocumentStorage for development and
// testing. Uploaded documents are retained so tests can inspect them.
type StubDocumentStorage struct {
	// BaseURL is the base URL for generated download links
	BaseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

// NewStubDocumentStorage creates a new StubDocumentStorage
func NewStubDocumentStorage() *StubDocumentStorage {
	return &StubDocumentStorage{
		BaseURL: "https://storage.example.com",
		objects: make(map[string][]byte),
	}
}

var _ appfulfillment.DocumentStorage = (*StubDocumentStorage)(nil)

// Upload stores the document in memory
func (s *StubDocumentStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = append([]byte(nil), data...)
	return nil
}

// GenerateDownloadURL returns a stub download link
func (s *StubDocumentStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	expiresAt := time.Now().Add(expiresIn)
	return s.BaseURL + "/download/" + storageKey, expiresAt, nil
}

// Get returns a stored document (for testing)
func (s *StubDocumentStorage) Get(storageKey string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[storageKey]
	return data, ok
}
