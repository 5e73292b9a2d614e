package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ObjectStore uploads client signatures, payment proofs and receipts,
// returning a retrievable URL.
type ObjectStore interface {
	Upload(ctx context.Context, folder, fileName, contentType string, body io.Reader) (string, error)
}

// ObjectKey derives a collision-free storage key keeping the extension.
func ObjectKey(folder, fileName string) string {
	ext := path.Ext(fileName)
	name := strings.TrimSuffix(path.Base(fileName), ext)
	if name == "" {
		name = "upload"
	}
	return fmt.Sprintf("%s/%s-%s%s", folder, name, uuid.NewString()[:8], ext)
}

// MemoryStore keeps uploads in memory. Used in development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(ctx context.Context, folder, fileName, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := ObjectKey(folder, fileName)
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return "mem://" + key, nil
}

// Get returns a stored object for assertions in tests.
func (s *MemoryStore) Get(url string) ([]byte, bool) {
	key := strings.TrimPrefix(url, "mem://")
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}
