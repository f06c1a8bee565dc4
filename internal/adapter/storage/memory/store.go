// Package memory is an in-process artifact store for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Store keeps artifacts in a map keyed by report id.
type Store struct {
	mu      sync.RWMutex
	prefix  string
	objects map[int64][]byte
}

func NewStore(prefix string) *Store {
	return &Store{prefix: prefix, objects: make(map[int64][]byte)}
}

// Store saves a copy of data. Storing different bytes for an existing report
// is rejected.
func (s *Store) Store(ctx context.Context, reportID int64, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.objects[reportID]; ok && string(existing) != string(data) {
		return "", fmt.Errorf("memory: report %d: %w", reportID, domain.ErrAlreadyExists)
	}
	s.objects[reportID] = append([]byte(nil), data...)

	return s.location(reportID), nil
}

// Get returns the stored bytes.
func (s *Store) Get(reportID int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[reportID]
	if !ok {
		return nil, fmt.Errorf("memory: report %d: %w", reportID, domain.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *Store) location(reportID int64) string {
	return fmt.Sprintf("mem://%s%d.pdf", s.prefix, reportID)
}
