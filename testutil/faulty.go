package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/arraystream/blobstore"
)

// FaultyStore wraps a BlobStore and fails selected opens.
type FaultyStore struct {
	blobstore.BlobStore

	mu      sync.Mutex
	err     error
	match   string
	after   int
	opens   int
	enabled bool
}

// NewFaultyStore wraps inner. Failures return err once enabled by
// FailOpens.
func NewFaultyStore(inner blobstore.BlobStore, err error) *FaultyStore {
	return &FaultyStore{BlobStore: inner, err: err}
}

// FailOpens fails every open of a blob whose name contains match, after
// the first `after` such opens succeed.
func (s *FaultyStore) FailOpens(match string, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.match, s.after, s.opens, s.enabled = match, after, 0, true
}

// Heal stops injecting failures.
func (s *FaultyStore) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// Opens returns the number of matching opens seen since FailOpens.
func (s *FaultyStore) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Open implements blobstore.BlobStore.
func (s *FaultyStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	s.mu.Lock()
	fail := false
	if s.enabled && strings.Contains(name, s.match) {
		s.opens++
		fail = s.opens > s.after
	}
	s.mu.Unlock()

	if fail {
		return nil, s.err
	}
	return s.BlobStore.Open(ctx, name)
}
