package statrelay

import (
	"context"
	"sync"
)

// InMemorySnapshotBackend keeps the snapshot text in process memory.
// Used for local development and tests.
type InMemorySnapshotBackend struct {
	mu   sync.Mutex
	text string
}

func NewInMemorySnapshotBackend() *InMemorySnapshotBackend {
	return &InMemorySnapshotBackend{}
}

func (b *InMemorySnapshotBackend) Fetch(ctx context.Context) (string, error) {
	if b == nil {
		return "", nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text, nil
}

func (b *InMemorySnapshotBackend) Write(ctx context.Context, text string) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
	return nil
}
