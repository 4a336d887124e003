package service_test

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/atinyakov/linkvault/internal/blob"
	"github.com/atinyakov/linkvault/internal/models"
)

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
	deletes []string
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}} }

func (f *fakeBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type mockRepo struct {
	CreateFunc             func(ctx context.Context, item *models.VaultItem) error
	FetchFunc              func(ctx context.Context, id string) (*models.VaultItem, error)
	IncrementViewCountFunc func(ctx context.Context, id string) (int, error)
	DeleteFunc             func(ctx context.Context, id string) error
	ListByOwnerFunc        func(ctx context.Context, ownerID string) ([]models.Summary, error)
}

func (m *mockRepo) Create(ctx context.Context, item *models.VaultItem) error {
	return m.CreateFunc(ctx, item)
}
func (m *mockRepo) Fetch(ctx context.Context, id string) (*models.VaultItem, error) {
	return m.FetchFunc(ctx, id)
}
func (m *mockRepo) IncrementViewCount(ctx context.Context, id string) (int, error) {
	return m.IncrementViewCountFunc(ctx, id)
}
func (m *mockRepo) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}
func (m *mockRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Summary, error) {
	return m.ListByOwnerFunc(ctx, ownerID)
}
