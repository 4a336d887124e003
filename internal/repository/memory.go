package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atinyakov/linkvault/internal/models"
)

// MemoryRepository keeps vault items and identities in process memory.
// It is meant for development runs without a database and for tests; all
// data is lost on restart.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]*models.VaultItem
	users map[string]struct{}
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]*models.VaultItem),
		users: make(map[string]struct{}),
	}
}

// AddUser registers an identity so that tokens naming it resolve.
func (m *MemoryRepository) AddUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = struct{}{}
}

// RemoveUser drops an identity and clears it from the items it owned.
func (m *MemoryRepository) RemoveUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	for _, it := range m.items {
		if it.OwnerID != nil && *it.OwnerID == userID {
			it.OwnerID = nil
		}
	}
}

func (m *MemoryRepository) UserExists(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok, nil
}

func (m *MemoryRepository) Create(_ context.Context, item *models.VaultItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; ok {
		return ErrDuplicateID
	}
	c := cloneItem(item)
	c.ViewCount = 0
	m.items[item.ID] = c
	return nil
}

func (m *MemoryRepository) Fetch(_ context.Context, id string) (*models.VaultItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneItem(it), nil
}

// IncrementViewCount checks and increments under one lock, which is the
// in-memory equivalent of the conditional UPDATE.
func (m *MemoryRepository) IncrementViewCount(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return 0, ErrNotFound
	}
	if it.MaxViews > 0 && it.ViewCount >= it.MaxViews {
		return 0, ErrLimitReached
	}
	it.ViewCount++
	return it.ViewCount, nil
}

func (m *MemoryRepository) ClearContent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[id]; ok && it.Kind == models.KindFile {
		it.Content = nil
	}
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Summary, 0)
	for _, it := range m.items {
		if it.OwnerID == nil || *it.OwnerID != ownerID {
			continue
		}
		out = append(out, models.Summary{
			ID:        it.ID,
			Kind:      it.Kind,
			FileName:  clonePtr(it.FileName),
			CreatedAt: it.CreatedAt,
			ExpiresAt: it.ExpiresAt,
			MaxViews:  it.MaxViews,
			ViewCount: it.ViewCount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryRepository) ListReclaimable(_ context.Context, now time.Time) ([]models.ReclaimRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []models.ReclaimRef
	for _, it := range m.items {
		if it.Kind != models.KindFile || it.Content == nil {
			continue
		}
		if it.ExpiresAt.Before(now) || (it.MaxViews > 0 && it.ViewCount >= it.MaxViews) {
			refs = append(refs, models.ReclaimRef{ID: it.ID, StorageKey: *it.Content})
		}
	}
	return refs, nil
}

func cloneItem(it *models.VaultItem) *models.VaultItem {
	c := *it
	c.Content = clonePtr(it.Content)
	c.FileName = clonePtr(it.FileName)
	c.PasswordHash = clonePtr(it.PasswordHash)
	c.OwnerID = clonePtr(it.OwnerID)
	return &c
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
