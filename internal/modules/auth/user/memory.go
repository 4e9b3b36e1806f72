package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yetuga/portal/internal/models"
)

// MemoryStore keeps accounts in process. It backs deployments running with
// the database disabled, and tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]models.UserModel
	resets map[int64]models.PasswordResetModel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int64]models.UserModel),
		resets: make(map[int64]models.PasswordResetModel),
	}
}

func (m *MemoryStore) find(match func(models.UserModel) bool) (*models.UserModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindByIdentifier(_ context.Context, identifier string) (*models.UserModel, error) {
	return m.find(func(u models.UserModel) bool {
		return u.IsActive && (u.Username == identifier || strings.EqualFold(u.Email, identifier))
	})
}

func (m *MemoryStore) FindActiveByEmail(_ context.Context, email string) (*models.UserModel, error) {
	return m.find(func(u models.UserModel) bool { return u.IsActive && strings.EqualFold(u.Email, email) })
}

func (m *MemoryStore) FindByID(_ context.Context, id int64) (*models.UserModel, error) {
	return m.find(func(u models.UserModel) bool { return u.ID == id })
}

func (m *MemoryStore) UsernameExists(_ context.Context, username string) (bool, error) {
	_, err := m.find(func(u models.UserModel) bool { return u.Username == username })
	return err == nil, nil
}

func (m *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	_, err := m.find(func(u models.UserModel) bool { return strings.EqualFold(u.Email, email) })
	return err == nil, nil
}

func (m *MemoryStore) Create(_ context.Context, u *models.UserModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = m.nextID
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) update(id int64, fn func(*models.UserModel)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *MemoryStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return m.update(id, func(u *models.UserModel) { u.LastLogin = &at })
}

func (m *MemoryStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	return m.update(id, func(u *models.UserModel) { u.PasswordHash = hash })
}

func (m *MemoryStore) UpsertReset(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[userID] = models.PasswordResetModel{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (m *MemoryStore) FindReset(_ context.Context, tokenHash string) (*models.PasswordResetModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resets {
		if r.TokenHash == tokenHash {
			found := r
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) DeleteReset(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resets, userID)
	return nil
}
