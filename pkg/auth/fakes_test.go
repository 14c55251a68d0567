package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/recipebox-idm/pkg/domain"
)

var testHashParams = HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newTestHasher() *Hasher {
	return NewHasher(testHashParams, 2)
}

// memStore is an in-memory UserStore, FavoriteStore and RecipeResolver.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*domain.User
	favorites map[uuid.UUID][]string
	recipes   map[string]bool

	upsertErr error
	linkErr   error
	clears    int
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[uuid.UUID]*domain.User),
		favorites: make(map[uuid.UUID][]string),
		recipes:   make(map[string]bool),
	}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.Favorites = append([]string(nil), u.Favorites...)
	return &c
}

func (m *memStore) put(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = copyUser(u)
}

func (m *memStore) get(id uuid.UUID) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	return copyUser(u)
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memStore) byEmail(email string) *domain.User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if u := m.get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.byEmail(email); u != nil {
		return copyUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *memStore) UpsertPending(ctx context.Context, p domain.PendingSignup) (*domain.User, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	hash, code, expires := p.PasswordHash, p.OTPCodeHash, p.OTPExpiresAt
	u := m.byEmail(p.Email)
	if u == nil {
		u = &domain.User{
			ID:           uuid.New(),
			Email:        p.Email,
			AuthProvider: domain.ProviderLocal,
			CreatedAt:    now,
		}
		m.users[u.ID] = u
	} else if u.IsVerified {
		return nil, domain.ErrUserAlreadyExists
	}
	u.Name = p.Name
	u.PasswordHash = &hash
	u.PasswordSet = true
	u.OTPCodeHash = &code
	u.OTPExpiresAt = &expires
	u.UpdatedAt = now
	return copyUser(u), nil
}

func (m *memStore) ConsumeOTP(ctx context.Context, email, codeHash string, now time.Time) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.byEmail(email)
	if u == nil || u.OTPCodeHash == nil || *u.OTPCodeHash != codeHash ||
		u.OTPExpiresAt == nil || !now.Before(*u.OTPExpiresAt) {
		return nil, domain.ErrInvalidOrExpiredCode
	}
	u.IsVerified = true
	u.ClearOTP()
	return copyUser(u), nil
}

func (m *memStore) ClearOTP(ctx context.Context, userID uuid.UUID, codeHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if u, ok := m.users[userID]; ok && u.OTPCodeHash != nil && *u.OTPCodeHash == codeHash {
		u.ClearOTP()
	}
	return nil
}

func (m *memStore) LinkIdentity(ctx context.Context, googleID, email string, merge domain.LinkFunc) (*domain.User, error) {
	if m.linkErr != nil {
		return nil, m.linkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var existing *domain.User
	for _, u := range m.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			existing = u
			break
		}
	}
	if existing == nil {
		existing = m.byEmail(email)
	}

	var in *domain.User
	if existing != nil {
		in = copyUser(existing)
	}
	out, err := merge(in)
	if err != nil {
		return nil, err
	}
	m.users[out.ID] = copyUser(out)
	return copyUser(out), nil
}

func (m *memStore) SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.PasswordSet {
		return domain.ErrPasswordAlreadySet
	}
	u.PasswordHash = &hash
	u.PasswordSet = true
	return nil
}

func (m *memStore) ReplacePasswordHash(ctx context.Context, userID uuid.UUID, oldHash, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if !u.PasswordSet || u.PasswordHash == nil || *u.PasswordHash != oldHash {
		return domain.ErrInvalidCredentials
	}
	u.PasswordHash = &newHash
	return nil
}

func (m *memStore) UpdateProfile(ctx context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Photo != nil {
		photo := *upd.Photo
		u.Photo = &photo
		u.PhotoSource = domain.PhotoSourceUpload
	}
	if upd.BannerImage != nil {
		banner := *upd.BannerImage
		u.BannerImage = &banner
	}
	return copyUser(u), nil
}

func (m *memStore) ToggleFavorite(ctx context.Context, userID uuid.UUID, recipeID string) (bool, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return false, nil, domain.ErrUserNotFound
	}

	list := m.favorites[userID]
	for i, id := range list {
		if id == recipeID {
			list = append(list[:i:i], list[i+1:]...)
			m.favorites[userID] = list
			return false, append([]string{}, list...), nil
		}
	}
	list = append(list, recipeID)
	m.favorites[userID] = list
	return true, append([]string{}, list...), nil
}

func (m *memStore) ListFavorites(ctx context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.favorites[userID]...), nil
}

func (m *memStore) RecipeExists(ctx context.Context, recipeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recipes[recipeID], nil
}

// captureNotifier records sent messages.
type captureNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type sentMessage struct {
	To, Subject, Body string
}

func (n *captureNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var errBoom = errors.New("boom")

func strPtr(s string) *string {
	return &s
}
