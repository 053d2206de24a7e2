// Package memory is an in-process store adapter with the same atomicity
// guarantees as the Postgres adapter, scoped to one mutex. It backs unit
// tests and single-binary dev mode.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/google/uuid"
)

type Store struct {
	mu sync.Mutex

	users      map[string]*core.User
	byEmail    map[string]string // email -> user id
	identities map[string]*core.Identity
	byProvider map[string]string // provider|provider_user_id -> user id
	refresh    map[string]*core.RefreshToken
	byHash     map[string]string // token hash -> refresh token id
	codes      map[string]*core.AuthCode // keyed by code hash
	projects   map[string]*core.Project
}

func New() *Store {
	return &Store{
		users:      make(map[string]*core.User),
		byEmail:    make(map[string]string),
		identities: make(map[string]*core.Identity),
		byProvider: make(map[string]string),
		refresh:    make(map[string]*core.RefreshToken),
		byHash:     make(map[string]string),
		codes:      make(map[string]*core.AuthCode),
		projects:   make(map[string]*core.Project),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

func providerKey(provider, providerUserID string) string {
	return provider + "|" + providerUserID
}

// ---------- users ----------

func (s *Store) CreateUserWithPassword(ctx context.Context, email, passwordHash string) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, core.ErrConflict
	}
	u := &core.User{
		ID:        uuid.NewString(),
		Email:     email,
		Plan:      "free",
		CreatedAt: time.Now().UTC(),
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID

	phc := passwordHash
	id := &core.Identity{
		ID:           uuid.NewString(),
		UserID:       u.ID,
		Provider:     "password",
		Email:        email,
		PasswordHash: &phc,
		CreatedAt:    u.CreatedAt,
	}
	s.identities[id.ID] = id

	out := *u
	return &out, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, *core.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, ok := s.byEmail[email]
	if !ok {
		return nil, nil, core.ErrNotFound
	}
	u := *s.users[uid]
	for _, id := range s.identities {
		if id.UserID == uid && id.Provider == "password" {
			cp := *id
			return &u, &cp, nil
		}
	}
	return &u, nil, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *Store) SetEmailVerified(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, phc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return core.ErrNotFound
	}
	for _, id := range s.identities {
		if id.UserID == userID && id.Provider == "password" {
			h := phc
			id.PasswordHash = &h
			return nil
		}
	}
	h := phc
	id := &core.Identity{
		ID:           uuid.NewString(),
		UserID:       userID,
		Provider:     "password",
		Email:        s.users[userID].Email,
		PasswordHash: &h,
		CreatedAt:    time.Now().UTC(),
	}
	s.identities[id.ID] = id
	return nil
}

func (s *Store) SetUserPlan(ctx context.Context, userID, plan string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.Plan = plan
	return nil
}

func (s *Store) DisableUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	now := time.Now().UTC()
	u.DisabledAt = &now
	return nil
}

func (s *Store) FindByProviderID(ctx context.Context, provider, providerUserID string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.byProvider[providerKey(provider, providerUserID)]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *s.users[uid]
	return &out, nil
}

func (s *Store) LinkProvider(ctx context.Context, userID, provider, providerUserID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return core.ErrNotFound
	}
	key := providerKey(provider, providerUserID)
	if _, taken := s.byProvider[key]; taken {
		return core.ErrConflict
	}
	id := &core.Identity{
		ID:             uuid.NewString(),
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		Email:          strings.ToLower(email),
		CreatedAt:      time.Now().UTC(),
	}
	s.identities[id.ID] = id
	s.byProvider[key] = userID
	return nil
}

func (s *Store) CreateUserFromProvider(ctx context.Context, provider, providerUserID, email string, emailVerified bool) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()

	key := providerKey(provider, providerUserID)
	if _, taken := s.byProvider[key]; taken {
		return nil, core.ErrConflict
	}
	u := &core.User{
		ID:            uuid.NewString(),
		Email:         email,
		EmailVerified: emailVerified,
		Plan:          "free",
		CreatedAt:     time.Now().UTC(),
	}
	s.users[u.ID] = u
	if email != "" {
		s.byEmail[email] = u.ID
	}
	id := &core.Identity{
		ID:             uuid.NewString(),
		UserID:         u.ID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		Email:          email,
		CreatedAt:      u.CreatedAt,
	}
	s.identities[id.ID] = id
	s.byProvider[key] = u.ID

	out := *u
	return &out, nil
}

// ---------- refresh tokens ----------

func (s *Store) CreateRefreshToken(ctx context.Context, rt *core.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rt
	s.refresh[cp.ID] = &cp
	s.byHash[cp.TokenHash] = cp.ID
	return nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[tokenHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *s.refresh[id]
	return &out, nil
}

func (s *Store) RotateRefreshToken(ctx context.Context, curID string, next *core.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.refresh[curID]
	if !ok || !cur.Live(time.Now()) {
		return core.ErrRotationConflict
	}
	nid := next.ID
	cur.SupersededBy = &nid
	cp := *next
	s.refresh[cp.ID] = &cp
	s.byHash[cp.TokenHash] = cp.ID
	return nil
}

func (s *Store) RevokeFamily(ctx context.Context, familyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, rt := range s.refresh {
		if rt.FamilyID == familyID && rt.RevokedAt == nil {
			t := now
			rt.RevokedAt = &t
		}
	}
	return nil
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, rt := range s.refresh {
		if rt.UserID == userID && rt.RevokedAt == nil {
			t := now
			rt.RevokedAt = &t
		}
	}
	return nil
}

func (s *Store) FamilyHasLive(ctx context.Context, familyID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rt := range s.refresh {
		if rt.FamilyID == familyID && rt.Live(now) {
			return true, nil
		}
	}
	return false, nil
}

// ---------- one-time codes ----------

func (s *Store) CreateCode(ctx context.Context, c *core.AuthCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	// Older unused codes of the same purpose stop being valid.
	for _, old := range s.codes {
		if old.UserID == c.UserID && old.Purpose == c.Purpose && old.UsedAt == nil {
			t := now
			old.UsedAt = &t
		}
	}
	cp := *c
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	s.codes[cp.TokenHash] = &cp
	return nil
}

func (s *Store) ConsumeCode(ctx context.Context, tokenHash, purpose string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[tokenHash]
	if !ok || c.Purpose != purpose {
		return "", core.ErrNotFound
	}
	if c.UsedAt != nil {
		return "", core.ErrCodeUsed
	}
	if time.Now().After(c.ExpiresAt) {
		return "", core.ErrCodeExpired
	}
	now := time.Now().UTC()
	c.UsedAt = &now
	return c.UserID, nil
}

// ---------- projects (example owned resource) ----------

func (s *Store) InsertProject(ctx context.Context, p *core.Project, maxPerOwner int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxPerOwner > 0 {
		n := 0
		for _, existing := range s.projects {
			if existing.Owner == p.Owner {
				n++
			}
		}
		if n >= maxPerOwner {
			return core.ErrQuotaExceeded
		}
	}
	cp := *p
	s.projects[cp.ID] = &cp
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.projects[p.ID]
	if !ok {
		return core.ErrNotFound
	}
	// Owner is immutable after create.
	cp := *p
	cp.Owner = cur.Owner
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.projects[cp.ID] = &cp
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID string) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Project
	for _, p := range s.projects {
		if p.Owner == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) CountProjectsByOwner(ctx context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.projects {
		if p.Owner == ownerID {
			n++
		}
	}
	return n, nil
}
