package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/anivouch/anivouch/internal/domain"
)

// fakeUserRepo is an in-memory UserRepository that mimics the database's
// unique constraints, surfacing duplicates as real PgError values so the
// classification path under test matches production.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return uniqueViolation("users_email_key")
		}
		if u.Username == user.Username {
			return uniqueViolation("users_username_key")
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if u, err := r.GetByEmail(ctx, identifier); err == nil {
		return u, nil
	}
	return r.GetByUsername(ctx, identifier)
}

func (r *fakeUserRepo) UpdateUsername(_ context.Context, id uuid.UUID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, u := range r.users {
		if uid != id && u.Username == username {
			return uniqueViolation("users_username_key")
		}
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Username = username
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetByHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeSessionRepo) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Revoke()
	return nil
}

func (r *fakeSessionRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID {
			s.Revoke()
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.IsExpired() || s.IsRevoked() {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) activeCount(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsValid() {
			n++
		}
	}
	return n
}

type fakeVerificationRepo struct {
	mu            sync.Mutex
	verifications map[uuid.UUID]*domain.Verification
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{verifications: make(map[uuid.UUID]*domain.Verification)}
}

func (r *fakeVerificationRepo) Create(_ context.Context, v *domain.Verification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.verifications[v.ID] = &cp
	return nil
}

func (r *fakeVerificationRepo) GetActive(_ context.Context, userID uuid.UUID, purpose domain.VerificationPurpose) (*domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*domain.Verification
	for _, v := range r.verifications {
		if v.UserID == userID && v.Purpose == purpose && v.IsUsable() {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	cp := *candidates[0]
	return &cp, nil
}

func (r *fakeVerificationRepo) GetActiveByHash(_ context.Context, purpose domain.VerificationPurpose, valueHash string) (*domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.verifications {
		if v.Purpose == purpose && v.ValueHash == valueHash && v.IsUsable() {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeVerificationRepo) Consume(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.verifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.Consume()
	return nil
}

func (r *fakeVerificationRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, v := range r.verifications {
		if !v.IsUsable() {
			delete(r.verifications, id)
			n++
		}
	}
	return n, nil
}

// fakeMailer records sent mail instead of talking to a relay.
type fakeMailer struct {
	mu         sync.Mutex
	links      []string
	otps       []string
	recipients []string
	err        error
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, to, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recipients = append(m.recipients, to)
	m.links = append(m.links, link)
	return nil
}

func (m *fakeMailer) SendPasswordResetOTP(_ context.Context, to, _, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recipients = append(m.recipients, to)
	m.otps = append(m.otps, otp)
	return nil
}

func (m *fakeMailer) lastOTP() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.otps) == 0 {
		return ""
	}
	return m.otps[len(m.otps)-1]
}

func (m *fakeMailer) lastLink() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		return ""
	}
	return m.links[len(m.links)-1]
}
