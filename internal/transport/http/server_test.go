package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/anivouch/anivouch/internal/anilist"
	"github.com/anivouch/anivouch/internal/apperrors"
	"github.com/anivouch/anivouch/internal/auth"
	"github.com/anivouch/anivouch/internal/config"
	"github.com/anivouch/anivouch/internal/domain"
	"github.com/anivouch/anivouch/internal/event"
	"github.com/anivouch/anivouch/internal/metrics"
	"github.com/anivouch/anivouch/internal/ratelimit"
	"github.com/anivouch/anivouch/internal/service"
	httpTransport "github.com/anivouch/anivouch/internal/transport/http"
)

// In-memory repositories, enough fidelity for routing tests. Duplicates
// surface as PgError so responses classify the way production does.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func (r *memUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"}
		}
		if existing.Username == u.Username {
			return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"}
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
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

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
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

func (r *memUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if u, err := r.GetByEmail(ctx, identifier); err == nil {
		return u, nil
	}
	return r.GetByUsername(ctx, identifier)
}

func (r *memUserRepo) UpdateUsername(_ context.Context, id uuid.UUID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Username = username
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memUserRepo) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
}

func (r *memSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByHash(_ context.Context, tokenHash string) (*domain.Session, error) {
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

func (r *memSessionRepo) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Revoke()
	return nil
}

func (r *memSessionRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID {
			s.Revoke()
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type memVerificationRepo struct {
	mu            sync.Mutex
	verifications map[uuid.UUID]*domain.Verification
}

func (r *memVerificationRepo) Create(_ context.Context, v *domain.Verification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.verifications[v.ID] = &cp
	return nil
}

func (r *memVerificationRepo) GetActive(_ context.Context, userID uuid.UUID, purpose domain.VerificationPurpose) (*domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.verifications {
		if v.UserID == userID && v.Purpose == purpose && v.IsUsable() {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memVerificationRepo) GetActiveByHash(_ context.Context, purpose domain.VerificationPurpose, valueHash string) (*domain.Verification, error) {
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

func (r *memVerificationRepo) Consume(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.verifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.Consume()
	return nil
}

func (r *memVerificationRepo) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type nopMailer struct{}

func (nopMailer) SendVerificationEmail(context.Context, string, string, string) error { return nil }
func (nopMailer) SendPasswordResetOTP(context.Context, string, string, string) error  { return nil }

type testEnv struct {
	srv *httptest.Server
}

func newTestEnv(t *testing.T, authMax, apiMax int) *testEnv {
	t.Helper()

	users := &memUserRepo{users: make(map[uuid.UUID]*domain.User)}
	sessions := &memSessionRepo{sessions: make(map[uuid.UUID]*domain.Session)}
	verifications := &memVerificationRepo{verifications: make(map[uuid.UUID]*domain.Verification)}
	publisher := event.NewNoopPublisher()

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "anivouch",
	})

	verificationService := service.NewVerificationService(
		users, sessions, verifications, nopMailer{}, publisher,
		"http://localhost:3000", time.Hour, 10*time.Minute,
	)
	authService := service.NewAuthService(users, sessions, jwtManager, nil, verificationService, publisher)
	userService := service.NewUserService(users, publisher)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	animeService := service.NewAnimeService(anilist.NewClient("http://unused.invalid", 60), m)

	authLimiter := ratelimit.New(time.Minute, authMax, time.Hour)
	t.Cleanup(authLimiter.Stop)
	apiLimiter := ratelimit.New(time.Minute, apiMax, time.Hour)
	t.Cleanup(apiLimiter.Stop)

	server := httpTransport.NewServer(
		&config.Config{FrontendURL: "http://localhost:3000", Environment: "production"},
		authService,
		userService,
		verificationService,
		animeService,
		apperrors.NewNormalizer(zap.NewNop(), false),
		authLimiter,
		apiLimiter,
		m,
		registry,
		zap.NewNop(),
	)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

var signUpBody = map[string]string{
	"name":     "Aki",
	"email":    "aki@example.com",
	"username": "aki_42",
	"password": "correct-horse",
}

func TestServer_SignUpFlow(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	resp := env.postJSON(t, "/api/auth/sign-up", signUpBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Limit") != "100" {
		t.Fatalf("expected rate limit header, got %q", resp.Header.Get("X-RateLimit-Limit"))
	}

	body := decodeBody(t, resp)
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("expected access token, got %v", body)
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "aki_42" {
		t.Fatalf("unexpected user payload: %v", user)
	}

	t.Run("duplicate email answers 409", func(t *testing.T) {
		dup := map[string]string{}
		for k, v := range signUpBody {
			dup[k] = v
		}
		dup["username"] = "other_name"

		resp := env.postJSON(t, "/api/auth/sign-up", dup)
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["error"] != "This email is already registered" || body["field"] != "email" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("authenticated /user/me", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/user/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET /user/me: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		user, _ := body["user"].(map[string]any)
		if user["email"] != "aki@example.com" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("public profile hides email", func(t *testing.T) {
		resp, err := http.Get(env.srv.URL + "/api/user/aki_42")
		if err != nil {
			t.Fatalf("GET /user/aki_42: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		user, _ := body["user"].(map[string]any)
		if _, leaked := user["email"]; leaked {
			t.Fatalf("public profile leaked email: %v", user)
		}
	})
}

func TestServer_ErrorShapes(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	t.Run("invalid JSON body", func(t *testing.T) {
		resp, err := http.Post(env.srv.URL+"/api/auth/sign-up", "application/json", strings.NewReader("{not json"))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["error"] != "Validation failed" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("validation details name the fields", func(t *testing.T) {
		resp := env.postJSON(t, "/api/auth/sign-up", map[string]string{
			"name": "Aki", "email": "not-an-email", "username": "ab", "password": "correct-horse",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		details, _ := body["details"].(map[string]any)
		if _, ok := details["email"]; !ok {
			t.Fatalf("expected email in details, got %v", body)
		}
		if _, ok := details["username"]; !ok {
			t.Fatalf("expected username in details, got %v", body)
		}
	})

	t.Run("bad credentials answer 401", func(t *testing.T) {
		resp := env.postJSON(t, "/api/auth/sign-in/email", map[string]string{
			"email": "ghost@example.com", "password": "whatever-long",
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["error"] != "Invalid credentials" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("missing bearer token answers 401", func(t *testing.T) {
		resp, err := http.Get(env.srv.URL + "/api/user/me")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("unknown profile answers 404", func(t *testing.T) {
		resp, err := http.Get(env.srv.URL + "/api/user/ghost")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["error"] != "Resource not found" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("google disabled answers 404", func(t *testing.T) {
		resp, err := http.Get(env.srv.URL + "/api/auth/google")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	})
}

func TestServer_RateLimit(t *testing.T) {
	env := newTestEnv(t, 2, 100)

	for i := 1; i <= 2; i++ {
		resp := env.postJSON(t, "/api/auth/sign-in/email", map[string]string{
			"email": "ghost@example.com", "password": "whatever-long",
		})
		resp.Body.Close()
		remaining := resp.Header.Get("X-RateLimit-Remaining")
		if remaining != fmt.Sprintf("%d", 2-i) {
			t.Fatalf("request %d: expected remaining %d, got %q", i, 2-i, remaining)
		}
	}

	resp := env.postJSON(t, "/api/auth/sign-in/email", map[string]string{
		"email": "ghost@example.com", "password": "whatever-long",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Too many requests" {
		t.Fatalf("unexpected body: %v", body)
	}

	t.Run("auth budget does not bleed into the api budget", func(t *testing.T) {
		resp, err := http.Get(env.srv.URL + "/api/user/aki_42")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatal("api route should use its own window")
		}
	})
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	resp, err := http.Get(env.srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}
