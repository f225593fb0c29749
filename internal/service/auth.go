// Package service contains the business logic layer.
// Services orchestrate operations across repositories, send mail, and
// publish events. They do not know about HTTP or transport details.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anivouch/anivouch/internal/apperrors"
	"github.com/anivouch/anivouch/internal/auth"
	"github.com/anivouch/anivouch/internal/domain"
	"github.com/anivouch/anivouch/internal/event"
	"github.com/anivouch/anivouch/internal/storage"
)

// AuthService handles registration, sign-in, and session lifecycle.
type AuthService struct {
	users        storage.UserRepository
	sessions     storage.SessionRepository
	jwt          *auth.JWTManager
	google       *auth.GoogleVerifier // nil when Google sign-in is not configured
	verification *VerificationService
	publisher    event.Publisher
}

func NewAuthService(
	users storage.UserRepository,
	sessions storage.SessionRepository,
	jwt *auth.JWTManager,
	google *auth.GoogleVerifier,
	verification *VerificationService,
	publisher event.Publisher,
) *AuthService {
	return &AuthService{
		users:        users,
		sessions:     sessions,
		jwt:          jwt,
		google:       google,
		verification: verification,
		publisher:    publisher,
	}
}

// SignUpInput contains a new account's details.
type SignUpInput struct {
	Name      string
	Email     string
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult contains the tokens and user info after successful sign-in.
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	ExpiresInSeconds int64
	User             *domain.User
}

// SignUp creates a credential account, mails a verification link, and signs
// the user in. A taken email or username propagates as the database's
// unique-violation error so the boundary can answer 409 with the offending
// field.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*LoginResult, error) {
	if err := auth.ValidatePasswordStrength(input.Password); err != nil {
		return nil, domain.ValidationError{Field: "password", Message: err.Error()}
	}

	passwordHash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user, err := domain.NewUser(input.Email, input.Username, input.Name)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = passwordHash

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, domain.UserRegisteredEvent(user))

	// A failed verification mail must not fail the registration; the user
	// can request another from the verify page.
	_ = s.verification.SendVerificationEmail(ctx, user.ID)

	return s.issueTokens(ctx, user, input.IPAddress, input.UserAgent)
}

// SignInInput contains the credentials for sign-in; exactly one of Email or
// Username is set.
type SignInInput struct {
	Email     string
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

var errBadCredentials = auth.NewAPIError("Invalid credentials", http.StatusUnauthorized)

// SignInEmail authenticates with email and password.
func (s *AuthService) SignInEmail(ctx context.Context, input SignInInput) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	return s.signIn(ctx, user, input)
}

// SignInUsername authenticates with username and password.
func (s *AuthService) SignInUsername(ctx context.Context, input SignInInput) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	return s.signIn(ctx, user, input)
}

func (s *AuthService) signIn(ctx context.Context, user *domain.User, input SignInInput) (*LoginResult, error) {
	if !user.HasPassword() {
		// OAuth-only account; a password can never match.
		return nil, errBadCredentials
	}
	if err := auth.CheckPassword(input.Password, user.PasswordHash); err != nil {
		return nil, errBadCredentials
	}

	_ = s.publisher.Publish(ctx, domain.UserLoggedInEvent(user.ID, input.IPAddress, input.UserAgent))

	return s.issueTokens(ctx, user, input.IPAddress, input.UserAgent)
}

// RefreshInput contains the refresh token and request metadata.
type RefreshInput struct {
	RefreshToken string
	IPAddress    string
	UserAgent    string
}

// Refresh rotates a refresh token. A revoked token being replayed is treated
// as theft: every session of that user is revoked.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (*LoginResult, error) {
	tokenHash := auth.HashToken(input.RefreshToken)

	session, err := s.sessions.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}

	if !session.IsValid() {
		if session.IsRevoked() {
			_ = s.sessions.RevokeAllForUser(ctx, session.UserID)
		}
		return nil, errBadCredentials
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, errBadCredentials
	}

	_ = s.sessions.Revoke(ctx, session.ID)

	return s.issueTokens(ctx, user, input.IPAddress, input.UserAgent)
}

// SignOut revokes the session behind a refresh token. Unknown tokens are
// ignored so sign-out is idempotent.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	session, err := s.sessions.GetByHash(ctx, auth.HashToken(refreshToken))
	if err != nil {
		return nil
	}

	if err := s.sessions.Revoke(ctx, session.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	_ = s.publisher.Publish(ctx, domain.NewEvent(domain.EventUserLoggedOut, session.UserID, nil))
	return nil
}

// ValidateToken validates an access token and returns the claims.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	return s.jwt.ValidateAccessToken(token)
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.google != nil
}

// GoogleAuthURL builds the provider redirect URL for the given CSRF state.
func (s *AuthService) GoogleAuthURL(state string) string {
	return s.google.AuthCodeURL(state)
}

// GoogleSignIn finishes the OAuth callback: it verifies the code, then
// matches or provisions the account and signs it in.
func (s *AuthService) GoogleSignIn(ctx context.Context, code, ipAddress, userAgent string) (*LoginResult, error) {
	identity, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if !identity.EmailVerified {
		return nil, auth.NewAPIError("Google account email is not verified", http.StatusUnauthorized)
	}

	user, err := s.users.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		// Existing account, whichever provider created it.
	case errors.Is(err, domain.ErrNotFound):
		user, err = s.provisionGoogleUser(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	_ = s.publisher.Publish(ctx, domain.UserLoggedInEvent(user.ID, ipAddress, userAgent))

	return s.issueTokens(ctx, user, ipAddress, userAgent)
}

func (s *AuthService) provisionGoogleUser(ctx context.Context, identity *auth.GoogleIdentity) (*domain.User, error) {
	username := usernameFromEmail(identity.Email)

	user, err := domain.NewGoogleUser(identity.Email, username, identity.Name, identity.Picture)
	if err != nil {
		return nil, err
	}

	createErr := s.users.Create(ctx, user)
	if createErr == nil {
		_ = s.publisher.Publish(ctx, domain.UserRegisteredEvent(user))
		return user, nil
	}

	// The derived username may be taken; retry once with a random suffix.
	if apperrors.IsUniqueViolation(createErr) {
		user.Username = suffixUsername(username)
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		_ = s.publisher.Publish(ctx, domain.UserRegisteredEvent(user))
		return user, nil
	}

	return nil, createErr
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User, ipAddress, userAgent string) (*LoginResult, error) {
	accessToken, _, err := s.jwt.GenerateAccessToken(auth.TokenPayload{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := domain.GenerateTokenString()
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: auth.HashToken(refreshToken),
		ExpiresAt: time.Now().UTC().Add(s.jwt.RefreshTokenTTL()),
		CreatedAt: time.Now().UTC(),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresInSeconds: int64(s.jwt.AccessTokenTTL().Seconds()),
		User:             user,
	}, nil
}

// CleanupExpiredSessions removes expired and revoked sessions.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}

// usernameFromEmail derives a rule-conforming username from the local part
// of an email address.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.ToLower(local)

	var b strings.Builder
	for _, c := range local {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}

	username := b.String()
	if len(username) > 15 {
		username = username[:15]
	}
	for len(username) < 3 {
		username += "0"
	}
	return username
}

// suffixUsername appends four random digits, trimming so the result still
// fits the length rule.
func suffixUsername(username string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	suffix := "0000"
	if err == nil {
		suffix = fmt.Sprintf("%04d", n)
	}

	if len(username) > 11 {
		username = username[:11]
	}
	return username + suffix
}
