package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/anivouch/anivouch/internal/apperrors"
	"github.com/anivouch/anivouch/internal/auth"
	"github.com/anivouch/anivouch/internal/domain"
	"github.com/anivouch/anivouch/internal/event"
	"github.com/anivouch/anivouch/internal/service"
)

type verificationFixture struct {
	svc      *service.VerificationService
	users    *fakeUserRepo
	sessions *fakeSessionRepo
	mailer   *fakeMailer
	user     *domain.User
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()

	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	verifications := newFakeVerificationRepo()
	mailer := &fakeMailer{}

	svc := service.NewVerificationService(
		users, sessions, verifications, mailer, event.NewNoopPublisher(),
		"http://localhost:3000", time.Hour, 10*time.Minute,
	)

	user, err := domain.NewUser("aki@example.com", "aki_42", "Aki")
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user.PasswordHash = hash
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("store user: %v", err)
	}

	return &verificationFixture{svc: svc, users: users, sessions: sessions, mailer: mailer, user: user}
}

// tokenFromLink extracts the raw token out of a mailed verification link.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("no token in link %q", link)
	}
	return token
}

func TestVerificationService_EmailFlow(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	if err := f.svc.SendVerificationEmail(ctx, f.user.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	link := f.mailer.lastLink()
	if !strings.HasPrefix(link, "http://localhost:3000/verify-email?token=") {
		t.Fatalf("unexpected link: %q", link)
	}

	if err := f.svc.VerifyEmail(ctx, tokenFromLink(t, link)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := f.users.GetByID(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !user.EmailVerified {
		t.Fatal("expected email marked verified")
	}

	t.Run("token is single use", func(t *testing.T) {
		err := f.svc.VerifyEmail(ctx, tokenFromLink(t, link))
		assertAppError(t, err, http.StatusBadRequest, "Invalid or expired verification link")
	})

	t.Run("already verified", func(t *testing.T) {
		err := f.svc.SendVerificationEmail(ctx, f.user.ID)
		assertAppError(t, err, http.StatusBadRequest, "Email is already verified")
	})
}

func TestVerificationService_VerifyEmailBadToken(t *testing.T) {
	f := newVerificationFixture(t)
	err := f.svc.VerifyEmail(context.Background(), "never-issued")
	assertAppError(t, err, http.StatusBadRequest, "Invalid or expired verification link")
}

func TestVerificationService_PasswordResetFlow(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	if err := f.svc.SendPasswordResetOTP(ctx, f.user.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	otp := f.mailer.lastOTP()
	if len(otp) != 6 {
		t.Fatalf("expected 6-digit OTP, got %q", otp)
	}

	// A session that predates the reset must die with the old password.
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    f.user.ID,
		TokenHash: auth.HashToken("old-refresh"),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		CreatedAt: time.Now().UTC(),
	}
	if err := f.sessions.Create(ctx, session); err != nil {
		t.Fatalf("store session: %v", err)
	}

	if err := f.svc.ResetPassword(ctx, f.user.ID, otp, "new-password-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := f.users.GetByID(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := auth.CheckPassword("new-password-1", user.PasswordHash); err != nil {
		t.Fatal("expected new password to match")
	}
	if f.sessions.activeCount(f.user.ID) != 0 {
		t.Fatal("expected all sessions revoked after password reset")
	}

	t.Run("OTP is single use", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, f.user.ID, otp, "new-password-2")
		assertAppError(t, err, http.StatusBadRequest, "Invalid or expired code")
	})
}

func TestVerificationService_ResetPasswordRejections(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	t.Run("weak replacement password", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, f.user.ID, "123456", "short")
		var verr domain.ValidationError
		if !errors.As(err, &verr) || verr.Field != "password" {
			t.Fatalf("expected password validation error, got %v", err)
		}
	})

	t.Run("no outstanding OTP", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, f.user.ID, "123456", "new-password-1")
		assertAppError(t, err, http.StatusBadRequest, "Invalid or expired code")
	})

	t.Run("wrong OTP", func(t *testing.T) {
		if err := f.svc.SendPasswordResetOTP(ctx, f.user.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wrong := "000000"
		if f.mailer.lastOTP() == wrong {
			wrong = "000001"
		}
		err := f.svc.ResetPassword(ctx, f.user.ID, wrong, "new-password-1")
		assertAppError(t, err, http.StatusBadRequest, "Invalid or expired code")
	})
}

func assertAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperrors.Error, got %T: %v", err, err)
	}
	if appErr.StatusCode != status || appErr.Message != message {
		t.Fatalf("expected %d %q, got %d %q", status, message, appErr.StatusCode, appErr.Message)
	}
}
