package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/anivouch/anivouch/internal/apperrors"
	"github.com/anivouch/anivouch/internal/auth"
	"github.com/anivouch/anivouch/internal/domain"
	"github.com/anivouch/anivouch/internal/event"
	"github.com/anivouch/anivouch/internal/mail"
	"github.com/anivouch/anivouch/internal/storage"
)

// VerificationService issues and redeems email-verification links and
// password-reset OTPs.
type VerificationService struct {
	users         storage.UserRepository
	sessions      storage.SessionRepository
	verifications storage.VerificationRepository
	mailer        mail.Mailer
	publisher     event.Publisher

	frontendURL string
	verifyTTL   time.Duration
	otpTTL      time.Duration
}

func NewVerificationService(
	users storage.UserRepository,
	sessions storage.SessionRepository,
	verifications storage.VerificationRepository,
	mailer mail.Mailer,
	publisher event.Publisher,
	frontendURL string,
	verifyTTL, otpTTL time.Duration,
) *VerificationService {
	return &VerificationService{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		mailer:        mailer,
		publisher:     publisher,
		frontendURL:   frontendURL,
		verifyTTL:     verifyTTL,
		otpTTL:        otpTTL,
	}
}

// SendVerificationEmail issues a fresh verification token and mails it as a
// link.
func (s *VerificationService) SendVerificationEmail(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return apperrors.New("Email is already verified", http.StatusBadRequest)
	}

	token, err := domain.GenerateTokenString()
	if err != nil {
		return err
	}

	v := domain.NewVerification(user.ID, domain.PurposeEmailVerify, auth.HashToken(token), s.verifyTTL)
	if err := s.verifications.Create(ctx, v); err != nil {
		return err
	}

	link := s.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Name, link); err != nil {
		return apperrors.New("Failed to send verification email", http.StatusInternalServerError)
	}
	return nil
}

// VerifyEmail redeems a mailed verification token.
func (s *VerificationService) VerifyEmail(ctx context.Context, rawToken string) error {
	v, err := s.verifications.GetActiveByHash(ctx, domain.PurposeEmailVerify, auth.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.New("Invalid or expired verification link", http.StatusBadRequest)
		}
		return err
	}

	if err := s.verifications.Consume(ctx, v.ID); err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(ctx, v.UserID); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, v.UserID)
	if err == nil {
		_ = s.publisher.Publish(ctx, domain.EmailVerifiedEvent(user))
	}
	return nil
}

// SendPasswordResetOTP issues a fresh one-time code and mails it.
func (s *VerificationService) SendPasswordResetOTP(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		return err
	}

	v := domain.NewVerification(user.ID, domain.PurposePasswordReset, auth.HashToken(otp), s.otpTTL)
	if err := s.verifications.Create(ctx, v); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordResetOTP(ctx, user.Email, user.Name, otp); err != nil {
		return apperrors.New("Failed to send verification OTP", http.StatusInternalServerError)
	}
	return nil
}

// ResetPassword redeems a one-time code and replaces the user's password.
// Every session is revoked so a stolen refresh token dies with the old
// password.
func (s *VerificationService) ResetPassword(ctx context.Context, userID uuid.UUID, otp, newPassword string) error {
	if err := auth.ValidatePasswordStrength(newPassword); err != nil {
		return domain.ValidationError{Field: "password", Message: err.Error()}
	}

	v, err := s.verifications.GetActive(ctx, userID, domain.PurposePasswordReset)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.New("Invalid or expired code", http.StatusBadRequest)
		}
		return err
	}

	if !auth.VerifyOTPHash(otp, v.ValueHash) {
		return apperrors.New("Invalid or expired code", http.StatusBadRequest)
	}

	if err := s.verifications.Consume(ctx, v.ID); err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return err
	}

	_ = s.sessions.RevokeAllForUser(ctx, userID)
	_ = s.publisher.Publish(ctx, domain.PasswordResetEvent(userID))
	return nil
}

// CleanupExpired removes expired and consumed verifications.
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.verifications.DeleteExpired(ctx)
}
