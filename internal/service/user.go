package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/anivouch/anivouch/internal/domain"
	"github.com/anivouch/anivouch/internal/event"
	"github.com/anivouch/anivouch/internal/storage"
)

// UserService handles profile operations.
type UserService struct {
	users     storage.UserRepository
	publisher event.Publisher
}

func NewUserService(users storage.UserRepository, publisher event.Publisher) *UserService {
	return &UserService{users: users, publisher: publisher}
}

// Me returns the authenticated user's account.
func (s *UserService) Me(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByIdentifier returns a user's public profile by email or username.
func (s *UserService) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return s.users.GetByIdentifier(ctx, strings.TrimSpace(identifier))
}

// UpdateUsername changes the authenticated user's username. The changed
// return is false when the requested name equals the current one, which is
// not an error. A name taken by another account propagates as the unique
// violation for the boundary to classify.
func (s *UserService) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (changed bool, err error) {
	username = strings.TrimSpace(username)
	if err := domain.ValidateUsername(username); err != nil {
		return false, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if user.Username == username {
		return false, nil
	}

	if err := s.users.UpdateUsername(ctx, id, username); err != nil {
		return false, err
	}

	_ = s.publisher.Publish(ctx, domain.UsernameChangedEvent(id, username))
	return true, nil
}
