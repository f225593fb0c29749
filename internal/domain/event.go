package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event that occurred.
// Events are immutable facts about something that happened.
type Event struct {
	ID        uuid.UUID
	Type      string
	Timestamp time.Time
	UserID    uuid.UUID
	Data      map[string]any
}

// Event type constants
const (
	EventUserRegistered    = "user.registered"
	EventUserLoggedIn      = "user.logged_in"
	EventUserLoggedOut     = "user.logged_out"
	EventUserEmailVerified = "user.email_verified"
	EventUsernameChanged   = "user.username_changed"
	EventPasswordReset     = "user.password_reset"
)

// NewEvent creates a new domain event.
func NewEvent(eventType string, userID uuid.UUID, data map[string]any) Event {
	if data == nil {
		data = make(map[string]any)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Data:      data,
	}
}

func UserRegisteredEvent(u *User) Event {
	return NewEvent(EventUserRegistered, u.ID, map[string]any{
		"email":    u.Email,
		"username": u.Username,
		"provider": string(u.Provider),
	})
}

func UserLoggedInEvent(userID uuid.UUID, ipAddress, userAgent string) Event {
	return NewEvent(EventUserLoggedIn, userID, map[string]any{
		"ip_address": ipAddress,
		"user_agent": userAgent,
	})
}

func EmailVerifiedEvent(u *User) Event {
	return NewEvent(EventUserEmailVerified, u.ID, map[string]any{
		"email": u.Email,
	})
}

func UsernameChangedEvent(userID uuid.UUID, username string) Event {
	return NewEvent(EventUsernameChanged, userID, map[string]any{
		"username": username,
	})
}

func PasswordResetEvent(userID uuid.UUID) Event {
	return NewEvent(EventPasswordReset, userID, nil)
}
