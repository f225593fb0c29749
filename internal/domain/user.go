package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider identifies how an account authenticates.
type Provider string

const (
	ProviderCredential Provider = "credential"
	ProviderGoogle     Provider = "google"
)

// Valid returns true if the Provider is recognized.
func (p Provider) Valid() bool {
	switch p {
	case ProviderCredential, ProviderGoogle:
		return true
	}
	return false
}

var usernameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// User is the core domain entity representing an AniVouch account.
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	Name         string
	PasswordHash string // empty for OAuth-only accounts; never expose externally
	Provider     Provider
	Image        string

	EmailVerified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser builds a validated credential-based user. The password hash is set
// separately by the service layer.
func NewUser(email, username, name string) (*User, error) {
	u := &User{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Username:  strings.TrimSpace(username),
		Name:      strings.TrimSpace(name),
		Provider:  ProviderCredential,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// NewGoogleUser builds a user provisioned from a verified Google identity.
// Google accounts arrive with a verified email and no password.
func NewGoogleUser(email, username, name, image string) (*User, error) {
	u := &User{
		ID:            uuid.New(),
		Email:         strings.ToLower(strings.TrimSpace(email)),
		Username:      strings.TrimSpace(username),
		Name:          strings.TrimSpace(name),
		Provider:      ProviderGoogle,
		Image:         image,
		EmailVerified: true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Validate() error {
	var errs ValidationErrors

	if u.Email == "" {
		errs = append(errs, ValidationError{Field: "email", Message: "required"})
	} else if _, err := mail.ParseAddress(u.Email); err != nil {
		errs = append(errs, ValidationError{Field: "email", Message: "Please enter a valid email address"})
	}

	errs = append(errs, validateUsername(u.Username)...)

	if u.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "required"})
	} else if len(u.Name) > 100 {
		errs = append(errs, ValidationError{Field: "name", Message: "must be at most 100 characters"})
	}

	if !u.Provider.Valid() {
		errs = append(errs, ValidationError{Field: "provider", Message: "invalid provider"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateUsername checks a candidate username against the account rules.
func ValidateUsername(username string) error {
	if errs := validateUsername(strings.TrimSpace(username)); len(errs) > 0 {
		return errs
	}
	return nil
}

func validateUsername(username string) ValidationErrors {
	var errs ValidationErrors

	switch {
	case username == "":
		errs = append(errs, ValidationError{Field: "username", Message: "required"})
	case len(username) < 3:
		errs = append(errs, ValidationError{Field: "username", Message: "Username must be at least 3 characters long"})
	case len(username) > 15:
		errs = append(errs, ValidationError{Field: "username", Message: "Username must be at most 15 characters long"})
	case !usernameRe.MatchString(username):
		errs = append(errs, ValidationError{Field: "username", Message: "Username can only contain letters, numbers, and underscores"})
	}

	return errs
}

// VerifyEmail marks the account's email as verified.
func (u *User) VerifyEmail() {
	u.EmailVerified = true
	u.UpdatedAt = time.Now().UTC()
}

// HasPassword reports whether the account can sign in with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
