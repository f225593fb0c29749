package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const googleIssuer = "https://accounts.google.com"

// GoogleConfig holds the OAuth client registration for Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleIdentity is the subset of verified ID-token claims the service needs
// to provision or match an account.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleVerifier drives the authorization-code flow against Google and
// verifies the returned ID token.
type GoogleVerifier struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers Google's OIDC endpoints and prepares the
// OAuth2 config. Called once at startup.
func NewGoogleVerifier(ctx context.Context, cfg GoogleConfig) (*GoogleVerifier, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("discover google oidc provider: %w", err)
	}

	return &GoogleVerifier{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// GenerateState returns a random CSRF state value for the redirect.
func GenerateState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// AuthCodeURL builds the provider redirect URL carrying the CSRF state.
func (g *GoogleVerifier) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// Exchange swaps the callback code for tokens, verifies the ID token, and
// extracts the identity claims.
func (g *GoogleVerifier) Exchange(ctx context.Context, code string) (*GoogleIdentity, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, NewAPIError("Google sign-in failed", http.StatusUnauthorized)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, NewAPIError("Google sign-in failed", http.StatusUnauthorized)
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, NewAPIError("Google sign-in failed", http.StatusUnauthorized)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, NewAPIError("Google sign-in failed", http.StatusUnauthorized)
	}

	return &GoogleIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
