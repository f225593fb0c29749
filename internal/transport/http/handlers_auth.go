package http

import (
	"net/http"
	"net/url"

	"github.com/anivouch/anivouch/internal/apperrors"
	"github.com/anivouch/anivouch/internal/auth"
	"github.com/anivouch/anivouch/internal/service"
)

// Health check

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         userResponse `json:"user"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err, map[string]any{"operation": "signUp"})
		return
	}

	result, err := s.authService.SignUp(r.Context(), service.SignUpInput{
		Name:      req.Name,
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "signUp", "email": req.Email})
		return
	}

	s.writeJSON(w, http.StatusCreated, toAuthResponse(result))
}

type emailSignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignInEmail(w http.ResponseWriter, r *http.Request) {
	var req emailSignInRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err, map[string]any{"operation": "signInEmail"})
		return
	}

	result, err := s.authService.SignInEmail(r.Context(), service.SignInInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "signInEmail"})
		return
	}

	s.writeJSON(w, http.StatusOK, toAuthResponse(result))
}

type usernameSignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignInUsername(w http.ResponseWriter, r *http.Request) {
	var req usernameSignInRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err, map[string]any{"operation": "signInUsername"})
		return
	}

	result, err := s.authService.SignInUsername(r.Context(), service.SignInInput{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "signInUsername"})
		return
	}

	s.writeJSON(w, http.StatusOK, toAuthResponse(result))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err, map[string]any{"operation": "refresh"})
		return
	}

	result, err := s.authService.Refresh(r.Context(), service.RefreshInput{
		RefreshToken: req.RefreshToken,
		IPAddress:    getClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "refresh"})
		return
	}

	s.writeJSON(w, http.StatusOK, toAuthResponse(result))
}

type signOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var req signOutRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err, map[string]any{"operation": "signOut"})
		return
	}

	if err := s.authService.SignOut(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, err, map[string]any{"operation": "signOut"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Signed out successfully"})
}

// Google OAuth

const oauthStateCookie = "oauth_state"

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if !s.authService.GoogleEnabled() {
		s.writeError(w, apperrors.New("Google sign-in is not enabled", http.StatusNotFound), map[string]any{
			"operation": "googleStart",
		})
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "googleStart"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.authService.GoogleAuthURL(state), http.StatusTemporaryRedirect)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !s.authService.GoogleEnabled() {
		s.writeError(w, apperrors.New("Google sign-in is not enabled", http.StatusNotFound), map[string]any{
			"operation": "googleCallback",
		})
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		s.writeError(w, auth.NewAPIError("Invalid OAuth state", http.StatusUnauthorized), map[string]any{
			"operation": "googleCallback",
		})
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	result, err := s.authService.GoogleSignIn(r.Context(), r.URL.Query().Get("code"), getClientIP(r), r.UserAgent())
	if err != nil {
		http.Redirect(w, r, s.frontendURL+"/login?error="+url.QueryEscape(err.Error()), http.StatusTemporaryRedirect)
		return
	}

	// Tokens travel in the fragment so they never hit server logs.
	redirect := s.frontendURL + "/auth/callback#access_token=" + url.QueryEscape(result.AccessToken) +
		"&refresh_token=" + url.QueryEscape(result.RefreshToken)
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}

// Email verification and password reset

func (s *Server) handleSendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	claims := getUserClaims(r.Context())

	if err := s.verificationService.SendVerificationEmail(r.Context(), claims.UserID); err != nil {
		s.writeError(w, err, map[string]any{"operation": "sendVerificationEmail", "user_id": claims.UserID})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Verification email sent"})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(w, apperrors.New("Verification token is required", http.StatusBadRequest), map[string]any{
			"operation": "verifyEmail",
		})
		return
	}

	if err := s.verificationService.VerifyEmail(r.Context(), token); err != nil {
		s.writeError(w, err, map[string]any{"operation": "verifyEmail"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

func (s *Server) handleSendVerificationOTP(w http.ResponseWriter, r *http.Request) {
	claims := getUserClaims(r.Context())

	if err := s.verificationService.SendPasswordResetOTP(r.Context(), claims.UserID); err != nil {
		s.writeError(w, err, map[string]any{"operation": "sendVerificationOTP", "user_id": claims.UserID})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Verification OTP sent"})
}

type resetPasswordRequest struct {
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	claims := getUserClaims(r.Context())

	var req resetPasswordRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err, map[string]any{"operation": "resetPassword", "user_id": claims.UserID})
		return
	}

	if err := s.verificationService.ResetPassword(r.Context(), claims.UserID, req.OTP, req.Password); err != nil {
		s.writeError(w, err, map[string]any{"operation": "resetPassword", "user_id": claims.UserID})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

func toAuthResponse(result *service.LoginResult) authResponse {
	return authResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresInSeconds,
		User:         toUserResponse(result.User),
	}
}
