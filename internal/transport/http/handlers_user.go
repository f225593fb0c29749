package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anivouch/anivouch/internal/domain"
)

type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	Provider      string    `json:"provider"`
	Image         string    `json:"image,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// profileResponse is the public view of an account: no email, no
// verification state.
type profileResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := getUserClaims(r.Context())

	user, err := s.userService.Me(r.Context(), claims.UserID)
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "me", "user_id": claims.UserID})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

type updateUsernameRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	claims := getUserClaims(r.Context())

	var req updateUsernameRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err, map[string]any{"operation": "updateUsername", "user_id": claims.UserID})
		return
	}

	changed, err := s.userService.UpdateUsername(r.Context(), claims.UserID, req.Username)
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "updateUsername", "user_id": claims.UserID})
		return
	}

	message := "Username updated successfully"
	if !changed {
		message = "Username is the same as the current one"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	user, err := s.userService.GetByIdentifier(r.Context(), identifier)
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "getUser", "identifier": identifier})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"user": toProfileResponse(user)})
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:            user.ID.String(),
		Email:         user.Email,
		Username:      user.Username,
		Name:          user.Name,
		Provider:      string(user.Provider),
		Image:         user.Image,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}

func toProfileResponse(user *domain.User) profileResponse {
	return profileResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Name:      user.Name,
		Image:     user.Image,
		CreatedAt: user.CreatedAt,
	}
}
