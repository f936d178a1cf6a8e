package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/scangate/gateway/internal/auth"
	"github.com/scangate/gateway/internal/storage"
)

// expiredTier is reported instead of a user's real plan_type once
// expires_at has passed, so an expired subscription never lets a client
// keep behaving as if it were still on its paid tier.
const expiredTier = "expired"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Tier     string `json:"tier"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.db.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tier := user.PlanType
	if user.ExpiresAt.Valid && user.ExpiresAt.Time.Before(time.Now()) {
		tier = expiredTier
	}

	token, err := s.verifier.Issue(user.ID, user.Username, req.DeviceID, tier)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		Tier:     tier,
	})
}
