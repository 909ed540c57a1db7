package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/radixapp/radix/internal/database"
	"github.com/radixapp/radix/internal/domain"
)

// AuthHandler implements the internal adapter API the NextAuth
// frontend uses to persist users, accounts and sessions. Every route
// is guarded by the shared service token.
type AuthHandler struct {
	users  *database.UserRepository
	logger *slog.Logger
}

func NewAuthHandler(users *database.UserRepository, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger}
}

// CreateUser handles POST /internal/auth/user
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email         string     `json:"email"`
		Name          string     `json:"name"`
		Image         string     `json:"image"`
		EmailVerified *time.Time `json:"emailVerified"`
		AccessToken   string     `json:"accessToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user := &domain.User{
		ID:            uuid.New(),
		Email:         input.Email,
		Name:          input.Name,
		Image:         input.Image,
		EmailVerified: input.EmailVerified,
		AccessToken:   input.AccessToken,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.logger.Error("create user failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /internal/auth/user/{id}
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.respondUserLookup(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUserByEmail handles GET /internal/auth/user-by-email/{email}
func (h *AuthHandler) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByEmail(r.Context(), r.PathValue("email"))
	if err != nil {
		h.respondUserLookup(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUserByAccount handles GET /internal/auth/user-by-account/{provider}/{id}
func (h *AuthHandler) GetUserByAccount(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByAccount(r.Context(), r.PathValue("provider"), r.PathValue("id"))
	if err != nil {
		h.respondUserLookup(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) respondUserLookup(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	h.logger.Error("user lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to look up user")
}

// LinkAccount handles POST /internal/auth/account
func (h *AuthHandler) LinkAccount(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID  uuid.UUID      `json:"userId"`
		Account domain.Account `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.users.AddAccount(r.Context(), input.UserID, input.Account); err != nil {
		h.logger.Error("link account failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to link account")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "linked"})
}

// CreateSession handles POST /internal/auth/session
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var session domain.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if session.SessionToken == "" {
		writeError(w, http.StatusBadRequest, "sessionToken is required")
		return
	}

	if err := h.users.CreateSession(r.Context(), session); err != nil {
		h.logger.Error("create session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// GetSessionAndUser handles GET /internal/auth/session/{token}
func (h *AuthHandler) GetSessionAndUser(w http.ResponseWriter, r *http.Request) {
	result, err := h.users.GetSessionAndUser(r.Context(), r.PathValue("token"))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("get session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DeleteSession handles DELETE /internal/auth/session/{token}
func (h *AuthHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteSession(r.Context(), r.PathValue("token")); err != nil {
		h.logger.Error("delete session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
