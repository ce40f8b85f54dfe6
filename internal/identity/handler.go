package identity

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/appctx"
	"github.com/showcaselabs/showcase-go/internal/store"
)

// Handler exposes the auth endpoints.
type Handler struct {
	users  store.UserStore
	auth   *UserAuth
	tokens *TokenIssuer
}

// NewHandler creates an auth handler.
func NewHandler(users store.UserStore, auth *UserAuth, tokens *TokenIssuer) *Handler {
	return &Handler{users: users, auth: auth, tokens: tokens}
}

// CredentialsRequest is the register and login body.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}

// UserView is the public shape of a user.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

func userView(u *store.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
}

// HandleRegister handles POST /api/v1/auth/register. The first account
// ever created becomes an admin.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "username and password are required")
		return
	}

	ctx := r.Context()

	count, err := h.users.CountUsers(ctx)
	if err != nil {
		log.Error("count users failed", "error", err)
		api.WriteInternalError(w, "registration failed")
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		log.Error("password hashing failed", "error", err)
		api.WriteInternalError(w, "registration failed")
		return
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		IsAdmin:      count == 0,
		CreatedAt:    time.Now(),
	}
	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			api.WriteConflict(w, api.ReasonConflict, "username already taken")
			return
		}
		log.Error("create user failed", "error", err)
		api.WriteInternalError(w, "registration failed")
		return
	}

	log.Info("user registered", "username", user.Username, "is_admin", user.IsAdmin)

	h.writeToken(w, log, user, http.StatusCreated)
}

// HandleLogin handles POST /api/v1/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "username and password are required")
		return
	}

	user, err := h.auth.Authenticate(r.Context(), h.users, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidPassword) {
			// One reason for both cases so usernames can't be probed.
			api.WriteUnauthorized(w, api.ReasonInvalidCredentials, "invalid username or password")
			return
		}
		log.Error("login failed", "error", err)
		api.WriteInternalError(w, "login failed")
		return
	}

	log.Info("user logged in", "username", user.Username)

	h.writeToken(w, log, user, http.StatusOK)
}

// HandleMe handles GET /api/v1/auth/me. Requires RequireAuth upstream.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	user, err := h.users.GetUser(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "user not found")
			return
		}
		appctx.GetLogger(r.Context()).Error("load user failed", "error", err)
		api.WriteInternalError(w, "failed to load user")
		return
	}

	api.WriteJSON(w, http.StatusOK, userView(user))
}

func (h *Handler) writeToken(w http.ResponseWriter, log *slog.Logger, user *store.User, status int) {
	token, expiresAt, err := h.tokens.Issue(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		log.Error("token issuance failed", "error", err)
		api.WriteInternalError(w, "failed to issue token")
		return
	}

	api.WriteJSON(w, status, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      userView(user),
	})
}
