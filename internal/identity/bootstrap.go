package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/showcaselabs/showcase-go/internal/store"
)

// EnsureAdmin creates the configured bootstrap admin account when it
// does not exist yet. A blank username disables bootstrapping. An
// existing account with the same username is left untouched.
func EnsureAdmin(ctx context.Context, users store.UserStore, auth *UserAuth, username, password string, logger *slog.Logger) error {
	if username == "" {
		return nil
	}
	if password == "" {
		return fmt.Errorf("bootstrap admin %q has no password configured", username)
	}

	_, err := users.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash bootstrap admin password: %w", err)
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
		CreatedAt:    time.Now(),
	}
	if err := users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent bootstrap; the account exists.
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	logger.Info("bootstrap admin created", "username", username)
	return nil
}
