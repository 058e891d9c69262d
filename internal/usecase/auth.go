package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/gateway"
	"WhaleWatch/internal/session"
	"WhaleWatch/pkg/logger"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// AuthAPI is the part of the market API used for authentication.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Profile(ctx context.Context) (*models.Identity, error)
}

// SessionManager is implemented by *session.Store.
type SessionManager interface {
	Restore(ctx context.Context) models.Session
	Current() models.Session
	Set(ctx context.Context, identity models.Identity, token string) error
	Clear(ctx context.Context, reason string) error
	Subscribe(fn session.Listener) func()
}

// AuthUseCase establishes, verifies and ends sessions.
type AuthUseCase struct {
	api    AuthAPI
	store  SessionManager
	admins map[string]struct{}
	logger *logger.Logger
}

func NewAuthUseCase(api AuthAPI, store SessionManager, adminEmails []string, l *logger.Logger) *AuthUseCase {
	if l == nil {
		l = logger.Nop()
	}
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &AuthUseCase{api: api, store: store, admins: admins, logger: l}
}

func (uc *AuthUseCase) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	resp, err := uc.api.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return models.Session{}, err
	}
	return uc.establish(ctx, resp)
}

func (uc *AuthUseCase) Register(ctx context.Context, creds models.Credentials) (models.Session, error) {
	resp, err := uc.api.Register(ctx, creds.Email, creds.Password)
	if err != nil {
		return models.Session{}, err
	}
	return uc.establish(ctx, resp)
}

func (uc *AuthUseCase) establish(ctx context.Context, resp *models.AuthResponse) (models.Session, error) {
	if err := uc.store.Set(ctx, resp.User, resp.Token); err != nil {
		return models.Session{}, fmt.Errorf("store session: %w", err)
	}
	return uc.store.Current(), nil
}

func (uc *AuthUseCase) Logout(ctx context.Context) error {
	return uc.store.Clear(ctx, "logout")
}

// Verify checks the current credential against the server and refreshes the
// stored identity. A rejected credential has already cleared the session
// when ErrUnauthorized is returned.
func (uc *AuthUseCase) Verify(ctx context.Context) (models.Session, error) {
	cur := uc.store.Current()
	if !cur.Authenticated() {
		return models.Session{}, ErrNotAuthenticated
	}

	id, err := uc.api.Profile(ctx)
	if err != nil {
		return models.Session{}, err
	}
	if err := uc.store.Set(ctx, *id, cur.Token); err != nil {
		return models.Session{}, fmt.Errorf("store session: %w", err)
	}
	return uc.store.Current(), nil
}

// Bootstrap restores the persisted session and falls back to the given
// credentials when there is none or it was rejected. A verification that
// fails for any other reason keeps the restored session.
func (uc *AuthUseCase) Bootstrap(ctx context.Context, email, password string) (models.Session, error) {
	restored := uc.store.Restore(ctx)
	if restored.Authenticated() {
		sess, err := uc.Verify(ctx)
		switch {
		case err == nil:
			return sess, nil
		case !gateway.IsUnauthorized(err):
			uc.logger.Warn("could not verify restored session, keeping it", logger.Error(err))
			return uc.store.Current(), nil
		}
		uc.logger.Info("restored session was rejected")
	}

	if email == "" || password == "" {
		return models.Session{}, ErrNotAuthenticated
	}
	return uc.Login(ctx, models.Credentials{Email: email, Password: password})
}

// IsAdmin reports whether the identity has administrative rights.
func (uc *AuthUseCase) IsAdmin(id *models.Identity) bool {
	if id == nil {
		return false
	}
	if strings.EqualFold(id.Role, "admin") {
		return true
	}
	_, ok := uc.admins[strings.ToLower(strings.TrimSpace(id.Email))]
	return ok
}

// Current returns the session held in memory.
func (uc *AuthUseCase) Current() models.Session {
	return uc.store.Current()
}
