package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/gateway"
	"WhaleWatch/internal/session"
	"WhaleWatch/pkg/cache"
)

type fakeAuthAPI struct {
	store      *session.Store
	profileErr error
	logins     int
}

func (f *fakeAuthAPI) Login(_ context.Context, email, password string) (*models.AuthResponse, error) {
	f.logins++
	if password != "secret" {
		return nil, &gateway.HTTPError{Status: 400, Message: "Invalid credentials"}
	}
	return &models.AuthResponse{Token: "fresh", User: models.Identity{ID: "7", Email: email}}, nil
}

func (f *fakeAuthAPI) Register(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	return f.Login(ctx, email, password)
}

func (f *fakeAuthAPI) Profile(ctx context.Context) (*models.Identity, error) {
	if f.profileErr != nil {
		if errors.Is(f.profileErr, gateway.ErrUnauthorized) {
			_ = f.store.Clear(ctx, "unauthorized")
		}
		return nil, f.profileErr
	}
	return &models.Identity{ID: "7", Email: "me@x.io", Name: "Me"}, nil
}

func newAuth(t *testing.T, backend cache.Service) (*AuthUseCase, *fakeAuthAPI, *session.Store) {
	t.Helper()
	store := session.NewStore(backend)
	api := &fakeAuthAPI{store: store}
	return NewAuthUseCase(api, store, []string{" Boss@X.io "}, nil), api, store
}

func TestAuth_LoginAndLogout(t *testing.T) {
	uc, _, store := newAuth(t, cache.NewMemoryCache())
	ctx := context.Background()

	_, err := uc.Login(ctx, models.Credentials{Email: "me@x.io", Password: "wrong"})
	var httpErr *gateway.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Invalid credentials", httpErr.Message)
	assert.False(t, store.Current().Authenticated())

	sess, err := uc.Login(ctx, models.Credentials{Email: "me@x.io", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", sess.Token)
	assert.Equal(t, "me@x.io", sess.Identity.Email)

	require.NoError(t, uc.Logout(ctx))
	assert.False(t, store.Current().Authenticated())
}

func TestAuth_VerifyRequiresSession(t *testing.T) {
	uc, _, _ := newAuth(t, cache.NewMemoryCache())
	_, err := uc.Verify(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuth_Bootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("restored session is verified", func(t *testing.T) {
		backend := cache.NewMemoryCache()
		seed := session.NewStore(backend)
		require.NoError(t, seed.Set(ctx, models.Identity{ID: "7", Email: "me@x.io"}, "stored"))

		uc, api, _ := newAuth(t, backend)
		sess, err := uc.Bootstrap(ctx, "me@x.io", "secret")
		require.NoError(t, err)
		assert.Equal(t, "stored", sess.Token)
		assert.Equal(t, "Me", sess.Identity.Name, "identity refreshed from profile")
		assert.Zero(t, api.logins)
	})

	t.Run("rejected session falls back to login", func(t *testing.T) {
		backend := cache.NewMemoryCache()
		seed := session.NewStore(backend)
		require.NoError(t, seed.Set(ctx, models.Identity{ID: "7", Email: "me@x.io"}, "stale"))

		uc, api, _ := newAuth(t, backend)
		api.profileErr = gateway.ErrUnauthorized
		sess, err := uc.Bootstrap(ctx, "me@x.io", "secret")
		require.NoError(t, err)
		assert.Equal(t, "fresh", sess.Token)
		assert.Equal(t, 1, api.logins)
	})

	t.Run("network failure keeps restored session", func(t *testing.T) {
		backend := cache.NewMemoryCache()
		seed := session.NewStore(backend)
		require.NoError(t, seed.Set(ctx, models.Identity{ID: "7", Email: "me@x.io"}, "stored"))

		uc, api, _ := newAuth(t, backend)
		api.profileErr = &gateway.NetworkError{Method: "GET", Path: "/auth/profile", Err: errors.New("refused")}
		sess, err := uc.Bootstrap(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, "stored", sess.Token)
	})

	t.Run("nothing stored and no credentials", func(t *testing.T) {
		uc, _, _ := newAuth(t, cache.NewMemoryCache())
		_, err := uc.Bootstrap(ctx, "", "")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestAuth_IsAdmin(t *testing.T) {
	uc, _, _ := newAuth(t, cache.NewMemoryCache())

	assert.False(t, uc.IsAdmin(nil))
	assert.True(t, uc.IsAdmin(&models.Identity{ID: "1", Role: "Admin"}))
	assert.True(t, uc.IsAdmin(&models.Identity{ID: "1", Email: "boss@x.io"}))
	assert.False(t, uc.IsAdmin(&models.Identity{ID: "1", Email: "intern@x.io", Role: "user"}))
}
