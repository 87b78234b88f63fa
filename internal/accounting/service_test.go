package accounting

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/angelmondragon/proppilot-backend/pkg/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newStateStore(t *testing.T, ttl time.Duration) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewFromURL("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	store, err := NewStateStore(client, ttl)
	require.NoError(t, err)
	return store, mr
}

func TestStateStoreConsumesOnce(t *testing.T) {
	store, _ := newStateStore(t, time.Minute)
	ctx := context.Background()
	orgID := uuid.New()

	state, err := store.Issue(ctx, orgID)
	require.NoError(t, err)
	require.NotEmpty(t, state)

	got, err := store.Consume(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, orgID, got)

	_, err = store.Consume(ctx, state)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateStoreExpires(t *testing.T) {
	store, mr := newStateStore(t, time.Minute)
	ctx := context.Background()

	state, err := store.Issue(ctx, uuid.New())
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = store.Consume(ctx, state)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestSealerRoundTripAndTamper(t *testing.T) {
	sealer, err := NewSealer("test-key")
	require.NoError(t, err)

	sealed, err := sealer.Seal("secret-token")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret-token")

	plain, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", plain)

	sealed[len(sealed)-1] ^= 0xff
	_, err = sealer.Open(sealed)
	assert.Error(t, err)

	other, _ := NewSealer("other-key")
	fresh, _ := sealer.Seal("secret-token")
	_, err = other.Open(fresh)
	assert.Error(t, err, "different key must not open")
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err == nil && r.Form.Get("grant_type") == "refresh_token" && r.Form.Get("refresh_token") == "rt-456" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at-789","token_type":"bearer","expires_in":3600}`))
			return
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","refresh_token":"rt-456","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T, tokenURL string) (*Service, *StateStore, Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.AccountingConnection{}))

	states, _ := newStateStore(t, time.Minute)
	sealer, err := NewSealer("test-key")
	require.NoError(t, err)
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Config: config.AccountingConfig{
			Provider:     "quickbooks",
			ClientID:     "client",
			ClientSecret: "secret",
			AuthURL:      "https://provider.example/authorize",
			TokenURL:     tokenURL,
			RedirectURL:  "https://app.example/api/v1/integrations/accounting/callback",
			Scopes:       []string{"accounting"},
		},
		States:     states,
		Repository: repo,
		Sealer:     sealer,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
	})
	require.NoError(t, err)
	return svc, states, repo
}

func TestBeginAndComplete(t *testing.T) {
	srv := newTokenServer(t)
	svc, _, repo := newService(t, srv.URL)
	ctx := context.Background()
	orgID := uuid.New()

	authURL, err := svc.Begin(ctx, orgID)
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "client", parsed.Query().Get("client_id"))

	conn, err := svc.Complete(ctx, state, "good-code", "realm-9")
	require.NoError(t, err)
	assert.Equal(t, orgID, conn.OrganizationID)
	assert.NotNil(t, conn.ExpiresAt)

	stored, err := repo.Get(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "realm-9", stored.RealmID)
	assert.NotContains(t, string(stored.AccessTokenEnc), "at-123")

	token, err := svc.AccessToken(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "at-123", token)

	_, err = svc.Complete(ctx, state, "good-code", "realm-9")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), "state is single use")
}

func TestCompleteRejectsUnknownState(t *testing.T) {
	srv := newTokenServer(t)
	svc, _, _ := newService(t, srv.URL)

	_, err := svc.Complete(context.Background(), "forged", "good-code", "")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCompleteSurfacesProviderError(t *testing.T) {
	srv := newTokenServer(t)
	svc, states, _ := newService(t, srv.URL)
	ctx := context.Background()

	state, err := states.Issue(ctx, uuid.New())
	require.NoError(t, err)
	_, err = svc.Complete(ctx, state, "bad-code", "")
	assert.Equal(t, pkgerrors.CodeProvider, pkgerrors.As(err).Code())
}

func TestAccessTokenNotConnected(t *testing.T) {
	srv := newTokenServer(t)
	svc, _, _ := newService(t, srv.URL)
	_, err := svc.AccessToken(context.Background(), uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestAccessTokenRefreshesExpiredToken(t *testing.T) {
	srv := newTokenServer(t)
	svc, states, repo := newService(t, srv.URL)
	ctx := context.Background()
	orgID := uuid.New()

	state, err := states.Issue(ctx, orgID)
	require.NoError(t, err)
	conn, err := svc.Complete(ctx, state, "good-code", "realm-1")
	require.NoError(t, err)

	expired := time.Now().Add(-time.Hour).UTC()
	conn.ExpiresAt = &expired
	require.NoError(t, repo.Upsert(ctx, conn))

	token, err := svc.AccessToken(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "at-789", token)

	stored, err := repo.Get(ctx, orgID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExpiresAt)
	assert.True(t, stored.ExpiresAt.After(time.Now()), "refreshed expiry stored")

	// the provider omitted a refresh token, so the old one is kept
	token, err = svc.AccessToken(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "at-789", token)
}
