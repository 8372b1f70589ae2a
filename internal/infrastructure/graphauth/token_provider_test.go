package graphauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

type staticSecrets struct {
	values map[string]string
}

func (s staticSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	v, ok := s.values[name]
	if !ok {
		return "", errors.ErrAuthentication("secret not found: " + name)
	}
	return v, nil
}

func testTenant() models.Tenant {
	return models.Tenant{
		TenantID:   "11111111-2222-3333-4444-555555555555",
		AppID:      "app-1",
		SecretName: "tenant-one",
	}
}

func tokenServer(t *testing.T, calls *atomic.Int32, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "s3cret", r.PostForm.Get("client_secret"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"expires_in":   expiresIn,
		})
	}))
}

func TestTokenExchangeAndCaching(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, 3600)
	defer srv.Close()

	p := NewClientCredentialProvider(
		config.GraphConfig{LoginHost: srv.URL, Scope: "https://example.com/.default"},
		staticSecrets{values: map[string]string{"tenant-one": "s3cret"}},
		nil, logger.NewNoopLogger())

	tok, err := p.Token(context.Background(), testTenant())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)

	// Second call is served from the in-memory cache.
	tok, err = p.Token(context.Background(), testTenant())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenConcurrentCallsCollapse(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, 3600)
	defer srv.Close()

	p := NewClientCredentialProvider(
		config.GraphConfig{LoginHost: srv.URL},
		staticSecrets{values: map[string]string{"tenant-one": "s3cret"}},
		nil, logger.NewNoopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := p.Token(context.Background(), testTenant())
			assert.NoError(t, err)
			assert.Equal(t, "tok-abc", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenShortExpiryIsNotCached(t *testing.T) {
	var calls atomic.Int32
	// expires_in below the refresh skew means the token must not be cached.
	srv := tokenServer(t, &calls, 60)
	defer srv.Close()

	p := NewClientCredentialProvider(
		config.GraphConfig{LoginHost: srv.URL},
		staticSecrets{values: map[string]string{"tenant-one": "s3cret"}},
		nil, logger.NewNoopLogger())

	for i := 0; i < 2; i++ {
		tok, err := p.Token(context.Background(), testTenant())
		require.NoError(t, err)
		assert.Equal(t, "tok-abc", tok)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenSecondLevelCacheHit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	tenant := testTenant()
	cacheKey := "graph-token:" + tenant.TenantID + ":" + tenant.AppID
	require.NoError(t, mr.Set(cacheKey, "tok-from-l2"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("exchange must not be called on an L2 hit")
	}))
	defer srv.Close()

	p := NewClientCredentialProvider(
		config.GraphConfig{LoginHost: srv.URL},
		staticSecrets{values: map[string]string{"tenant-one": "s3cret"}},
		rdb, logger.NewNoopLogger())

	tok, err := p.Token(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "tok-from-l2", tok)
}

func TestTokenExchangeWritesSecondLevelCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var calls atomic.Int32
	srv := tokenServer(t, &calls, 3600)
	defer srv.Close()

	p := NewClientCredentialProvider(
		config.GraphConfig{LoginHost: srv.URL},
		staticSecrets{values: map[string]string{"tenant-one": "s3cret"}},
		rdb, logger.NewNoopLogger())

	tenant := testTenant()
	tok, err := p.Token(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)

	cached, err := mr.Get("graph-token:" + tenant.TenantID + ":" + tenant.AppID)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", cached)
}

func TestRejectedExchangeIsAuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	p := NewClientCredentialProvider(
		config.GraphConfig{LoginHost: srv.URL},
		staticSecrets{values: map[string]string{"tenant-one": "bad"}},
		nil, logger.NewNoopLogger())

	_, err := p.Token(context.Background(), testTenant())
	require.Error(t, err)
	assert.True(t, errors.IsAuthentication(err))
	// Auth faults escape the task and are retried before the tenant fails.
	assert.True(t, errors.IsInfrastructure(err))
}

func TestMissingSecretFailsExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("exchange must not be attempted without a secret")
	}))
	defer srv.Close()

	p := NewClientCredentialProvider(
		config.GraphConfig{LoginHost: srv.URL},
		staticSecrets{},
		nil, logger.NewNoopLogger())

	_, err := p.Token(context.Background(), testTenant())
	require.Error(t, err)
	assert.True(t, errors.IsAuthentication(err))
}
