// Package graphauth exchanges per-tenant client credentials for directory
// API bearer tokens. The client secret is resolved from the vault on every
// exchange; issued tokens are cached (L1 in-memory, optional L2 Redis) and
// concurrent fetches for the same tenant collapse through singleflight.
package graphauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/internal/infrastructure/secrets"
	"github.com/turtacn/possync/pkg/constants"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// TokenProvider resolves a bearer token for one tenant's directory API access.
type TokenProvider interface {
	Token(ctx context.Context, tenant models.Tenant) (string, error)
}

// ClientCredentialProvider implements TokenProvider via the OAuth2
// client-credentials flow against the directory's login endpoint.
type ClientCredentialProvider struct {
	secrets    secrets.Provider
	httpClient *http.Client
	loginHost  string
	scope      string

	l1    *gocache.Cache
	redis *redis.Client // optional L2, nil-guarded
	sf    singleflight.Group

	logger logger.Logger
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewClientCredentialProvider creates a new ClientCredentialProvider.
// redisClient may be nil; the provider then runs with the in-memory cache only.
func NewClientCredentialProvider(cfg config.GraphConfig, sp secrets.Provider, redisClient *redis.Client, log logger.Logger) *ClientCredentialProvider {
	return &ClientCredentialProvider{
		secrets:    sp,
		httpClient: &http.Client{Timeout: constants.GraphHTTPTimeout},
		loginHost:  strings.TrimRight(cfg.LoginHost, "/"),
		scope:      cfg.Scope,
		l1:         gocache.New(30*time.Minute, 10*time.Minute),
		redis:      redisClient,
		logger:     log.WithComponent("ClientCredentialProvider"),
	}
}

// Token returns a bearer token for the tenant, exchanging credentials when
// no cached token is available. A missing secret or a rejected exchange is
// an authentication error that fails the whole tenant's sync.
func (p *ClientCredentialProvider) Token(ctx context.Context, tenant models.Tenant) (string, error) {
	cacheKey := fmt.Sprintf("graph-token:%s:%s", tenant.TenantID, tenant.AppID)

	if tok, ok := p.l1.Get(cacheKey); ok {
		return tok.(string), nil
	}

	// Single flight to prevent a thundering herd when both of a tenant's
	// domain tasks start at once.
	tok, err, _ := p.sf.Do(cacheKey, func() (interface{}, error) {
		if p.redis != nil {
			if cached, err := p.redis.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
				p.l1.Set(cacheKey, cached, gocache.DefaultExpiration)
				return cached, nil
			}
		}

		resp, err := p.exchange(ctx, tenant)
		if err != nil {
			return nil, err
		}

		ttl := time.Duration(resp.ExpiresIn)*time.Second - constants.TokenCacheSkew
		if ttl > 0 {
			p.l1.Set(cacheKey, resp.AccessToken, ttl)
			if p.redis != nil {
				l2TTL := ttl
				if l2TTL > constants.TokenL2TTL {
					l2TTL = constants.TokenL2TTL
				}
				p.redis.Set(ctx, cacheKey, resp.AccessToken, l2TTL)
			}
		}
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return tok.(string), nil
}

// exchange performs the client-credentials POST for one tenant.
func (p *ClientCredentialProvider) exchange(ctx context.Context, tenant models.Tenant) (*tokenResponse, error) {
	clientSecret, err := p.secrets.GetSecret(ctx, tenant.SecretName)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", tenant.AppID)
	form.Set("client_secret", clientSecret)
	form.Set("scope", p.scope)

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginHost, tenant.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.ErrInternal("failed to build token request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.ErrTransient("token endpoint unreachable").WithCause(err)
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if httpResp.StatusCode != http.StatusOK {
		p.logger.Error(ctx, "credential exchange rejected", nil,
			logger.String("tenant_id", tenant.TenantID),
			logger.Int("status", httpResp.StatusCode),
		)
		return nil, errors.ErrAuthentication(
			fmt.Sprintf("credential exchange rejected with status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body))))
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.ErrAuthentication("malformed token response").WithCause(err)
	}
	if resp.AccessToken == "" {
		return nil, errors.ErrAuthentication("token response missing access_token")
	}

	p.logger.Info(ctx, "acquired bearer token",
		logger.String("tenant_id", tenant.TenantID),
		logger.Int("expires_in", resp.ExpiresIn),
	)
	return &resp, nil
}

var _ TokenProvider = (*ClientCredentialProvider)(nil)
