// Package graph implements the directory/compliance API client.
//
// Every logical fetch runs through two implementations: the primary typed
// client (automatic retry and pagination via retryablehttp) and a raw
// fallback transport (plain HTTP, explicit pagination). Policy: primary
// first; on an empty or unavailable result, fall back to the raw transport;
// an error surfaces only when both paths fail. A missing optional endpoint
// (404 on both paths) yields an empty result, not an error.
package graph

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/pkg/constants"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// retryStatuses are the transient HTTP responses the primary client retries.
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client fetches posture and assessment data for one tenant at a time.
// It is stateless with respect to tenants; the bearer token passed to each
// call carries the tenant binding.
type Client struct {
	primary  *retryablehttp.Client
	fallback *http.Client
	baseV1   string
	baseBeta string
	logger   logger.Logger
}

// NewClient creates a new directory API client.
func NewClient(cfg config.GraphConfig, log logger.Logger) *Client {
	primary := retryablehttp.NewClient()
	primary.RetryMax = constants.GraphRetryMax - 1 // attempts, not retries
	primary.RetryWaitMin = constants.GraphRetryWaitMin
	primary.RetryWaitMax = constants.GraphRetryWaitMax
	primary.HTTPClient.Timeout = constants.GraphHTTPTimeout
	primary.Logger = nil
	primary.CheckRetry = checkRetry
	// DefaultBackoff doubles the wait per attempt and honors Retry-After.
	primary.Backoff = retryablehttp.DefaultBackoff

	host := strings.TrimRight(cfg.APIHost, "/")
	return &Client{
		primary:  primary,
		fallback: &http.Client{Timeout: constants.GraphHTTPTimeout},
		baseV1:   host + "/v1.0",
		baseBeta: host + "/beta",
		logger:   log.WithComponent("GraphClient"),
	}
}

// checkRetry retries transient statuses on GET calls only.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
		return false, nil
	}
	if err != nil {
		return true, nil
	}
	return retryStatuses[resp.StatusCode], nil
}

// statusError carries the HTTP status of a failed call so callers can apply
// the per-endpoint 404 policy.
type statusError struct {
	status int
	url    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("graph call failed with status %d: %s", e.status, e.url)
}

func statusOf(err error) int {
	var se *statusError
	if stderrors.As(err, &se) {
		return se.status
	}
	return 0
}

// page is the paginated collection envelope returned by every list endpoint.
type page struct {
	Value    []map[string]any `json:"value"`
	NextLink string           `json:"@odata.nextLink"`
}

// ================================================================================
// Primary transport
// ================================================================================

func (c *Client) getPrimary(ctx context.Context, token, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.ErrInternal("failed to build graph request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.primary.Do(req)
	if err != nil {
		return nil, errors.ErrTransient("graph call failed after retries").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ErrTransient("failed reading graph response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, url: url}
	}
	return body, nil
}

// paginatePrimary follows the continuation link until absent and
// concatenates all pages in source order.
func (c *Client) paginatePrimary(ctx context.Context, token, url string) ([]map[string]any, error) {
	var items []map[string]any
	for url != "" {
		body, err := c.getPrimary(ctx, token, url)
		if err != nil {
			return nil, err
		}
		var pg page
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, errors.ErrTransient("malformed graph page").WithCause(err)
		}
		items = append(items, pg.Value...)
		url = pg.NextLink
	}
	return items, nil
}

// ================================================================================
// Fallback transport
// ================================================================================

func (c *Client) getFallback(ctx context.Context, token, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.ErrInternal("failed to build fallback request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.fallback.Do(req)
	if err != nil {
		return nil, errors.ErrTransient("fallback call failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ErrTransient("failed reading fallback response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, url: url}
	}
	return body, nil
}

// paginateFallback walks the continuation links explicitly, without retry.
func (c *Client) paginateFallback(ctx context.Context, token, url string) ([]map[string]any, error) {
	var items []map[string]any
	for url != "" {
		body, err := c.getFallback(ctx, token, url)
		if err != nil {
			return nil, err
		}
		var pg page
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, errors.ErrTransient("malformed fallback page").WithCause(err)
		}
		items = append(items, pg.Value...)
		url = pg.NextLink
	}
	return items, nil
}

// ================================================================================
// Reconciliation policy
// ================================================================================

// dualList applies the primary-first / fallback-second policy to a
// collection endpoint. Both paths reporting 404 is a data availability gap:
// the caller receives a not-found error to translate per its own endpoint
// policy (usually into an empty result).
func (c *Client) dualList(ctx context.Context, token, url string) ([]map[string]any, error) {
	items, perr := c.paginatePrimary(ctx, token, url)
	if perr == nil && len(items) > 0 {
		return items, nil
	}

	fitems, ferr := c.paginateFallback(ctx, token, url)
	if ferr == nil && len(fitems) > 0 {
		if perr == nil {
			c.logger.Debug(ctx, "primary returned empty, fallback had data", logger.String("url", url))
		}
		return fitems, nil
	}

	// Never fail a fetch just because one source returned nothing.
	if perr == nil || ferr == nil {
		return []map[string]any{}, nil
	}

	if statusOf(perr) == http.StatusNotFound && statusOf(ferr) == http.StatusNotFound {
		return nil, errors.ErrNotFound("endpoint not provisioned: " + url)
	}
	if statusOf(ferr) != http.StatusNotFound {
		return nil, errors.AsInfrastructure(ferr)
	}
	return nil, errors.AsInfrastructure(perr)
}

// dualObject applies the same policy to a single-object endpoint.
func (c *Client) dualObject(ctx context.Context, token, url string) (map[string]any, error) {
	decode := func(body []byte) (map[string]any, error) {
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, errors.ErrTransient("malformed graph object").WithCause(err)
		}
		return obj, nil
	}

	body, perr := c.getPrimary(ctx, token, url)
	if perr == nil {
		return decode(body)
	}

	body, ferr := c.getFallback(ctx, token, url)
	if ferr == nil {
		return decode(body)
	}

	if statusOf(perr) == http.StatusNotFound && statusOf(ferr) == http.StatusNotFound {
		return nil, errors.ErrNotFound("endpoint not provisioned: " + url)
	}
	if statusOf(ferr) != http.StatusNotFound {
		return nil, errors.AsInfrastructure(ferr)
	}
	return nil, errors.AsInfrastructure(perr)
}
