// Package resolver is the client for the external contact-resolution
// collaborator, used to look up an email address for a recipient that
// arrived without one.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	requestTimeout = 10 * time.Second
	maxAttempts    = 3
)

// Client resolves contact emails over HTTP. Lookups are rate limited and
// retried with bounded backoff; a miss is an empty string, not an error.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		// one lookup per two seconds keeps us polite to the collaborator
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

type resolveResponse struct {
	Email string `json:"email"`
}

// ResolveEmail asks the collaborator for a contact address at the given
// organization. Returns "" when nothing was found.
func (c *Client) ResolveEmail(ctx context.Context, organization, name string) (string, error) {
	if c.baseURL == "" {
		return "", nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/resolve?organization=%s&name=%s",
		c.baseURL, url.QueryEscape(organization), url.QueryEscape(name))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		email, retry, err := c.doLookup(ctx, endpoint)
		if err == nil {
			return email, nil
		}
		lastErr = err
		if !retry {
			break
		}
		wait := time.Duration(attempt*attempt) * time.Second
		logrus.Debugf("Lookup attempt %d/%d failed, waiting %v: %v", attempt, maxAttempts, wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("resolve email for %s: %w", organization, lastErr)
}

// doLookup performs one request. retry is true for server-side and
// rate-limit responses.
func (c *Client) doLookup(ctx context.Context, endpoint string) (email string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", true, fmt.Errorf("lookup returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("lookup returned %d", resp.StatusCode)
	}

	var body resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("decode lookup response: %w", err)
	}
	return body.Email, false, nil
}
