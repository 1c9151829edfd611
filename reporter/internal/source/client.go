package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/obsidianstack/slareport/reporter/internal/apperr"
	"github.com/obsidianstack/slareport/reporter/internal/config"
	"github.com/obsidianstack/slareport/reporter/internal/fetch"
)

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 512

// authRoundTripper injects the upstream's Authorization header into every
// outgoing request.
type authRoundTripper struct {
	base  http.RoundTripper
	mode  string
	token string
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var value string
	switch t.mode {
	case "token":
		value = "Token token=" + t.token
	case "bearer":
		value = "Bearer " + t.token
	case "oauth":
		value = "OAuth " + t.token
	default:
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", value)
	return t.base.RoundTrip(req)
}

// client is the JSON-over-HTTP plumbing shared by every source.
type client struct {
	name    string
	http    *http.Client
	base    *url.URL
	limiter *rate.Limiter
	fanout  fetch.Fanout
}

// newClient builds a client for src. defaultBase is used when src.BaseURL is
// empty.
func newClient(name, defaultBase string, src config.Source, fc config.FetchConfig) (*client, error) {
	raw := src.BaseURL
	if raw == "" {
		raw = defaultBase
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("source %s: parse base url: %w", name, err)
	}

	c := &client{
		name: name,
		http: &http.Client{
			Transport: &authRoundTripper{base: http.DefaultTransport, mode: src.Auth.Mode, token: src.Auth.Token()},
			Timeout:   fc.HTTPTimeout,
		},
		base:   base,
		fanout: fetch.Fanout{Limit: fc.Concurrency, Timeout: fc.OpTimeout},
	}
	if fc.RatePerSecond > 0 {
		burst := fc.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(fc.RatePerSecond), burst)
	}
	return c, nil
}

// getJSON GETs base+path with query and decodes the body into out.
func (c *client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	op := c.name + " GET " + path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", op, err)
		}
	}

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Transport(op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperr.Transport(op, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Schema(op, "decode body", err)
	}
	return nil
}

// parseTime parses an RFC 3339 upstream timestamp into UTC.
func parseTime(op, field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, apperr.Schema(op, fmt.Sprintf("field %s: bad timestamp %q", field, s), err)
	}
	return t.UTC(), nil
}

// parseOptionalTime is parseTime for nullable fields; nil stays nil.
func parseOptionalTime(op, field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(op, field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
