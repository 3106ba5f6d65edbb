// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/swsphn/github-tools/internal/api"
)

// maxResponseSize is maximum size of API response body which is read.
const maxResponseSize = 1 << 20

// Client makes GitHub REST API requests authenticated as app, using
// a signed assertion. It discovers app installations and creates
// installation access tokens.
//
// Client does not hold any credentials, every method takes the
// assertion to use.
type Client struct {
	baseURL *url.URL          // REST API v3 base URL
	next    http.RoundTripper // next round tripper
	ua      string            // user agent
	logger  *slog.Logger      // logger
	clock   Clock             // clock
}

// NewClient returns a new [Client]. Only [WithEndpoint], [WithRoundTripper],
// [WithUserAgent], [WithLogger] and [WithClock] options apply to the client,
// other options are ignored.
func NewClient(opts ...Option) (*Client, error) {
	c, err := newConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("githubtools: %w", err)
	}
	return newClient(c), nil
}

func newClient(c *config) *Client {
	return &Client{
		baseURL: c.baseURL,
		next:    c.next,
		ua:      c.ua,
		logger:  c.logger,
		clock:   c.clock,
	}
}

// Endpoint returns REST API endpoint used by the client.
func (c *Client) Endpoint() string {
	return c.baseURL.String()
}

// do makes a request authenticated with the assertion and returns response body
// and headers. Responses with non 2xx status are returned as [UpstreamError].
func (c *Client) do(ctx context.Context, method string, u *url.URL, assertion SignedAssertion, payload []byte) ([]byte, http.Header, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	r, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}

	if payload != nil {
		r.Header.Set(api.ContentTypeHeader, api.ContentTypeJSON)
	}

	client := http.Client{
		Transport: &assertionTransport{
			assertion: assertion,
			host:      c.baseURL.Host,
			ua:        c.ua,
			next:      c.next,
		},
	}

	c.logger.DebugContext(ctx, "sending request",
		slog.String("method", method),
		slog.String("url", u.String()))

	resp, err := client.Do(r)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.DebugContext(ctx, "received response",
		slog.String("method", method),
		slog.String("url", u.String()),
		slog.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := &UpstreamError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}

		// Try to decode error message if possible.
		// GitHub API error response JSON is inconsistent.
		errResp := api.ErrorResponse{}
		if json.Unmarshal(data, &errResp) == nil {
			upstream.Message = errResp.Message
		}
		return nil, nil, upstream
	}

	return data, resp.Header, nil
}

// nextPage returns URL of the next page from the Link header, or nil
// if there are no more pages. Relative links are resolved against the endpoint.
//
// https://docs.github.com/en/rest/using-the-rest-api/using-pagination-in-the-rest-api
func (c *Client) nextPage(header http.Header) (*url.URL, error) {
	for _, part := range strings.Split(header.Get(api.LinkHeader), ",") {
		// Each part is: <url>; rel="type"
		link, params, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok || !strings.Contains(params, `rel="next"`) {
			continue
		}

		link = strings.TrimSpace(link)
		if !strings.HasPrefix(link, "<") || !strings.HasSuffix(link, ">") {
			return nil, fmt.Errorf("invalid link: %s", link)
		}

		next, err := url.Parse(link[1 : len(link)-1])
		if err != nil {
			return nil, fmt.Errorf("invalid link: %w", err)
		}
		return c.baseURL.ResolveReference(next), nil
	}
	return nil, nil
}
