////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package backend is the JSON REST client for the social backend. Every
// response is wrapped in an envelope; failures come back as *Error with a
// Class the caller can branch on.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// TokenSource supplies the bearer token for authenticated calls. An empty
// token with a nil error means the user is logged out.
type TokenSource interface {
	Token() (string, error)
}

// Params configures a Client.
type Params struct {
	// BaseURL is the API root, e.g. https://api.example.com/api/v1.
	BaseURL string

	// Timeout bounds each request. Zero leaves requests to their context.
	Timeout time.Duration

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64

	UserAgent string
}

// GetDefaultParams returns the default client parameters. BaseURL must still
// be set.
func GetDefaultParams() Params {
	return Params{
		Timeout:          30 * time.Second,
		MaxResponseBytes: 8 << 20,
		UserAgent:        "heartline-client",
	}
}

// envelope is the wrapper around every response body.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client calls the backend. It is safe for concurrent use.
type Client struct {
	params Params
	base   *url.URL
	http   *http.Client
	tokens TokenSource
}

// NewClient builds a client for p.BaseURL. tokens may be nil for a client
// that only makes unauthenticated calls.
func NewClient(p Params, tokens TokenSource) (*Client, error) {
	if p.BaseURL == "" {
		return nil, errors.New("no backend URL configured")
	}
	base, err := url.Parse(strings.TrimRight(p.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid backend URL %q", p.BaseURL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("backend URL %q must be http or https",
			p.BaseURL)
	}
	if p.MaxResponseBytes <= 0 {
		p.MaxResponseBytes = GetDefaultParams().MaxResponseBytes
	}
	return &Client{
		params: p,
		base:   base,
		http:   &http.Client{Timeout: p.Timeout},
		tokens: tokens,
	}, nil
}

// call sends in as JSON (when non-nil) and decodes the envelope's data into
// out (when non-nil).
func (c *Client) call(ctx context.Context, method, path string, query url.Values,
	in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s %s", method, path)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values,
	body io.Reader, contentType string, out interface{}) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrapf(err, "failed to build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.params.UserAgent != "" {
		req.Header.Set("User-Agent", c.params.UserAgent)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return errors.WithMessage(err, "failed to load session token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	jww.TRACE.Printf("[API] %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return transient(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.params.MaxResponseBytes))
	if err != nil {
		return transient(err, "failed to read %s %s response", method, path)
	}

	var env envelope
	if len(raw) > 0 {
		if err = json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 400 {
				return classify(resp.StatusCode, "",
					strings.TrimSpace(string(raw)))
			}
			return transient(err, "undecodable %s %s response", method, path)
		}
	}

	if resp.StatusCode >= 400 || (len(raw) > 0 && !env.Success) {
		e := classify(resp.StatusCode, env.Code, env.Message)
		jww.DEBUG.Printf("[API] %s %s: %s", method, path, e)
		return e
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err = json.Unmarshal(env.Data, out); err != nil {
		return transient(err, "undecodable %s %s data", method, path)
	}
	return nil
}
