package idp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

const maxResponseBytes = 1 << 20

// ErrRejected is returned when the provider refuses the refresh token
// (HTTP 400, 401 or 403).
var ErrRejected = errors.New("idp: refresh token rejected")

// StatusError carries a non-2xx provider response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("idp: status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("idp: status %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return ErrRejected
	}
	return nil
}

// PublicKey is one verification key published by the provider.
type PublicKey struct {
	KeyID     string
	Algorithm string
	Key       []byte
}

// ClientConfig bounds the HTTP exchange with the provider.
type ClientConfig struct {
	BaseURL         string
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	// HTTPClient overrides the client built from the timeouts.
	HTTPClient *http.Client
}

// Client implements goGuard.IdentityProvider over HTTP.
type Client struct {
	base       *url.URL
	httpClient *http.Client
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type keysResponse struct {
	Keys []jsonKey `json:"keys"`
}

type jsonKey struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
	Key       string `json:"key"`
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse idp base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("idp base url must be http or https, got %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("idp base url has no host")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		connect := cfg.ConnectTimeout
		if connect <= 0 {
			connect = 2 * time.Second
		}
		response := cfg.ResponseTimeout
		if response <= 0 {
			response = 5 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: connect}).DialContext
		transport.TLSHandshakeTimeout = connect
		transport.ResponseHeaderTimeout = response
		hc = &http.Client{Transport: transport, Timeout: connect + response}
	}

	return &Client{base: base, httpClient: hc}, nil
}

// Refresh exchanges refreshToken for a new pair. Cancellation of ctx aborts
// the call.
func (c *Client) Refresh(ctx context.Context, tenantID, refreshToken string) (goGuard.TokenPair, error) {
	if tenantID == "" || tenantID == "." || tenantID == ".." {
		return goGuard.TokenPair{}, fmt.Errorf("idp: invalid tenant id %q", tenantID)
	}
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return goGuard.TokenPair{}, fmt.Errorf("encode refresh request: %w", err)
	}
	endpoint := c.base.JoinPath("tenants", url.PathEscape(tenantID), "token", "refresh")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return goGuard.TokenPair{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out tokenResponse
	if err := c.do(req, &out); err != nil {
		return goGuard.TokenPair{}, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return goGuard.TokenPair{}, errors.New("idp: response missing tokens")
	}
	return goGuard.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

// FetchPublicKeys downloads the provider's verification keys.
func (c *Client) FetchPublicKeys(ctx context.Context) ([]PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath("keys").String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build keys request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var out keysResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	keys := make([]PublicKey, 0, len(out.Keys))
	for _, k := range out.Keys {
		raw, err := base64.RawURLEncoding.DecodeString(k.Key)
		if err != nil {
			return nil, fmt.Errorf("idp: key %q is not base64url: %w", k.KeyID, err)
		}
		keys = append(keys, PublicKey{KeyID: k.KeyID, Algorithm: k.Algorithm, Key: raw})
	}
	return keys, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("idp request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read idp response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode idp response: %w", err)
	}
	return nil
}
