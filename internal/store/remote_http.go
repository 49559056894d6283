package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HTTPTier syncs against a self-hosted key/value server. Requests
// carry a short-lived HS256 bearer token derived from the shared
// secret. Quota refusals are mapped onto the failure taxonomy so the
// store can degrade to local-only operation.
type HTTPTier struct {
	baseURL string
	secret  []byte
	client  *http.Client
}

// NewHTTPTier creates a tier talking to baseURL (e.g. https://sync.example.com)
func NewHTTPTier(baseURL, secret string, timeout time.Duration) *HTTPTier {
	return &HTTPTier{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		client:  &http.Client{Timeout: timeout},
	}
}

// bearerToken signs a fresh request token; the server only needs to
// verify the signature and expiry
func (t *HTTPTier) bearerToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "vocadrill",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(1 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *HTTPTier) newRequest(ctx context.Context, method, key string, body io.Reader) (*http.Request, error) {
	endpoint := t.baseURL + "/kv/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	token, err := t.bearerToken()
	if err != nil {
		return nil, fmt.Errorf("failed to sign sync token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// classifyStatus maps HTTP refusals onto the failure taxonomy
func classifyStatus(status int) FailureKind {
	switch status {
	case http.StatusTooManyRequests:
		return KindWriteQuota
	case http.StatusRequestEntityTooLarge, http.StatusInsufficientStorage:
		return KindStorageQuota
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindPermission
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return KindUnavailable
	}
	return KindOther
}

func (t *HTTPTier) Read(ctx context.Context, key string) ([]byte, bool, error) {
	req, err := t.newRequest(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, false, remoteErr(KindOther, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, false, remoteErr(KindUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		value, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, remoteErr(KindOther, err)
		}
		return value, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	}
	return nil, false, remoteErr(classifyStatus(resp.StatusCode), fmt.Errorf("GET %s: status %d", key, resp.StatusCode))
}

func (t *HTTPTier) Write(ctx context.Context, key string, value []byte) error {
	req, err := t.newRequest(ctx, http.MethodPut, key, bytes.NewReader(value))
	if err != nil {
		return remoteErr(KindOther, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return remoteErr(KindUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusCreated {
		return nil
	}
	return remoteErr(classifyStatus(resp.StatusCode), fmt.Errorf("PUT %s: status %d", key, resp.StatusCode))
}

func (t *HTTPTier) Remove(ctx context.Context, key string) error {
	req, err := t.newRequest(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return remoteErr(KindOther, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return remoteErr(KindUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return remoteErr(classifyStatus(resp.StatusCode), fmt.Errorf("DELETE %s: status %d", key, resp.StatusCode))
}

func (t *HTTPTier) Name() string {
	return "http"
}

func (t *HTTPTier) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
