package openreview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// AuthProvider supplies the Authorization header for API requests.
type AuthProvider interface {
	AuthHeader(ctx context.Context) (string, error)
}

// NoAuth sends requests anonymously. Public venues allow reading some
// collections without signing in.
type NoAuth struct{}

func (NoAuth) AuthHeader(ctx context.Context) (string, error) {
	return "", nil
}

// TokenAuth uses a token that was issued beforehand.
type TokenAuth struct {
	token string
}

func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

func (p *TokenAuth) AuthHeader(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", &AuthError{Message: "token is empty"}
	}
	return "Bearer " + p.token, nil
}

// Credentials are the username and password of a platform account.
type Credentials struct {
	Username string
	Password string
}

// PasswordAuth signs in with a username and password on first use and keeps
// the returned token for the rest of the session.
type PasswordAuth struct {
	baseURL     string
	credentials Credentials
	httpClient  *http.Client
	token       string
	mu          sync.RWMutex
}

func NewPasswordAuth(baseURL string, credentials Credentials, httpClient *http.Client) *PasswordAuth {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PasswordAuth{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		httpClient:  httpClient,
	}
}

func (p *PasswordAuth) AuthHeader(ctx context.Context) (string, error) {
	token, err := p.getToken(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

func (p *PasswordAuth) getToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	if p.token != "" {
		token := p.token
		p.mu.RUnlock()
		return token, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if p.token != "" {
		return p.token, nil
	}

	token, err := p.login(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	return token, nil
}

func (p *PasswordAuth) login(ctx context.Context) (string, error) {
	if p.credentials.Username == "" {
		return "", &AuthError{Message: "username is empty"}
	}

	payload, err := json.Marshal(map[string]string{
		"id":       p.credentials.Username,
		"password": p.credentials.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &TransientError{Err: fmt.Errorf("failed to send login request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if err := classify(resp, body, "login"); IsTransient(err) {
			return "", err
		}
		return "", &AuthError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	token := gjson.GetBytes(body, "token").String()
	if token == "" {
		return "", &AuthError{Status: resp.StatusCode, Message: "login response did not contain a token"}
	}

	log.Debug().
		Str("user", p.credentials.Username).
		Msg("Signed in to review platform")

	return token, nil
}
