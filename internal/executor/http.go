package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"ReloadPilot/internal/model"
)

// ErrUnauthorized is returned when the backend rejects credentials or a session token.
var ErrUnauthorized = errors.New("unauthorized")

// HTTPExecutor implements Executor against a REST reload backend.
type HTTPExecutor struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
	Log     zerolog.Logger
}

// NewHTTPExecutor creates an executor with optional proxy support. ratePerSec caps
// outgoing requests across all sessions.
func NewHTTPExecutor(baseURL, apiKey, proxyURL string, ratePerSec int, log zerolog.Logger) *HTTPExecutor {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &HTTPExecutor{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		Log:     log,
	}
}

func (e *HTTPExecutor) Name() string { return "http" }

// Open signs in and returns a session bound to the issued token.
func (e *HTTPExecutor) Open(ctx context.Context, creds model.Credentials) (Session, error) {
	body, err := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sign-in: %w", err)
	}
	resp, err := e.do(ctx, http.MethodPost, "/api/v1/session", "", body)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("sign in: %w", ErrUnauthorized)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("sign in: status %d, body: %s", resp.StatusCode, readSnippet(resp.Body))
	}
	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if result.Token == "" {
		return nil, fmt.Errorf("sign in: empty session token")
	}
	e.Log.Debug().Str("username", creds.Username).Msg("session opened")
	return &httpSession{exec: e, token: result.Token}, nil
}

func (e *HTTPExecutor) do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	if err := e.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}
	if token != "" {
		req.Header.Set("X-Session-Token", token)
	}
	return e.Client.Do(req)
}

type httpSession struct {
	exec   *HTTPExecutor
	token  string
	closed bool
}

// Reload submits one reload. Rejected tokens are fatal for the session; server errors,
// throttling and transport errors are retryable.
func (s *httpSession) Reload(ctx context.Context, amount float64) Result {
	if s.closed {
		return FatalFailure(ErrSessionClosed)
	}
	if err := CheckAmount(amount); err != nil {
		return Failure(err)
	}
	body, err := json.Marshal(map[string]string{
		"amount": decimal.NewFromFloat(amount).StringFixed(2),
	})
	if err != nil {
		return Failure(fmt.Errorf("marshal reload: %w", err))
	}
	resp, err := s.exec.do(ctx, http.MethodPost, "/api/v1/reloads", s.token, body)
	if err != nil {
		if ctx.Err() != nil {
			return FatalFailure(ctx.Err())
		}
		return Failure(fmt.Errorf("reload: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return Success()
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return FatalFailure(fmt.Errorf("reload: %w", ErrUnauthorized))
	default:
		return Failure(fmt.Errorf("reload: status %d, body: %s", resp.StatusCode, readSnippet(resp.Body)))
	}
}

// Close signs out. The session is unusable afterwards even if sign-out fails.
func (s *httpSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := s.exec.do(ctx, http.MethodDelete, "/api/v1/session", s.token, nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sign out: status %d", resp.StatusCode)
	}
	return nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
