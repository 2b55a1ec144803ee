package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultRefreshSkew = 30 * time.Second

var ErrNoRefreshToken = errors.New("no refresh token available")

// RefreshTokenSource keeps an access/refresh token pair and exchanges the
// refresh token for a new access token when the API asks for it or the
// access token is about to expire.
type RefreshTokenSource struct {
	baseURL string
	client  *http.Client
	skew    time.Duration
	now     func() time.Time

	mu      sync.Mutex
	access  string
	refresh string
}

// NewRefreshTokenSource uses client for the refresh call itself, so it must
// not be wrapped in a Transport backed by this source.
func NewRefreshTokenSource(baseURL, access, refresh string, client *http.Client) *RefreshTokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RefreshTokenSource{
		baseURL: baseURL,
		client:  client,
		skew:    DefaultRefreshSkew,
		now:     time.Now,
		access:  access,
		refresh: refresh,
	}
}

func (s *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refresh != "" && (s.access == "" || s.expiring(s.access)) {
		if err := s.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return s.access, nil
}

func (s *RefreshTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.access, nil
}

// expiring reports whether token is a JWT whose exp falls inside the skew
// window. Opaque tokens never expire locally.
func (s *RefreshTokenSource) expiring(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.now().Add(s.skew).Before(exp.Time)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

func (s *RefreshTokenSource) refreshLocked(ctx context.Context) error {
	if s.refresh == "" {
		return ErrNoRefreshToken
	}

	data, err := json.Marshal(refreshRequest{Refresh: s.refresh})
	if err != nil {
		return fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/token/refresh", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh access token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh returned status %d", resp.StatusCode)
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Access == "" {
		return errors.New("token refresh returned no access token")
	}

	s.access = out.Access
	if out.Refresh != "" {
		s.refresh = out.Refresh
	}
	return nil
}
