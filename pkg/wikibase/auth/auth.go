package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
)

// Provider signs outgoing store requests with whatever credentials the
// caller configured.
type Provider interface {
	Sign(req *http.Request) error
}

// Anonymous returns a provider that signs nothing, for stores that
// accept unauthenticated edits.
func Anonymous() Provider {
	return &anonymousProvider{}
}

type anonymousProvider struct{}

func (a *anonymousProvider) Sign(*http.Request) error { return nil }

// BearerProvider attaches a static bearer token to each request. When
// the token is a JWT its expiry claim is introspected up front, so that
// an expired credential fails fast instead of producing a rejected
// request.
type BearerProvider struct {
	token     string
	expiresAt time.Time
}

func NewBearerProvider(token string) *BearerProvider {
	p := &BearerProvider{token: token}

	parser := gojwt.NewParser()
	if parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{}); err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			p.expiresAt = exp.Time
		}
	}

	return p
}

// ExpiresAt returns the token's expiry, or the zero time when the
// credential is opaque or carries no expiry claim.
func (p *BearerProvider) ExpiresAt() time.Time { return p.expiresAt }

func (p *BearerProvider) Sign(req *http.Request) error {
	if !p.expiresAt.IsZero() && time.Now().After(p.expiresAt) {
		return errors.NewTokenError("bearer token expired at " + p.expiresAt.Format(time.RFC3339))
	}

	req.Header.Set("Authorization", "Bearer "+p.token)
	return nil
}

// TokenFetchFunc retrieves a fresh edit token from the store.
type TokenFetchFunc func(ctx context.Context) (string, error)

// TokenSession caches the store's edit token across writes. Concurrent
// callers that find the cache empty share a single fetch, and a token
// the store rejected is dropped with Invalidate so the next write
// refreshes it.
type TokenSession struct {
	fetch TokenFetchFunc

	mutex    sync.Mutex
	token    string
	inflight chan struct{}
}

func NewTokenSession(fetch TokenFetchFunc) *TokenSession {
	return &TokenSession{fetch: fetch}
}

// Token returns the cached edit token, fetching one first if needed.
func (s *TokenSession) Token(ctx context.Context) (string, error) {
	for {
		s.mutex.Lock()

		if s.token != "" {
			token := s.token
			s.mutex.Unlock()
			return token, nil
		}

		if s.inflight == nil {
			done := make(chan struct{})
			s.inflight = done
			s.mutex.Unlock()

			return s.refresh(ctx, done)
		}

		wait := s.inflight
		s.mutex.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (s *TokenSession) refresh(ctx context.Context, done chan struct{}) (string, error) {
	logger := logging.GetFromContext(ctx)
	logger.Debug("fetching a fresh edit token")

	token, err := s.fetch(ctx)

	s.mutex.Lock()
	if err == nil {
		s.token = token
	}
	s.inflight = nil
	s.mutex.Unlock()
	close(done)

	if err != nil {
		return "", errors.NewTokenError("failed to fetch edit token: " + err.Error())
	}

	return token, nil
}

// Invalidate drops the cached token if it matches the one the store
// rejected. A token that was already replaced is left alone.
func (s *TokenSession) Invalidate(rejected string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.token == rejected {
		s.token = ""
	}
}

// Close drops the cached token. Callers waiting on an in-flight fetch
// are unaffected.
func (s *TokenSession) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.token = ""
}
