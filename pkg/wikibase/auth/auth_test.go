package auth

import (
	"context"
	goerrors "errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/matryer/is"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
)

func TestTokenSessionFetchesOnce(t *testing.T) {
	is := is.New(t)

	var fetches int32
	s := NewTokenSession(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&fetches, 1)
		return "token-1", nil
	})

	token, err := s.Token(context.Background())
	is.NoErr(err)
	is.Equal(token, "token-1")

	token, err = s.Token(context.Background())
	is.NoErr(err)
	is.Equal(token, "token-1")

	is.Equal(atomic.LoadInt32(&fetches), int32(1))
}

func TestTokenSessionSharesInflightFetch(t *testing.T) {
	is := is.New(t)

	var fetches int32
	s := NewTokenSession(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&fetches, 1)
		time.Sleep(20 * time.Millisecond)
		return "token-1", nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := s.Token(context.Background())
			is.NoErr(err)
			is.Equal(token, "token-1")
		}()
	}
	wg.Wait()

	is.Equal(atomic.LoadInt32(&fetches), int32(1))
}

func TestInvalidateForcesRefresh(t *testing.T) {
	is := is.New(t)

	var fetches int32
	s := NewTokenSession(func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&fetches, 1)
		return fmt.Sprintf("token-%d", n), nil
	})

	first, err := s.Token(context.Background())
	is.NoErr(err)

	// invalidating a token that was already replaced changes nothing
	s.Invalidate("some-older-token")
	again, err := s.Token(context.Background())
	is.NoErr(err)
	is.Equal(again, first)

	s.Invalidate(first)
	second, err := s.Token(context.Background())
	is.NoErr(err)
	is.True(second != first)

	is.Equal(atomic.LoadInt32(&fetches), int32(2))
}

func TestTokenFetchFailureIsATokenError(t *testing.T) {
	is := is.New(t)

	s := NewTokenSession(func(ctx context.Context) (string, error) {
		return "", goerrors.New("boom")
	})

	_, err := s.Token(context.Background())
	is.True(goerrors.Is(err, errors.ErrToken))
}

func TestBearerProviderSignsRequests(t *testing.T) {
	is := is.New(t)

	p := NewBearerProvider("opaque-credential")
	is.True(p.ExpiresAt().IsZero())

	req, _ := http.NewRequest(http.MethodGet, "http://localhost", nil)
	is.NoErr(p.Sign(req))
	is.Equal(req.Header.Get("Authorization"), "Bearer opaque-credential")
}

func TestBearerProviderRejectsExpiredJWT(t *testing.T) {
	is := is.New(t)

	expired := signedJWT(t, time.Now().Add(-time.Hour))

	p := NewBearerProvider(expired)
	is.True(!p.ExpiresAt().IsZero())

	req, _ := http.NewRequest(http.MethodGet, "http://localhost", nil)
	err := p.Sign(req)
	is.True(goerrors.Is(err, errors.ErrToken))
}

func TestBearerProviderAcceptsLiveJWT(t *testing.T) {
	is := is.New(t)

	live := signedJWT(t, time.Now().Add(time.Hour))

	p := NewBearerProvider(live)

	req, _ := http.NewRequest(http.MethodGet, "http://localhost", nil)
	is.NoErr(p.Sign(req))
	is.Equal(req.Header.Get("Authorization"), "Bearer "+live)
}

func signedJWT(t *testing.T, expiry time.Time) string {
	t.Helper()

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub": "tester",
		"exp": expiry.Unix(),
	})

	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}
