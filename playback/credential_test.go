package playback

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	enrolled bool
	err      error
	prefix   string
}

func (f *fakeGate) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	return f.enrolled, f.err
}

func (f *fakeGate) MediaPrefix(ctx context.Context, courseID uint) (string, error) {
	if f.prefix != "" {
		return f.prefix, nil
	}
	return fmt.Sprintf("media/courses/%d", courseID), nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	value string
	err   error
}

func (f *fakeFetcher) FetchSecret(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.value, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, string(pem.EncodeToMemory(block))
}

func TestIssueDeniesBeforeTouchingSigningKey(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("must not be called")}
	keys := NewSigningKeys(fetcher, "playback-signing-key")
	issuer := NewIssuer(&fakeGate{enrolled: false}, keys, "KP1", "media.example.com", 4*time.Hour)

	_, err := issuer.Issue(context.Background(), 1, 10)
	require.ErrorIs(t, err, ErrForbidden)
	require.Zero(t, fetcher.callCount())
}

func TestIssueScopesCredentialToCoursePrefix(t *testing.T) {
	key, keyPEM := testKeyPEM(t)
	keys := NewSigningKeys(&fakeFetcher{value: keyPEM}, "playback-signing-key")
	issuer := NewIssuer(&fakeGate{enrolled: true}, keys, "KP1", "media.example.com", 4*time.Hour)

	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issuedAt }

	cred, err := issuer.Issue(context.Background(), 1, 42)
	require.NoError(t, err)

	wantPrefix := "https://media.example.com/media/courses/42/*"
	require.Equal(t, wantPrefix, cred.ResourcePrefix)
	require.Equal(t, issuedAt.Add(4*time.Hour), cred.ExpiresAt)
	require.Equal(t, "KP1", cred.Cookies[CookieKeyPairID])

	// The policy cookie decodes into exactly the prefix and expiry.
	policyJSON, err := base64.RawURLEncoding.DecodeString(cred.Cookies[CookiePolicy])
	require.NoError(t, err)
	var policy mediaPolicy
	require.NoError(t, json.Unmarshal(policyJSON, &policy))
	require.Equal(t, wantPrefix, policy.Resource)
	require.Equal(t, issuedAt.Add(4*time.Hour).Unix(), policy.Expires)

	// The signature verifies against the signing key's public half.
	signature, err := base64.RawURLEncoding.DecodeString(cred.Cookies[CookieSignature])
	require.NoError(t, err)
	digest := sha256.Sum256(policyJSON)
	require.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], signature))
}

func TestIssueURLTokenCarriesScopeAndKeyID(t *testing.T) {
	key, keyPEM := testKeyPEM(t)
	keys := NewSigningKeys(&fakeFetcher{value: keyPEM}, "playback-signing-key")
	issuer := NewIssuer(&fakeGate{enrolled: true}, keys, "KP1", "media.example.com", time.Hour)

	cred, err := issuer.Issue(context.Background(), 1, 7)
	require.NoError(t, err)

	parsed, err := jwt.Parse(cred.URLToken, func(token *jwt.Token) (interface{}, error) {
		require.IsType(t, &jwt.SigningMethodRSA{}, token.Method)
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, "KP1", parsed.Header["kid"])

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, "https://media.example.com/media/courses/7/*", claims["resource"])
}

func TestIssueUsesStoredMediaPrefix(t *testing.T) {
	_, keyPEM := testKeyPEM(t)
	keys := NewSigningKeys(&fakeFetcher{value: keyPEM}, "playback-signing-key")
	gate := &fakeGate{enrolled: true, prefix: "media/archive/7x"}
	issuer := NewIssuer(gate, keys, "KP1", "media.example.com", time.Hour)

	cred, err := issuer.Issue(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, "https://media.example.com/media/archive/7x/*", cred.ResourcePrefix)

	policyJSON, err := base64.RawURLEncoding.DecodeString(cred.Cookies[CookiePolicy])
	require.NoError(t, err)
	var policy mediaPolicy
	require.NoError(t, json.Unmarshal(policyJSON, &policy))
	require.Equal(t, cred.ResourcePrefix, policy.Resource)
}

func TestIssuePropagatesPrefixResolutionFailure(t *testing.T) {
	_, keyPEM := testKeyPEM(t)
	keys := NewSigningKeys(&fakeFetcher{value: keyPEM}, "playback-signing-key")
	issuer := NewIssuer(&missingCourseGate{}, keys, "KP1", "media.example.com", time.Hour)

	_, err := issuer.Issue(context.Background(), 1, 404)
	require.ErrorIs(t, err, ErrNotFound)
}

type missingCourseGate struct{}

func (missingCourseGate) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	return true, nil
}

func (missingCourseGate) MediaPrefix(ctx context.Context, courseID uint) (string, error) {
	return "", ErrNotFound
}

func TestSigningKeysFetchOnce(t *testing.T) {
	_, keyPEM := testKeyPEM(t)
	fetcher := &fakeFetcher{value: keyPEM}
	keys := NewSigningKeys(fetcher, "playback-signing-key")

	first, err := keys.Get(context.Background())
	require.NoError(t, err)
	second, err := keys.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, fetcher.callCount())
}

func TestSigningKeysRetryAfterFailedFetch(t *testing.T) {
	_, keyPEM := testKeyPEM(t)
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: store down", ErrConnectivity)}
	keys := NewSigningKeys(fetcher, "playback-signing-key")

	_, err := keys.Get(context.Background())
	require.ErrorIs(t, err, ErrConnectivity)

	// A failed fetch leaves the cache empty; the next call tries again.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.value = keyPEM
	fetcher.mu.Unlock()

	key, err := keys.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, key)
	require.Equal(t, 2, fetcher.callCount())
}

func TestSigningKeysRejectsBadMaterial(t *testing.T) {
	keys := NewSigningKeys(&fakeFetcher{value: "not a pem"}, "playback-signing-key")
	_, err := keys.Get(context.Background())
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestSecretClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/secrets/playback-signing-key", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"name": "playback-signing-key", "value": "pem-data"})
	}))
	defer server.Close()

	client := NewSecretClient(server.URL, "test-token")
	value, err := client.FetchSecret(context.Background(), "playback-signing-key")
	require.NoError(t, err)
	require.Equal(t, "pem-data", value)
}

func TestSecretClientErrorTaxonomy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewSecretClient(server.URL, "test-token")
	_, err := client.FetchSecret(context.Background(), "playback-signing-key")
	require.ErrorIs(t, err, ErrConfiguration)

	// Unreachable store is connectivity, not configuration.
	server.Close()
	_, err = client.FetchSecret(context.Background(), "playback-signing-key")
	require.ErrorIs(t, err, ErrConnectivity)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"name": "playback-signing-key", "value": ""})
	}))
	defer empty.Close()

	emptyClient := NewSecretClient(empty.URL, "test-token")
	_, err = emptyClient.FetchSecret(context.Background(), "playback-signing-key")
	require.ErrorIs(t, err, ErrConfiguration)
}
