package playback

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
)

// SecretFetcher fetches a named secret from the secret store.
type SecretFetcher interface {
	FetchSecret(ctx context.Context, name string) (string, error)
}

// SecretClient talks to the secret-store HTTP API.
type SecretClient struct {
	client *resty.Client
}

func NewSecretClient(baseURL, token string) *SecretClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token)
	return &SecretClient{client: client}
}

type secretResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FetchSecret retrieves one secret value by name.
func (s *SecretClient) FetchSecret(ctx context.Context, name string) (string, error) {
	var result secretResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v1/secrets/" + name)
	if err != nil {
		return "", fmt.Errorf("%w: secret store unreachable: %v", ErrConnectivity, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: secret store returned %d for %q", ErrConfiguration, resp.StatusCode(), name)
	}
	if result.Value == "" {
		return "", fmt.Errorf("%w: secret %q is empty", ErrConfiguration, name)
	}
	return result.Value, nil
}

// SigningKeys is the process-wide cache for the playback signing key. The key
// is fetched once per process lifetime and reused by every credential
// issuance after that; there is no invalidation, rotating the key requires a
// restart. The handle is passed explicitly to its consumers instead of living
// in a package-level variable so initialization stays visible and testable.
type SigningKeys struct {
	fetcher    SecretFetcher
	secretName string

	mu  sync.Mutex
	key *rsa.PrivateKey
}

func NewSigningKeys(fetcher SecretFetcher, secretName string) *SigningKeys {
	return &SigningKeys{fetcher: fetcher, secretName: secretName}
}

// Get returns the cached signing key, fetching and parsing it on first use.
// A failed fetch leaves the cache empty so the next issuance retries.
func (s *SigningKeys) Get(ctx context.Context) (*rsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}

	value, err := s.fetcher.FetchSecret(ctx, s.secretName)
	if err != nil {
		return nil, err
	}

	key, err := parsePrivateKey([]byte(value))
	if err != nil {
		return nil, err
	}

	s.key = key
	return s.key, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: signing secret is not PEM", ErrConfiguration)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse signing key: %v", ErrConfiguration, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: signing key is not RSA", ErrConfiguration)
	}
	return key, nil
}
