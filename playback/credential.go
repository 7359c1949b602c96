package playback

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Cookie names consumed by the delivery layer's signature check.
const (
	CookiePolicy    = "Media-Policy"
	CookieSignature = "Media-Signature"
	CookieKeyPairID = "Media-Key-Pair-Id"
)

// CourseAccess answers the two questions the issuer asks about a course:
// whether the student may reach its media, and where that media lives.
// Satisfied by access.Gate. The enrollment answer is always taken first.
type CourseAccess interface {
	IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error)
	MediaPrefix(ctx context.Context, courseID uint) (string, error)
}

// Credential is a short-lived grant for one course's media path. It lives in
// memory and transport only; it is never persisted, cached or logged.
type Credential struct {
	Cookies        map[string]string `json:"cookies"`
	URLToken       string            `json:"url_token"`
	ResourcePrefix string            `json:"resource_prefix"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

// mediaPolicy is the statement the delivery layer verifies: which path
// prefix, until when.
type mediaPolicy struct {
	Resource string `json:"resource"`
	Expires  int64  `json:"expires"`
}

// Issuer mints playback credentials after the enrollment gate approves.
type Issuer struct {
	gate        CourseAccess
	keys        *SigningKeys
	keyPairID   string
	mediaDomain string
	ttl         time.Duration

	now func() time.Time
}

func NewIssuer(gate CourseAccess, keys *SigningKeys, keyPairID, mediaDomain string, ttl time.Duration) *Issuer {
	return &Issuer{
		gate:        gate,
		keys:        keys,
		keyPairID:   keyPairID,
		mediaDomain: mediaDomain,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Issue mints a credential scoped to the course's media prefix. The
// enrollment check runs before any signing work; a student who is not
// enrolled gets ErrForbidden and the signing key is never touched. The
// validity window is fixed and generous enough that a student mid-video is
// not cut off.
func (i *Issuer) Issue(ctx context.Context, userID, courseID uint) (*Credential, error) {
	enrolled, err := i.gate.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("checking enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrForbidden
	}

	mediaPrefix, err := i.gate.MediaPrefix(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("resolving media prefix: %w", err)
	}

	key, err := i.keys.Get(ctx)
	if err != nil {
		return nil, err
	}

	expiresAt := i.now().Add(i.ttl)
	prefix := fmt.Sprintf("https://%s/%s/*", i.mediaDomain, mediaPrefix)

	policy := mediaPolicy{Resource: prefix, Expires: expiresAt.Unix()}
	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(policyJSON)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: signing policy: %v", ErrConfiguration, err)
	}

	urlToken, err := i.signURLToken(key, prefix, expiresAt)
	if err != nil {
		return nil, err
	}

	return &Credential{
		Cookies: map[string]string{
			CookiePolicy:    base64.RawURLEncoding.EncodeToString(policyJSON),
			CookieSignature: base64.RawURLEncoding.EncodeToString(signature),
			CookieKeyPairID: i.keyPairID,
		},
		URLToken:       urlToken,
		ResourcePrefix: prefix,
		ExpiresAt:      expiresAt,
	}, nil
}

// signURLToken produces the query-parameter variant of the credential for
// players that cannot carry cookies across origins.
func (i *Issuer) signURLToken(key *rsa.PrivateKey, prefix string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"resource": prefix,
		"exp":      expiresAt.Unix(),
		"iat":      i.now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.keyPairID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: signing url token: %v", ErrConfiguration, err)
	}
	return signed, nil
}
