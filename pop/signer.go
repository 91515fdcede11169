// Package pop produces proof-of-possession assertions that bind an access
// token to a single resource request. The stored token secret is embedded in
// a signed envelope and never leaves the client unsigned.
package pop

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/goliatone/go-identity/core"
)

const popTokenType = "pop"

// Key is the signing key pair for proof-of-possession envelopes. The public
// half travels inside every assertion as the cnf claim.
type Key struct {
	Private    jwk.Key
	Public     jwk.Key
	Thumbprint string
}

// NewKey generates an ephemeral P-256 key pair.
func NewKey() (*Key, error) {
	rawKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("pop: generate key: %w", err)
	}
	return ImportKey(rawKey)
}

// ImportKey wraps an existing private key, typically one backed by persistent
// storage so the resource server sees a stable cnf thumbprint.
func ImportKey(rawKey any) (*Key, error) {
	private, err := jwk.FromRaw(rawKey)
	if err != nil {
		return nil, fmt.Errorf("pop: import key: %w", err)
	}
	public, err := jwk.PublicKeyOf(private)
	if err != nil {
		return nil, fmt.Errorf("pop: derive public key: %w", err)
	}
	thumbprintBytes, err := public.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("pop: compute thumbprint: %w", err)
	}
	return &Key{
		Private:    private,
		Public:     public,
		Thumbprint: base64.RawURLEncoding.EncodeToString(thumbprintBytes),
	}, nil
}

// Signer signs resource-bound access token envelopes.
type Signer struct {
	key *Key
	alg jwa.SignatureAlgorithm
	now func() time.Time
}

type SignerOption func(*Signer)

func WithAlgorithm(alg jwa.SignatureAlgorithm) SignerOption {
	return func(s *Signer) {
		s.alg = alg
	}
}

func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

func NewSigner(key *Key, options ...SignerOption) (*Signer, error) {
	if key == nil || key.Private == nil || key.Public == nil {
		return nil, fmt.Errorf("pop: signing key is required")
	}
	signer := &Signer{
		key: key,
		alg: jwa.ES256,
		now: time.Now,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(signer)
	}
	return signer, nil
}

// SignPoP builds and signs the request-bound envelope. Claims follow the
// signed HTTP request shape: the raw token under at, the request method and
// split URI under m/u/p, and the public key under cnf.
func (s *Signer) SignPoP(_ context.Context, req core.PoPSignRequest) (string, error) {
	if s == nil || s.key == nil {
		return "", fmt.Errorf("pop: signer is not configured")
	}
	if strings.TrimSpace(req.Secret) == "" {
		return "", fmt.Errorf("pop: access token secret is required")
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		return "", fmt.Errorf("pop: request method is required")
	}
	host, path, err := splitResourceURI(req.URI)
	if err != nil {
		return "", err
	}

	token := jwt.New()
	claims := map[string]any{
		"at":  req.Secret,
		"ts":  s.now().UTC().Unix(),
		"m":   method,
		"u":   host,
		"p":   path,
		"jti": uuid.NewString(),
		"cnf": map[string]any{"jwk": s.key.Public},
	}
	if strings.TrimSpace(req.Nonce) != "" {
		claims["nonce"] = req.Nonce
	}
	for name, value := range claims {
		if err := token.Set(name, value); err != nil {
			return "", fmt.Errorf("pop: set claim %q: %w", name, err)
		}
	}

	headers := jws.NewHeaders()
	if err := headers.Set("typ", popTokenType); err != nil {
		return "", fmt.Errorf("pop: set header typ: %w", err)
	}
	if err := headers.Set("kid", s.key.Thumbprint); err != nil {
		return "", fmt.Errorf("pop: set header kid: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(s.alg, s.key.Private, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", fmt.Errorf("pop: sign envelope: %w", err)
	}
	return string(signed), nil
}

func splitResourceURI(raw string) (host, path string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("pop: resource uri is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("pop: parse resource uri: %w", err)
	}
	host = parsed.Host
	if host == "" {
		// Bare hosts parse into the path component.
		host = parsed.Path
		path = "/"
	} else {
		path = parsed.Path
		if path == "" {
			path = "/"
		}
	}
	if host == "" {
		return "", "", fmt.Errorf("pop: resource uri has no host")
	}
	return host, path, nil
}

var _ core.PoPSigner = (*Signer)(nil)
