package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrNoKeySource        = errors.New("no signing key or JWKS source configured")
	ErrMissingSubject     = errors.New("token has no subject")
	ErrUnknownAccountKind = errors.New("unknown account kind")
)

// Claims are the JWT claims issued by the benefits platform.
type Claims struct {
	jwt.RegisteredClaims
	AccountKind   string `json:"account_kind"`
	IsAgent       bool   `json:"is_agent"`
	AgentActive   bool   `json:"agent_active"`
	IsBeneficiary bool   `json:"is_beneficiary"`
}

// Identity converts verified claims into an Identity.
func (c *Claims) Identity() (Identity, error) {
	if c.Subject == "" {
		return Identity{}, ErrMissingSubject
	}
	kind := AccountKind(c.AccountKind)
	switch kind {
	case KindHolder, KindBeneficiary, KindAgent:
	case "":
		// Older tokens only carry the flags.
		kind = KindHolder
		if c.IsBeneficiary {
			kind = KindBeneficiary
		}
		if c.IsAgent {
			kind = KindAgent
		}
	default:
		return Identity{}, fmt.Errorf("%w: %q", ErrUnknownAccountKind, c.AccountKind)
	}
	return Identity{
		ID:            c.Subject,
		Kind:          kind,
		IsAgent:       c.IsAgent || kind == KindAgent,
		AgentActive:   c.AgentActive,
		IsBeneficiary: c.IsBeneficiary || kind == KindBeneficiary,
	}, nil
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey is used for development/testing only
	SigningKey []byte
}

// JWTVerifier validates HS256 tokens against a shared key, or RS256 tokens
// against keys published on a JWKS endpoint.
type JWTVerifier struct {
	cfg     JWTConfig
	keyfunc jwt.Keyfunc
	opts    []jwt.ParserOption
}

// NewJWTVerifier builds a verifier. When neither JWKSURL nor SigningKey is set
// but an Issuer is, the JWKS URL is discovered from the issuer's OpenID
// configuration.
func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	v := &JWTVerifier{cfg: cfg}

	switch {
	case len(cfg.SigningKey) > 0:
		v.keyfunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"HS256"}))
	default:
		jwksURL := cfg.JWKSURL
		if jwksURL == "" && cfg.Issuer != "" {
			discovered, err := DiscoverJWKSURL(cfg.Issuer)
			if err != nil {
				return nil, err
			}
			jwksURL = discovered
		}
		if jwksURL == "" {
			return nil, ErrNoKeySource
		}
		v.keyfunc = NewJWKSCache(jwksURL, defaultJWKSCacheTTL).Keyfunc()
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"RS256"}))
	}

	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	return v, nil
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, tokenStr string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.keyfunc, v.opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	return claims.Identity()
}

// ---------------------------------------------------------------------------
// JWKS
// ---------------------------------------------------------------------------

// JWKSKey represents a single JSON Web Key from a JWKS endpoint.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse represents the response from a JWKS endpoint.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// defaultJWKSCacheTTL is the default time-to-live for cached JWKS keys.
const defaultJWKSCacheTTL = 5 * time.Minute

// JWKSCache caches RSA keys fetched from a JWKS endpoint. A cache miss or an
// expired set triggers a refetch, which also covers key rotation.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	url       string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:   make(map[string]*rsa.PublicKey),
		url:    jwksURL,
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Keyfunc resolves the token's kid header against the cache.
func (c *JWKSCache) Keyfunc() jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return c.GetKey(kid)
	}
}

// GetKey returns the RSA public key for kid.
func (c *JWKSCache) GetKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetchedAt) <= c.ttl
	c.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := c.refresh(); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if key, ok = c.keys[kid]; !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh() error {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var set JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// DiscoverJWKSURL reads jwks_uri from the issuer's
// /.well-known/openid-configuration document.
func DiscoverJWKSURL(issuer string) (string, error) {
	discoveryURL := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(discoveryURL)
	if err != nil {
		return "", fmt.Errorf("fetching OIDC discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OIDC discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decoding OIDC discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("OIDC discovery document missing jwks_uri")
	}
	return doc.JWKSURI, nil
}
