// Package auth verifies bearer tokens and extracts the tenant and role of the caller.
package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Modes accepted in AUTH_MODE.
const (
	ModeDev  = "dev"  // token is "tenant:role", nothing is verified
	ModeHMAC = "hmac" // HS256 with AUTH_HMAC_SECRET
	ModeJWKS = "jwks" // RS256 with keys from AUTH_JWKS_URL
)

var ErrInvalidToken = errors.New("invalid token")

type Principal struct {
	Tenant string
	Role   string
}

// Verifier validates tokens for one mode. It is safe for concurrent use.
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	JWKSURL     string
	TenantClaim string
	RoleClaim   string
	Leeway      time.Duration // allowed clock skew for exp/nbf

	http     *http.Client
	cacheTTL time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
}

// NewVerifierFromEnv returns nil when AUTH_MODE is unset, meaning tokens are not consulted.
func NewVerifierFromEnv() (*Verifier, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" || mode == "off" {
		return nil, nil
	}
	v := &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(os.Getenv("AUTH_HMAC_SECRET")),
		JWKSURL:     os.Getenv("AUTH_JWKS_URL"),
		TenantClaim: envOr("AUTH_TENANT_CLAIM", "tenant"),
		RoleClaim:   envOr("AUTH_ROLE_CLAIM", "role"),
		Leeway:      30 * time.Second,
	}
	switch mode {
	case ModeDev:
	case ModeHMAC:
		if len(v.HMACSecret) == 0 {
			return nil, errors.New("AUTH_MODE=hmac requires AUTH_HMAC_SECRET")
		}
	case ModeJWKS:
		if v.JWKSURL == "" {
			return nil, errors.New("AUTH_MODE=jwks requires AUTH_JWKS_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported AUTH_MODE %q", mode)
	}
	return v, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// Verify checks token and returns its principal. Role defaults to "user".
func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == ModeDev {
		tenant, role, ok := strings.Cut(token, ":")
		if !ok || tenant == "" {
			return Principal{}, fmt.Errorf("%w: dev token must be tenant:role", ErrInvalidToken)
		}
		return principal(tenant, role), nil
	}

	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, fmt.Errorf("%w: not a JWT", ErrInvalidToken)
	}
	var hdr struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := decodeSegment(segs[0], &hdr); err != nil {
		return Principal{}, err
	}
	var claims map[string]any
	if err := decodeSegment(segs[1], &claims); err != nil {
		return Principal{}, err
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: signature encoding", ErrInvalidToken)
	}
	if err := v.checkSignature(hdr.Alg, hdr.Kid, []byte(segs[0]+"."+segs[1]), sig); err != nil {
		return Principal{}, err
	}
	if err := v.checkTimes(claims); err != nil {
		return Principal{}, err
	}

	tenant, _ := claims[v.TenantClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	if tenant == "" {
		return Principal{}, fmt.Errorf("%w: missing %s claim", ErrInvalidToken, v.TenantClaim)
	}
	return principal(tenant, role), nil
}

func principal(tenant, role string) Principal {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = "user"
	}
	return Principal{Tenant: tenant, Role: role}
}

func decodeSegment(seg string, v any) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return fmt.Errorf("%w: segment encoding", ErrInvalidToken)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: segment json", ErrInvalidToken)
	}
	return nil
}

func (v *Verifier) checkSignature(alg, kid string, signingInput, sig []byte) error {
	switch v.Mode {
	case ModeHMAC:
		if alg != "HS256" {
			return fmt.Errorf("%w: alg %q not accepted", ErrInvalidToken, alg)
		}
		mac := hmac.New(sha256.New, v.HMACSecret)
		mac.Write(signingInput)
		if !hmac.Equal(mac.Sum(nil), sig) {
			return fmt.Errorf("%w: bad signature", ErrInvalidToken)
		}
	case ModeJWKS:
		if alg != "RS256" {
			return fmt.Errorf("%w: alg %q not accepted", ErrInvalidToken, alg)
		}
		pub, err := v.publicKey(kid)
		if err != nil {
			return err
		}
		h := sha256.Sum256(signingInput)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
			return fmt.Errorf("%w: bad signature", ErrInvalidToken)
		}
	default:
		return fmt.Errorf("unsupported auth mode %q", v.Mode)
	}
	return nil
}

// checkTimes enforces exp and nbf when present.
func (v *Verifier) checkTimes(claims map[string]any) error {
	now := time.Now()
	if v.now != nil {
		now = v.now()
	}
	if exp, ok := claims["exp"].(float64); ok && now.After(time.Unix(int64(exp), 0).Add(v.Leeway)) {
		return fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if nbf, ok := claims["nbf"].(float64); ok && now.Add(v.Leeway).Before(time.Unix(int64(nbf), 0)) {
		return fmt.Errorf("%w: not yet valid", ErrInvalidToken)
	}
	return nil
}

// publicKey serves kid from the JWKS cache, refetching when stale or unknown.
func (v *Verifier) publicKey(kid string) (*rsa.PublicKey, error) {
	ttl := v.cacheTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := time.Since(v.lastFetch) > ttl
	v.mu.RUnlock()
	if ok && !stale {
		return key, nil
	}
	if err := v.fetchJWKS(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: kid %q not in JWKS", ErrInvalidToken, kid)
	}
	return key, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *Verifier) fetchJWKS() error {
	client := v.http
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Get(v.JWKSURL)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}
	}
	v.mu.Lock()
	v.keys = keys
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}
