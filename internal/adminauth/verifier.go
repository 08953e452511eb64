package adminauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrSecretNotConfigured indicates the admin secret was never set. It is a
// deployment mistake, not a user error, and callers should log it as such
// instead of folding it into a generic denial.
var ErrSecretNotConfigured = errors.New("admin secret not configured")

// Verifier checks a presented admin password without timing leakage and
// manages self-verifying bearer tokens. It holds no mutable state; every
// operation is a pure function of its inputs, the configured secret, and the
// clock.
type Verifier struct {
	secret     string
	defaultTTL time.Duration
}

// New creates a verifier for the given secret. An empty secret is tolerated
// at construction so the server can still boot and serve public routes, but
// every authenticated operation fails closed until one is configured.
func New(secret string, defaultTTL time.Duration) *Verifier {
	return &Verifier{secret: secret, defaultTTL: defaultTTL}
}

// SecretConfigured reports whether a non-empty admin secret is set.
func (v *Verifier) SecretConfigured() bool {
	return v.secret != ""
}

// DefaultTTL returns the token lifetime used when the caller does not
// override it.
func (v *Verifier) DefaultTTL() time.Duration {
	return v.defaultTTL
}

// VerifyPassword compares candidate against the configured secret. Both
// sides are hashed to fixed length first, then compared in constant time, so
// the comparison never leaks where the first differing byte is. A missing
// secret always denies.
func (v *Verifier) VerifyPassword(candidate string) bool {
	if !v.SecretConfigured() {
		return false
	}

	want := sha256.Sum256([]byte(v.secret))
	got := sha256.Sum256([]byte(candidate))

	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// tokenClaims is the signed payload embedded in a token. Two tokens issued
// in the same millisecond with the same role are identical; there is no
// per-token nonce, matching the original token format.
type tokenClaims struct {
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
	Role      string `json:"role"`
}

// IssueToken mints a token of the form payload:signature, where payload is
// base64url-encoded claims and signature is hex(HMAC-SHA256(secret, payload)).
// The TTL is taken as given; a zero or negative TTL produces an already
// expired token rather than falling back to a default.
func (v *Verifier) IssueToken(role string, ttl time.Duration) (string, error) {
	if !v.SecretConfigured() {
		return "", ErrSecretNotConfigured
	}

	now := time.Now()
	claims := tokenClaims{
		ExpiresAt: now.Add(ttl).UnixMilli(),
		IssuedAt:  now.UnixMilli(),
		Role:      role,
	}

	raw, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + ":" + v.sign(payload), nil
}

// VerifyToken reports whether token is well formed, unexpired, and signed
// with the configured secret. Malformed input is simply invalid; this never
// panics and never errors.
func (v *Verifier) VerifyToken(token string) bool {
	if !v.SecretConfigured() {
		return false
	}

	payload, sig, ok := strings.Cut(token, ":")
	if !ok || payload == "" || sig == "" {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return false
	}

	var claims tokenClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return false
	}

	if time.Now().UnixMilli() > claims.ExpiresAt {
		return false
	}

	want := v.sign(payload)
	return subtle.ConstantTimeCompare([]byte(want), []byte(sig)) == 1
}

// TokenRole extracts the role claim from a token after full verification.
// Returns "" for invalid tokens.
func (v *Verifier) TokenRole(token string) string {
	if !v.VerifyToken(token) {
		return ""
	}

	payload, _, _ := strings.Cut(token, ":")
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return ""
	}

	var claims tokenClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return ""
	}
	return claims.Role
}

func (v *Verifier) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
