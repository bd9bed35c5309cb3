package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// jwtAuthenticator verifies HS256-signed bearer tokens. Verification is
// implemented directly over crypto/hmac: the token format here is fixed
// (HS256, shared secret, no JWKS or key rotation), and every structural or
// signature failure fails closed. A deployment needing rotation or
// asymmetric algorithms should swap in an audited JWT library.
type jwtAuthenticator struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
	now      func() time.Time
}

// jwtHeader is the decoded first segment of a token
type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// jwtClaims is the decoded second segment of a token. aud may be a string
// or an array of strings per RFC 7519.
type jwtClaims struct {
	Issuer   string          `json:"iss"`
	Audience json.RawMessage `json:"aud"`
	Expiry   *int64          `json:"exp"`
}

// Authenticate validates an Authorization: Bearer <jwt> header
func (a *jwtAuthenticator) Authenticate(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return failure(ModeJWT, "missing authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return failure(ModeJWT, "not a bearer credential")
	}

	return a.verify(header[len(prefix):])
}

func (a *jwtAuthenticator) Mode() Mode { return ModeJWT }

// verify checks structure, signature, and configured claims, in that order
func (a *jwtAuthenticator) verify(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return failure(ModeJWT, "token is not three segments")
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return failure(ModeJWT, "invalid header encoding")
	}
	var hdr jwtHeader
	if err := json.Unmarshal(headerBytes, &hdr); err != nil {
		return failure(ModeJWT, "invalid header json")
	}
	if hdr.Alg != "HS256" {
		return failure(ModeJWT, "algorithm must be HS256")
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return failure(ModeJWT, "invalid signature encoding")
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(parts[0]))
	mac.Write([]byte("."))
	mac.Write([]byte(parts[1]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return failure(ModeJWT, "signature mismatch")
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return failure(ModeJWT, "invalid payload encoding")
	}
	var claims jwtClaims
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return failure(ModeJWT, "invalid payload json")
	}

	if claims.Expiry != nil {
		expiry := time.Unix(*claims.Expiry, 0)
		if a.now().After(expiry.Add(a.skew)) {
			return failure(ModeJWT, "token expired")
		}
	}

	if a.issuer != "" && claims.Issuer != a.issuer {
		return failure(ModeJWT, "issuer mismatch")
	}

	if a.audience != "" && !audienceContains(claims.Audience, a.audience) {
		return failure(ModeJWT, "audience mismatch")
	}

	return nil
}

// audienceContains matches the configured audience against a string or
// string-array aud claim
func audienceContains(raw json.RawMessage, want string) bool {
	if len(raw) == 0 {
		return false
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single == want
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, aud := range many {
			if aud == want {
				return true
			}
		}
	}
	return false
}
