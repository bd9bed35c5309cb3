package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
)

func newRequest(t *testing.T, headers map[string]string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://localhost/mcp/rpc", nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// signToken builds an HS256 JWT from the given header and claims maps
func signToken(t *testing.T, secret string, header, claims map[string]interface{}) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	claimsJSON, err := json.Marshal(claims)
	require.NoError(t, err)

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(claimsJSON)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingInput))

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func hs256Header() map[string]interface{} {
	return map[string]interface{}{"alg": "HS256", "typ": "JWT"}
}

func TestNoneAuthenticatorAcceptsEverything(t *testing.T) {
	a, err := New(Config{Mode: ModeNone}, logging.NopLogger{})
	require.NoError(t, err)

	assert.NoError(t, a.Authenticate(newRequest(t, nil)))
	assert.Equal(t, ModeNone, a.Mode())
}

func TestAPIKeyAuthenticator(t *testing.T) {
	a, err := New(Config{Mode: ModeAPIKey, APIKey: "s3cret"}, logging.NopLogger{})
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		wantErr bool
	}{
		{"valid key", map[string]string{DefaultAPIKeyHeader: "s3cret"}, false},
		{"wrong key", map[string]string{DefaultAPIKeyHeader: "nope"}, true},
		{"missing header", nil, true},
		{"empty value", map[string]string{DefaultAPIKeyHeader: ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authenticate(newRequest(t, tt.headers))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAPIKeyAuthenticatorCustomHeader(t *testing.T) {
	a, err := New(Config{Mode: ModeAPIKey, APIKey: "k", APIKeyHeader: "X-Custom-Key"}, logging.NopLogger{})
	require.NoError(t, err)

	assert.NoError(t, a.Authenticate(newRequest(t, map[string]string{"X-Custom-Key": "k"})))
	assert.Error(t, a.Authenticate(newRequest(t, map[string]string{DefaultAPIKeyHeader: "k"})))
}

func TestAPIKeyAuthenticatorRequiresKey(t *testing.T) {
	_, err := New(Config{Mode: ModeAPIKey}, logging.NopLogger{})
	assert.Error(t, err)
}

func TestBasicAuthenticator(t *testing.T) {
	a, err := New(Config{Mode: ModeBasic, Username: "alice", Password: "wonder"}, logging.NopLogger{})
	require.NoError(t, err)

	encode := func(pair string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(pair))
	}

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"valid pair", encode("alice:wonder"), false},
		{"wrong password", encode("alice:land"), true},
		{"wrong user", encode("bob:wonder"), true},
		{"no colon", encode("alicewonder"), true},
		{"bad base64", "Basic $$$$", true},
		{"bearer scheme", "Bearer abc", true},
		{"missing header", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			err := a.Authenticate(newRequest(t, headers))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJWTAuthenticatorValidToken(t *testing.T) {
	a, err := New(Config{Mode: ModeJWT, JWTSecret: "hush"}, logging.NopLogger{})
	require.NoError(t, err)

	token := signToken(t, "hush", hs256Header(), map[string]interface{}{
		"sub": "client-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	assert.NoError(t, a.Authenticate(newRequest(t, map[string]string{
		"Authorization": "Bearer " + token,
	})))
}

func TestJWTAuthenticatorTamperedSignature(t *testing.T) {
	a, err := New(Config{Mode: ModeJWT, JWTSecret: "hush"}, logging.NopLogger{})
	require.NoError(t, err)

	token := signToken(t, "a different secret", hs256Header(), map[string]interface{}{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	assert.Error(t, a.Authenticate(newRequest(t, map[string]string{
		"Authorization": "Bearer " + token,
	})))
}

func TestJWTAuthenticatorExpiredToken(t *testing.T) {
	a, err := New(Config{Mode: ModeJWT, JWTSecret: "hush"}, logging.NopLogger{})
	require.NoError(t, err)

	token := signToken(t, "hush", hs256Header(), map[string]interface{}{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	assert.Error(t, a.Authenticate(newRequest(t, map[string]string{
		"Authorization": "Bearer " + token,
	})))
}

func TestJWTAuthenticatorRejectsOtherAlgorithms(t *testing.T) {
	a, err := New(Config{Mode: ModeJWT, JWTSecret: "hush"}, logging.NopLogger{})
	require.NoError(t, err)

	for _, alg := range []string{"none", "HS512", "RS256"} {
		token := signToken(t, "hush", map[string]interface{}{"alg": alg, "typ": "JWT"}, map[string]interface{}{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		assert.Error(t, a.Authenticate(newRequest(t, map[string]string{
			"Authorization": "Bearer " + token,
		})), "alg %s must be rejected", alg)
	}
}

func TestJWTAuthenticatorStructuralFailures(t *testing.T) {
	a, err := New(Config{Mode: ModeJWT, JWTSecret: "hush"}, logging.NopLogger{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"two segments", "Bearer aaaa.bbbb"},
		{"four segments", "Bearer a.b.c.d"},
		{"garbage segments", "Bearer $$.$$.$$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			assert.Error(t, a.Authenticate(newRequest(t, headers)))
		})
	}
}

func TestJWTAuthenticatorIssuerAndAudience(t *testing.T) {
	a, err := New(Config{
		Mode:        ModeJWT,
		JWTSecret:   "hush",
		JWTIssuer:   "issuer-a",
		JWTAudience: "svc",
	}, logging.NopLogger{})
	require.NoError(t, err)

	valid := signToken(t, "hush", hs256Header(), map[string]interface{}{
		"iss": "issuer-a",
		"aud": []string{"other", "svc"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assert.NoError(t, a.Authenticate(newRequest(t, map[string]string{
		"Authorization": "Bearer " + valid,
	})))

	wrongIssuer := signToken(t, "hush", hs256Header(), map[string]interface{}{
		"iss": "issuer-b",
		"aud": "svc",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assert.Error(t, a.Authenticate(newRequest(t, map[string]string{
		"Authorization": "Bearer " + wrongIssuer,
	})))

	wrongAudience := signToken(t, "hush", hs256Header(), map[string]interface{}{
		"iss": "issuer-a",
		"aud": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assert.Error(t, a.Authenticate(newRequest(t, map[string]string{
		"Authorization": "Bearer " + wrongAudience,
	})))
}

func TestCustomModePassesThrough(t *testing.T) {
	a, err := New(Config{Mode: ModeCustom}, logging.NopLogger{})
	require.NoError(t, err)

	// Pass-through rather than silent blocking; warning fires once.
	assert.NoError(t, a.Authenticate(newRequest(t, nil)))
	assert.NoError(t, a.Authenticate(newRequest(t, nil)))
	assert.Equal(t, ModeCustom, a.Mode())
}
