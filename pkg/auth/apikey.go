package auth

import (
	"crypto/subtle"
	"net/http"
)

// DefaultAPIKeyHeader is the header checked when none is configured
const DefaultAPIKeyHeader = "X-API-Key"

// apiKeyAuthenticator compares a configured header value by exact match
type apiKeyAuthenticator struct {
	header string
	key    []byte
}

// Authenticate checks the configured header against the expected key.
// Comparison is constant-time so timing does not leak prefix matches.
func (a *apiKeyAuthenticator) Authenticate(r *http.Request) error {
	presented := r.Header.Get(a.header)
	if presented == "" {
		return failure(ModeAPIKey, "missing api key header")
	}
	if subtle.ConstantTimeCompare([]byte(presented), a.key) != 1 {
		return failure(ModeAPIKey, "key mismatch")
	}
	return nil
}

func (a *apiKeyAuthenticator) Mode() Mode { return ModeAPIKey }
