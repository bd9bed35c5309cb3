package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// basicAuthenticator decodes and compares a base64 user:pass pair
type basicAuthenticator struct {
	username []byte
	password []byte
}

// Authenticate validates an RFC 7617 Authorization header
func (a *basicAuthenticator) Authenticate(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return failure(ModeBasic, "missing authorization header")
	}

	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return failure(ModeBasic, "not a basic credential")
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return failure(ModeBasic, "invalid base64 encoding")
	}

	user, pass, found := strings.Cut(string(decoded), ":")
	if !found {
		return failure(ModeBasic, "malformed credential pair")
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), a.username) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), a.password) == 1
	if !userOK || !passOK {
		return failure(ModeBasic, "credential mismatch")
	}
	return nil
}

func (a *basicAuthenticator) Mode() Mode { return ModeBasic }
