// Package auth provides pluggable per-request authentication for the HTTP
// transport. A single Authenticator is selected by configuration and applied
// to every inbound request before it can reach the receive queue.
package auth

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/errors"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
)

// Mode identifies the authentication scheme applied to inbound requests
type Mode string

const (
	// ModeNone accepts every request
	ModeNone Mode = "none"
	// ModeAPIKey compares a configured header value by exact match
	ModeAPIKey Mode = "apikey"
	// ModeBasic decodes and compares a base64 user:pass pair
	ModeBasic Mode = "basic"
	// ModeJWT verifies an HS256-signed bearer token
	ModeJWT Mode = "jwt"
	// ModeCustom is reserved for caller-supplied schemes; without one it
	// passes through with a one-time warning rather than blocking traffic
	ModeCustom Mode = "custom"
)

// Authenticator checks one inbound HTTP request. Implementations must be
// safe for concurrent use; the HTTP transport calls Authenticate from every
// handler goroutine.
type Authenticator interface {
	// Authenticate inspects the request and returns nil if it may proceed.
	// The returned error never contains credential contents.
	Authenticate(r *http.Request) error

	// Mode returns the scheme this authenticator implements
	Mode() Mode
}

// Config selects and parameterizes the authenticator
type Config struct {
	// Mode selects the scheme (default: none)
	Mode Mode `json:"mode"`

	// APIKeyHeader is the header carrying the API key (default: X-API-Key)
	APIKeyHeader string `json:"api_key_header,omitempty"`

	// APIKey is the expected key value for ModeAPIKey
	APIKey string `json:"-"`

	// Username and Password are the expected credentials for ModeBasic
	Username string `json:"-"`
	Password string `json:"-"`

	// JWTSecret is the HMAC secret for ModeJWT
	JWTSecret string `json:"-"`

	// JWTIssuer, when set, must match the token's iss claim
	JWTIssuer string `json:"jwt_issuer,omitempty"`

	// JWTAudience, when set, must match one of the token's aud values
	JWTAudience string `json:"jwt_audience,omitempty"`

	// ClockSkew is the tolerance applied to exp checks (default: 30s)
	ClockSkew time.Duration `json:"clock_skew,omitempty"`
}

// New creates the authenticator selected by config. An unknown or custom mode
// yields a pass-through that warns once instead of silently blocking traffic.
func New(config Config, logger logging.Logger) (Authenticator, error) {
	if logger == nil {
		logger = logging.Default()
	}

	switch config.Mode {
	case ModeNone, "":
		return &noneAuthenticator{}, nil
	case ModeAPIKey:
		if config.APIKey == "" {
			return nil, fmt.Errorf("apikey auth requires a configured key")
		}
		header := config.APIKeyHeader
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		return &apiKeyAuthenticator{header: header, key: []byte(config.APIKey)}, nil
	case ModeBasic:
		if config.Username == "" || config.Password == "" {
			return nil, fmt.Errorf("basic auth requires a username and password")
		}
		return &basicAuthenticator{
			username: []byte(config.Username),
			password: []byte(config.Password),
		}, nil
	case ModeJWT:
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("jwt auth requires a configured secret")
		}
		skew := config.ClockSkew
		if skew == 0 {
			skew = 30 * time.Second
		}
		return &jwtAuthenticator{
			secret:   []byte(config.JWTSecret),
			issuer:   config.JWTIssuer,
			audience: config.JWTAudience,
			skew:     skew,
			now:      time.Now,
		}, nil
	default:
		return &passthroughAuthenticator{mode: config.Mode, logger: logger}, nil
	}
}

// noneAuthenticator accepts everything
type noneAuthenticator struct{}

func (a *noneAuthenticator) Authenticate(*http.Request) error { return nil }
func (a *noneAuthenticator) Mode() Mode                       { return ModeNone }

// passthroughAuthenticator admits all traffic for unimplemented modes,
// logging a warning exactly once so the gap is visible in operation.
type passthroughAuthenticator struct {
	mode   Mode
	logger logging.Logger
	once   sync.Once
}

func (a *passthroughAuthenticator) Authenticate(*http.Request) error {
	a.once.Do(func() {
		a.logger.Warn("authentication mode is not implemented; requests pass unchecked",
			logging.String("mode", string(a.mode)))
	})
	return nil
}

func (a *passthroughAuthenticator) Mode() Mode { return a.mode }

// failure builds the rejection error for a mode, naming only the failed check
func failure(mode Mode, reason string) error {
	return errors.AuthenticationFailed(string(mode), reason)
}
