package http

import (
	"encoding/base64"
	"net/http"
)

// =============================================================================
// AUTHENTICATION STRATEGIES
// =============================================================================

// AuthConfig represents authentication configuration.
type AuthConfig interface {
	Apply(req *http.Request)
}

// NoAuth represents no authentication.
type NoAuth struct{}

func (a NoAuth) Apply(req *http.Request) {}

// BearerToken uses Bearer token authentication. The remote tabular API
// authenticates every call this way.
type BearerToken struct {
	Token string
}

// Apply adds Bearer token header to the request.
func (a BearerToken) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// BasicAuth uses HTTP Basic Authentication. Kept for the generic REST
// backend template.
type BasicAuth struct {
	Username string
	Password string
}

// Apply adds Basic auth header to the request.
func (a BasicAuth) Apply(req *http.Request) {
	if a.Username == "" && a.Password == "" {
		return
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	req.Header.Set("Authorization", "Basic "+credentials)
}

// APIKey uses API key authentication via a configurable header.
type APIKey struct {
	Key    string
	Header string // Header name (default: X-API-Key)
}

// Apply adds API key header to the request.
func (a APIKey) Apply(req *http.Request) {
	if a.Key == "" {
		return
	}
	header := a.Header
	if header == "" {
		header = "X-API-Key"
	}
	req.Header.Set(header, a.Key)
}
