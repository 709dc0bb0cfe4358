package http

import (
	"net/http"
	"testing"
)

func TestAuthStrategies(t *testing.T) {
	cases := []struct {
		name       string
		auth       AuthConfig
		wantHeader string
		wantValue  string
	}{
		{"no auth", NoAuth{}, "Authorization", ""},
		{"bearer", BearerToken{Token: "tok123"}, "Authorization", "Bearer tok123"},
		{"bearer empty token", BearerToken{}, "Authorization", ""},
		{"basic", BasicAuth{Username: "user", Password: "pass"}, "Authorization", "Basic dXNlcjpwYXNz"},
		{"basic empty", BasicAuth{}, "Authorization", ""},
		{"api key default header", APIKey{Key: "k1"}, "X-API-Key", "k1"},
		{"api key custom header", APIKey{Key: "k2", Header: "X-Custom"}, "X-Custom", "k2"},
		{"api key empty", APIKey{Header: "X-Custom"}, "X-Custom", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
			if err != nil {
				t.Fatalf("building request: %v", err)
			}
			tc.auth.Apply(req)
			if got := req.Header.Get(tc.wantHeader); got != tc.wantValue {
				t.Errorf("%s = %q, want %q", tc.wantHeader, got, tc.wantValue)
			}
		})
	}
}
