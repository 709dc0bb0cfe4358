// Package http provides the rate-limited HTTP client the tabular backends
// are built on.
//
// Structure:
//
//	client.go - HTTP client with rate limiting, bounded retry, per-call timeout
//	auth.go   - Authentication strategies (Bearer, Basic, API key)
//	pages.go  - Offset-token page walking for paginated listings
package http
