package http

import (
	"encoding/json"
	"net/url"
)

// =============================================================================
// OFFSET-TOKEN PAGINATION
// =============================================================================

// CursorPaginator walks a paginated listing whose responses carry an opaque
// continuation token in the body. The token is echoed back verbatim as a
// query parameter on the next request; it is never parsed or computed
// locally. A response without the token ends the walk.
type CursorPaginator struct {
	Path      string
	Query     url.Values // static parameters repeated on every page (e.g. a view filter)
	OffsetKey string     // query param name for the token (default: "offset")
	TokenPath string     // JSON key holding the next token (default: "offset")

	token string
	pages int
}

// NewCursorPaginator creates a paginator for the given path. Static query
// parameters may be nil.
func NewCursorPaginator(path string, query url.Values) *CursorPaginator {
	return &CursorPaginator{
		Path:      path,
		Query:     query,
		OffsetKey: "offset",
		TokenPath: "offset",
	}
}

// FirstPage returns the request for the current position: the initial page,
// or the page named by the last token seen.
func (p *CursorPaginator) FirstPage() *Request {
	query := url.Values{}
	for k, vs := range p.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	if p.token != "" {
		query.Set(p.OffsetKey, p.token)
	}
	return &Request{
		Method: "GET",
		Path:   p.Path,
		Query:  query,
	}
}

// NextPage extracts the continuation token from resp and returns the request
// for the following page, or nil when resp was the final page.
func (p *CursorPaginator) NextPage(resp *Response) (*Request, error) {
	p.pages++

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, err
	}

	raw, ok := envelope[p.TokenPath]
	if !ok {
		return nil, nil
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	p.token = token
	return p.FirstPage(), nil
}

// Pages returns how many responses have been consumed so far.
func (p *CursorPaginator) Pages() int {
	return p.pages
}
