package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

func testClient(serverURL string) *Client {
	cfg := DefaultClientConfig()
	cfg.BaseURL = serverURL
	cfg.Auth = BearerToken{Token: "test-token"}
	cfg.RateLimit = 10000 // keep tests fast
	cfg.RateBurst = 100
	return NewClient(cfg)
}

func TestClient_Get_AppliesAuthAndHeaders(t *testing.T) {
	var gotAuth, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	resp, err := client.Get(context.Background(), "/base1/plots", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected success, got %d", resp.StatusCode)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotAgent != "sync-core/1.0" {
		t.Errorf("unexpected user agent %q", gotAgent)
	}
}

func TestClient_NonSuccessReturnsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such table", http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Get(context.Background(), "/base1/missing", nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if httpErr.StatusCode != 404 {
		t.Errorf("expected 404, got %d", httpErr.StatusCode)
	}
	if httpErr.IsRateLimited() || httpErr.IsServerError() {
		t.Error("404 misclassified as retryable")
	}
}

func TestClient_RetriesRateLimitedThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	resp, err := client.Get(context.Background(), "/base1/plots", nil)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected 2xx, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestClient_RetriedPostResendsBody(t *testing.T) {
	var calls int32
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	payload := map[string]any{"records": []string{"x"}}
	resp, err := client.Post(context.Background(), "/base1/plots", payload)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected 2xx, got %d", resp.StatusCode)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(bodies))
	}
	want := `{"records":["x"]}`
	if bodies[0] != want {
		t.Errorf("first attempt body = %q, want %q", bodies[0], want)
	}
	if bodies[1] != bodies[0] {
		t.Errorf("retried body = %q, want the original %q", bodies[1], bodies[0])
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := testClient(server.URL)
	if _, err := client.Get(context.Background(), "/base1/plots", nil); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("4xx should not be retried, got %d attempts", got)
	}
}

func TestClient_PostURL_SkipsAuth(t *testing.T) {
	var gotAuth string
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		buf := make([]byte, 16)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient("http://unused.invalid")
	resp, err := client.PostURL(context.Background(), server.URL+"/hooks/clear", map[string]any{})
	if err != nil {
		t.Fatalf("PostURL failed: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected 2xx, got %d", resp.StatusCode)
	}
	if gotAuth != "" {
		t.Errorf("webhook call must not carry the API credential, got %q", gotAuth)
	}
	if gotBody != "{}" {
		t.Errorf("expected empty JSON object body, got %q", gotBody)
	}
}

func TestCursorPaginator_WalksUntilTokenAbsent(t *testing.T) {
	pages := []string{
		`{"records":[{"id":"r1"}],"offset":"tok1"}`,
		`{"records":[{"id":"r2"}],"offset":"tok2"}`,
		`{"records":[{"id":"r3"}]}`,
	}
	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		w.Write([]byte(pages[len(offsets)-1]))
	}))
	defer server.Close()

	client := testClient(server.URL)
	paginator := NewCursorPaginator("/base1/plots", url.Values{"view": []string{"viw1"}})

	var ids []string
	req := paginator.FirstPage()
	for req != nil {
		resp, err := client.Do(context.Background(), req)
		if err != nil {
			t.Fatalf("page request failed: %v", err)
		}
		var body struct {
			Records []struct {
				ID string `json:"id"`
			} `json:"records"`
		}
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			t.Fatalf("decode page: %v", err)
		}
		for _, r := range body.Records {
			ids = append(ids, r.ID)
		}
		req, err = paginator.NextPage(resp)
		if err != nil {
			t.Fatalf("NextPage: %v", err)
		}
	}

	if paginator.Pages() != 3 {
		t.Errorf("expected exactly 3 page requests, got %d", paginator.Pages())
	}
	wantOffsets := []string{"", "tok1", "tok2"}
	for i, want := range wantOffsets {
		if offsets[i] != want {
			t.Errorf("request %d: offset=%q, want %q", i, offsets[i], want)
		}
	}
	wantIDs := []string{"r1", "r2", "r3"}
	for i, want := range wantIDs {
		if ids[i] != want {
			t.Errorf("record %d: id=%q, want %q", i, ids[i], want)
		}
	}
}

func TestCursorPaginator_KeepsViewFilterOnEveryPage(t *testing.T) {
	paginator := NewCursorPaginator("/base1/plots", url.Values{"view": []string{"viw9"}})

	req := paginator.FirstPage()
	if req.Query.Get("view") != "viw9" {
		t.Error("view filter missing from first page")
	}

	resp := &Response{Body: []byte(`{"offset":"abc"}`)}
	next, err := paginator.NextPage(resp)
	if err != nil {
		t.Fatalf("NextPage: %v", err)
	}
	if next == nil {
		t.Fatal("expected a next page")
	}
	if next.Query.Get("view") != "viw9" {
		t.Error("view filter missing from continuation page")
	}
	if next.Query.Get("offset") != "abc" {
		t.Errorf("token not echoed back, got %q", next.Query.Get("offset"))
	}
}
