package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lt-jshipley/appcore/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, srv.Client(), func() string { return token }, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var got string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}, "tok-1")

	var out []domain.UserSummary
	if err := c.Get(context.Background(), "/users", nil, &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "Bearer tok-1" {
		t.Fatalf("expected Authorization 'Bearer tok-1', got %q", got)
	}
}

func TestClient_ReadsTokenAtCallTime(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	token := ""
	c, err := NewClient(srv.URL, srv.Client(), func() string { return token }, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.Get(context.Background(), "/a", nil, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no Authorization before login, got %q", got)
	}

	// Token rotated after client construction: honoured by the next call.
	token = "tok-2"
	if err := c.Get(context.Background(), "/a", nil, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "Bearer tok-2" {
		t.Fatalf("expected rotated token on next call, got %q", got)
	}
}

func TestClient_CallerHeadersOverlayDefaults(t *testing.T) {
	var auth, custom string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		custom = r.Header.Get("X-Request-Source")
		w.Write([]byte(`{}`))
	}, "tok-1")

	// A custom header must not disturb Authorization.
	err := c.Do(context.Background(), http.MethodGet, "/a", &Options{
		Headers: http.Header{"X-Request-Source": {"sync"}},
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if auth != "Bearer tok-1" || custom != "sync" {
		t.Fatalf("unexpected headers: auth=%q custom=%q", auth, custom)
	}

	// An explicit caller Authorization wins over the session token.
	err = c.Do(context.Background(), http.MethodGet, "/a", &Options{
		Headers: http.Header{"Authorization": {"Bearer override"}},
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if auth != "Bearer override" {
		t.Fatalf("expected caller Authorization to win, got %q", auth)
	}
}

func TestClient_EncodesQueryParams(t *testing.T) {
	var query url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{}`))
	}, "")

	params := url.Values{}
	params.Set("page", "2")
	params.Set("q", "a b")
	if err := c.Get(context.Background(), "/users", params, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if query.Get("page") != "2" || query.Get("q") != "a b" {
		t.Fatalf("unexpected query: %v", query)
	}
}

func TestClient_SerialisesJSONBody(t *testing.T) {
	var body map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}, "")

	if err := c.Post(context.Background(), "/things", map[string]string{"name": "x"}, nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if body["name"] != "x" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestClient_ProtocolFailureBecomesAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	}, "")

	err := c.Get(context.Background(), "/users/9", nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}

	apiErr, ok := err.(*domain.APIError)
	if !ok {
		t.Fatalf("expected *domain.APIError, got %T", err)
	}
	if apiErr.Status != 404 || apiErr.Message != "not found" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if domain.IsTransportError(err) {
		t.Fatalf("protocol failure must not look like a transport failure")
	}
}

func TestClient_UnparsableErrorBodyFallsBackToStatusText(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}, "")

	err := c.Get(context.Background(), "/a", nil, nil)
	apiErr, ok := err.(*domain.APIError)
	if !ok {
		t.Fatalf("expected *domain.APIError, got %T", err)
	}
	if apiErr.Status != 502 || apiErr.Message != "Bad Gateway" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := NewClient(srv.URL, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	srv.Close() // nothing listening any more

	err = c.Get(context.Background(), "/a", nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsTransportError(err) {
		t.Fatalf("expected transport failure, got %T: %v", err, err)
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure must not carry an APIError")
	}
}

func TestClient_DecodesSuccessBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"7","name":"Ann","email":"a@x.com"}`))
	}, "")

	var out domain.UserSummary
	if err := c.Get(context.Background(), "/users/7", nil, &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.ID != "7" || out.Name != "Ann" {
		t.Fatalf("unexpected decode: %+v", out)
	}
}
