package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type stubResolver struct {
	userID string
	err    error
	got    string
}

func (s *stubResolver) Resolve(_ context.Context, token string) (string, error) {
	s.got = token
	return s.userID, s.err
}

func TestIdentity_NoHeaderIsAnonymous(t *testing.T) {
	res := &stubResolver{userID: "alice"}
	dummy := &dummyHandler{}
	h := Identity(res, zap.NewNop())(dummy)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/content/x", nil))

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	if got := GetUserIDFromContext(dummy.ctx); got != "" {
		t.Errorf("expected anonymous request, got %q", got)
	}
	if res.got != "" {
		t.Errorf("resolver should not be called without a token")
	}
}

func TestIdentity_ResolvedToken(t *testing.T) {
	res := &stubResolver{userID: "alice"}
	dummy := &dummyHandler{}
	h := Identity(res, zap.NewNop())(dummy)

	req := httptest.NewRequest("GET", "/api/my-links", nil)
	req.Header.Set("Authorization", "Bearer tok123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if res.got != "tok123" {
		t.Errorf("resolver got %q; want tok123", res.got)
	}
	if got := GetUserIDFromContext(dummy.ctx); got != "alice" {
		t.Errorf("expected user alice in context, got %q", got)
	}
}

func TestIdentity_UnresolvedTokenIsAnonymous(t *testing.T) {
	dummy := &dummyHandler{}
	h := Identity(&stubResolver{}, zap.NewNop())(dummy)

	req := httptest.NewRequest("POST", "/api/upload", nil)
	req.Header.Set("Authorization", "Bearer stale")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	if got := GetUserIDFromContext(dummy.ctx); got != "" {
		t.Errorf("expected anonymous request, got %q", got)
	}
}

func TestIdentity_ResolverErrorIs500(t *testing.T) {
	dummy := &dummyHandler{}
	h := Identity(&stubResolver{err: errors.New("db down")}, zap.NewNop())(dummy)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/my-links", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(rec, req)

	if dummy.called {
		t.Error("did not expect next handler to be called")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequireIdentity(t *testing.T) {
	dummy := &dummyHandler{}
	h := RequireIdentity(dummy)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/my-links", nil))
	if dummy.called {
		t.Error("did not expect next handler to be called")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"UNAUTHORIZED"`) {
		t.Errorf("body %q missing UNAUTHORIZED code", rec.Body.String())
	}

	req := httptest.NewRequest("GET", "/api/my-links", nil)
	req = req.WithContext(WithUserID(req.Context(), "bob"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !dummy.called || rec.Code != http.StatusOK {
		t.Errorf("expected pass-through for identified request, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":               "",
		"Bearer abc":     "abc",
		"bearer  abc ":   "abc",
		"Basic dXNlcjo=": "",
		"Bearer":         "",
	}
	for header, want := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Errorf("bearerToken(%q) = %q; want %q", header, got, want)
		}
	}
}
