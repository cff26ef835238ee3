package middlewares

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/shiftreports/internal/access"
	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	users map[string]user.User
	errs  map[string]error
}

func (f fakeResolver) Resolve(_ context.Context, raw string) (user.User, error) {
	if err, ok := f.errs[raw]; ok {
		return user.User{}, err
	}
	if u, ok := f.users[raw]; ok {
		return u, nil
	}
	return user.User{}, access.ErrUnauthenticated
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
	return body.Error.Code
}

func TestRequireAuthAndAdmin(t *testing.T) {
	resolver := fakeResolver{
		users: map[string]user.User{
			"user-token":  {ID: "u1", Role: user.RoleUser, IsActive: true},
			"admin-token": {ID: "a1", Role: user.RoleAdmin, IsActive: true},
		},
		errs: map[string]error{"inactive-token": user.ErrInactive},
	}
	m := NewAuthMiddleware(resolver)

	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		id, _ := UserIDFromContext(c)
		c.String(http.StatusOK, id)
	})
	r.GET("/admin", m.RequireAuth(), m.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"no header", "/me", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized, "unauthorized"},
		{"unknown token", "/me", "Bearer nope", http.StatusUnauthorized, "unauthorized"},
		{"inactive", "/me", "Bearer inactive-token", http.StatusForbidden, "account_inactive"},
		{"user ok", "/me", "Bearer user-token", http.StatusOK, ""},
		{"user on admin route", "/admin", "Bearer user-token", http.StatusForbidden, "forbidden"},
		{"admin ok", "/admin", "Bearer admin-token", http.StatusNoContent, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("got %d want %d body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantErr != "" && errorCode(t, w) != tc.wantErr {
				t.Fatalf("got code %q want %q", errorCode(t, w), tc.wantErr)
			}
		})
	}
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	r := gin.New()
	r.POST("/auth/login", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		last = httptest.NewRecorder()
		r.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if errorCode(t, last) != "rate_limited" {
		t.Fatalf("unexpected error code")
	}
}

func TestRequireJSON(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequireJSON())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}

	var body struct {
		Error struct {
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error.RequestID == "" || body.Error.RequestID != w.Header().Get("X-Request-Id") {
		t.Fatalf("expected request id echoed in the error body")
	}

	// empty bodies are allowed through
	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected bodiless POST to pass, got %d", w.Code)
	}
}

func TestMaxBodyBytes_RejectsDeclaredOversize(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 64)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return base }

	if ok, _ := rl.allow("1.2.3.4"); !ok {
		t.Fatalf("first hit should pass")
	}
	ok, wait := rl.allow("1.2.3.4")
	if ok || wait != time.Minute {
		t.Fatalf("second hit: ok=%v wait=%v", ok, wait)
	}
	if ok, _ := rl.allow("5.6.7.8"); !ok {
		t.Fatalf("other key should pass")
	}

	rl.now = func() time.Time { return base.Add(time.Minute) }
	if ok, _ := rl.allow("1.2.3.4"); !ok {
		t.Fatalf("hit after window should pass")
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:3000/"}))
	r.GET("/clients", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed bool
	}{
		{"known origin", http.MethodGet, "http://localhost:3000", false, http.StatusOK, true},
		{"unknown origin", http.MethodGet, "http://evil.example", false, http.StatusOK, false},
		{"preflight known", http.MethodOptions, "http://localhost:3000", true, http.StatusNoContent, true},
		{"preflight unknown", http.MethodOptions, "http://evil.example", true, http.StatusNoContent, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/clients", nil)
			req.Header.Set("Origin", tc.origin)
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			got := w.Header().Get("Access-Control-Allow-Origin")
			if tc.wantAllowed && got != tc.origin {
				t.Fatalf("allow-origin = %q, want %q", got, tc.origin)
			}
			if !tc.wantAllowed && got != "" {
				t.Fatalf("unexpected allow-origin %q", got)
			}
			if tc.preflight && tc.wantAllowed && w.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Fatalf("preflight should list allowed methods")
			}
			if w.Header().Get("Vary") != "Origin" {
				t.Fatalf("expected Vary: Origin, got %q", w.Header().Get("Vary"))
			}
		})
	}
}
