package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/shiftreports/internal/access"
	"github.com/geocoder89/shiftreports/internal/auth"
	"github.com/geocoder89/shiftreports/internal/db"
	"github.com/geocoder89/shiftreports/internal/document"
	"github.com/geocoder89/shiftreports/internal/domain/client"
	apphttp "github.com/geocoder89/shiftreports/internal/http"
	"github.com/geocoder89/shiftreports/internal/identity"
	"github.com/geocoder89/shiftreports/internal/lock"
	"github.com/geocoder89/shiftreports/internal/notifications"
	"github.com/geocoder89/shiftreports/internal/observability"
	"github.com/geocoder89/shiftreports/internal/repo/memory"
	"github.com/geocoder89/shiftreports/internal/submission"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// plainHasher keeps bcrypt cost out of the test run.
type plainHasher struct{}

func (plainHasher) Hash(raw string) (string, error) { return "h:" + raw, nil }
func (plainHasher) Verify(raw, hash string) bool   { return hash == "h:"+raw }

type outbox struct {
	mu   sync.Mutex
	sent []notifications.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg notifications.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

type testApp struct {
	router http.Handler
	store  *memory.Store
	mail   *outbox
}

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass"
)

func setupApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := memory.NewStore()
	ctx := context.Background()

	err := db.Seed(ctx, logger, store, store, plainHasher{}, db.SeedConfig{
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		AdminName:     "Test Admin",
		DemoClients:   true,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	jwt := auth.NewManager("test-secret-key", time.Hour)
	mail := &outbox{}

	engine := submission.NewEngine(store, document.NewCompiler(""), mail, lock.NewLocal(), prom, logger, submission.Config{
		Recipient: "office@example.com",
		Subject:   "MHP Reports",
		Body:      "Attached are the latest reports.",
	})

	router := apphttp.NewRouter(apphttp.Deps{
		Log:      logger,
		Env:      "test",
		Prom:     prom,
		Gatherer: reg,
		Gate:     access.NewGate(jwt, store),
		Identity: identity.NewService(store, plainHasher{}),
		Tokens:   jwt,
		Clients:  store,
		Reports:  store,
		Engine:   engine,
		Store:    store,
	})

	return &testApp{router: router, store: store, mail: mail}
}

func (a *testApp) call(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()

	w := a.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", email, w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if resp.TokenType != "bearer" || resp.AccessToken == "" {
		t.Fatalf("unexpected login response %s", w.Body.String())
	}
	return resp.AccessToken
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v body=%s", err, w.Body.String())
	}
	return body.Error.Code
}

func firstClient(t *testing.T, a *testApp, token string) client.Client {
	t.Helper()
	w := a.call(t, http.MethodGet, "/clients", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list clients: %d", w.Code)
	}
	var list []client.Client
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode clients: %v", err)
	}
	if len(list) == 0 {
		t.Fatalf("expected seeded clients")
	}
	return list[0]
}

func TestAPI_ReportLifecycle(t *testing.T) {
	app := setupApp(t)

	adminToken := app.login(t, adminEmail, adminPassword)

	w := app.call(t, http.MethodPost, "/auth/users", adminToken, map[string]any{
		"email":    "field@example.com",
		"password": "field-pass",
		"fullName": "Field Worker",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create user: %d body=%s", w.Code, w.Body.String())
	}

	token := app.login(t, "field@example.com", "field-pass")
	c := firstClient(t, app, token)
	if c.Name != "Client A" {
		t.Fatalf("expected byte-wise ordering to put Client A first, got %s", c.Name)
	}

	for _, shift := range []string{"Morning", "Evening"} {
		w := app.call(t, http.MethodPost, "/reports", token, map[string]any{
			"clientId":        c.ID,
			"shiftTiming":     shift,
			"paymentReceived": true,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create report: %d body=%s", w.Code, w.Body.String())
		}
	}

	w = app.call(t, http.MethodGet, "/reports/me", token, nil)
	var mine struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &mine)
	if mine.Count != 2 {
		t.Fatalf("expected 2 pending reports, got %d", mine.Count)
	}

	w = app.call(t, http.MethodGet, "/pdf/me", token, nil)
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("fetch pdf: %d", w.Code)
	}

	w = app.call(t, http.MethodPost, "/pdf/me/send", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("send: %d body=%s", w.Code, w.Body.String())
	}
	if len(app.mail.sent) != 1 || app.mail.sent[0].Attachment.Filename != "report.pdf" {
		t.Fatalf("expected one delivered report.pdf, got %+v", app.mail.sent)
	}

	w = app.call(t, http.MethodGet, "/reports/me", token, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &mine)
	if mine.Count != 0 {
		t.Fatalf("expected reports purged after send, got %d", mine.Count)
	}

	w = app.call(t, http.MethodGet, "/admin/stats", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	var stats struct {
		Totals struct {
			SubmissionsCount int `json:"submissionsCount"`
			BatchesSent      int `json:"batchesSent"`
		} `json:"totals"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Totals.SubmissionsCount != 2 || stats.Totals.BatchesSent != 1 {
		t.Fatalf("unexpected totals %+v", stats.Totals)
	}
}

func TestAPI_DeliveryFailureKeepsReports(t *testing.T) {
	app := setupApp(t)
	adminToken := app.login(t, adminEmail, adminPassword)
	c := firstClient(t, app, adminToken)

	w := app.call(t, http.MethodPost, "/reports", adminToken, map[string]any{
		"clientId": c.ID, "shiftTiming": "Night", "paymentReceived": false,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create report: %d", w.Code)
	}

	app.mail.err = errors.New("421 service not available")

	w = app.call(t, http.MethodPost, "/pdf/me/send", adminToken, nil)
	if w.Code != http.StatusBadGateway || errorCode(t, w) != "delivery_failed" {
		t.Fatalf("expected 502 delivery_failed, got %d body=%s", w.Code, w.Body.String())
	}

	w = app.call(t, http.MethodGet, "/reports/me", adminToken, nil)
	var mine struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &mine)
	if mine.Count != 1 {
		t.Fatalf("expected report kept for retry, got %d", mine.Count)
	}
}

func TestAPI_NonAdminIsForbidden(t *testing.T) {
	app := setupApp(t)
	adminToken := app.login(t, adminEmail, adminPassword)

	app.call(t, http.MethodPost, "/auth/users", adminToken, map[string]any{"email": "u@example.com", "password": "user-pass"})
	token := app.login(t, "u@example.com", "user-pass")

	admin, err := app.store.GetUserByEmail(context.Background(), adminEmail)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"create client", http.MethodPost, "/clients", map[string]string{"name": "Client X", "phone": "555-0000", "address": "x"}},
		{"create client malformed", http.MethodPost, "/clients", map[string]string{}},
		{"create user", http.MethodPost, "/auth/users", map[string]string{"email": "v@example.com", "password": "whatever"}},
		{"other user's reports", http.MethodGet, "/admin/users/" + admin.ID + "/reports", nil},
		{"list users", http.MethodGet, "/admin/users", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.call(t, tc.method, tc.path, token, tc.body)
			if w.Code != http.StatusForbidden || errorCode(t, w) != "forbidden" {
				t.Fatalf("expected 403 forbidden, got %d body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestAPI_Authentication(t *testing.T) {
	app := setupApp(t)

	w := app.call(t, http.MethodGet, "/auth/me", "", nil)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "unauthorized" {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = app.call(t, http.MethodGet, "/auth/me", "garbage", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}

	w = app.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": adminEmail, "password": "nope"})
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %d", w.Code)
	}

	token := app.login(t, adminEmail, adminPassword)
	admin, _ := app.store.GetUserByEmail(context.Background(), adminEmail)
	if err := app.store.SetActive(context.Background(), admin.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	w = app.call(t, http.MethodGet, "/auth/me", token, nil)
	if w.Code != http.StatusForbidden || errorCode(t, w) != "account_inactive" {
		t.Fatalf("expected account_inactive for a deactivated user, got %d", w.Code)
	}
}

func TestAPI_DuplicateClientName(t *testing.T) {
	app := setupApp(t)
	adminToken := app.login(t, adminEmail, adminPassword)

	w := app.call(t, http.MethodPost, "/clients", adminToken, map[string]string{"name": "Client A", "phone": "555-0000", "address": "x"})
	if w.Code != http.StatusConflict || errorCode(t, w) != "duplicate_name" {
		t.Fatalf("expected duplicate_name, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestAPI_OpsEndpoints(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/", "/healthz", "/readyz", "/metrics"} {
		w := app.call(t, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, w.Code)
		}
	}
}
