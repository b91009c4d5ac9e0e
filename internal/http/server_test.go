package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"splitpay/internal/auth"
	"splitpay/internal/core"
	"splitpay/internal/metrics"
	"splitpay/internal/middleware/ratelimit"
	"splitpay/internal/middleware/session"
	"splitpay/internal/middleware/trace"
	"splitpay/internal/rates"
	"splitpay/internal/services"
	"splitpay/internal/storage"
	"splitpay/internal/storage/memory"
)

const testPassword = "open-sesame"

type testEnv struct {
	srv     *Server
	store   *storage.StateStore
	blob    *memory.Store
	metrics *metrics.Metrics
}

type envOption func(*Config)

func newTestEnv(t *testing.T, opts ...envOption) testEnv {
	t.Helper()

	blob := memory.New()
	store := storage.NewStateStore(blob, core.DefaultState([]string{"Alice", "Bob", "Carol"}), nil)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ledger := services.NewLedgerService(store, services.Options{
		Pricing: core.Pricing{
			ServiceName:   "ChatGPT",
			Price:         core.Money{Cents: 2000},
			BaseCurrency:  "USD",
			LocalCurrency: "JPY",
		},
		Rates:    rates.Static{Quote: rates.Quote{Value: 151, Source: rates.SourceLive}},
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) },
		Metrics:  m,
	})

	gate, err := auth.NewGate(testPassword)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	jwtm, err := auth.NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	cfg := Config{
		Addr:     ":0",
		Ledger:   ledger,
		Gate:     gate,
		Sessions: session.NewManager(jwtm),
		Metrics:  m,
		Gatherer: reg,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := NewServer(cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testEnv{srv: srv, store: store, blob: blob, metrics: m}
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(path string, form url.Values, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func (e testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rr := e.do(postForm("/login", url.Values{"password": {testPassword}}, nil))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303", rr.Code)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func (e testEnv) state(t *testing.T) core.State {
	t.Helper()
	res := e.store.Load(context.Background())
	if res.Status != storage.StatusLoaded {
		t.Fatalf("load status = %s, want loaded", res.Status)
	}
	return res.State
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s content type = %q", path, ct)
		}
	}
}

func TestReadyReportsFailedCheck(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Checks = map[string]func(context.Context) error{
			"storage": func(context.Context) error { return errors.New("connection refused") },
		}
	})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Errorf("body should name the failing check: %s", rr.Body.String())
	}
}

func TestIndexRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}

	rr = env.do(postForm("/members/add", url.Values{"name": {"Dave"}}, nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated POST status = %d, want 401", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/login", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("login page status = %d", rr.Code)
	}

	rr = env.do(postForm("/login", url.Values{"password": {"nope"}}, nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Wrong password.") {
		t.Error("wrong password should show an inline error")
	}
	if got := testutil.ToFloat64(env.metrics.LoginAttempts.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed attempts = %v, want 1", got)
	}

	cookie := env.login(t)
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if got := testutil.ToFloat64(env.metrics.LoginAttempts.WithLabelValues("success")); got != 1 {
		t.Errorf("successful attempts = %v, want 1", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Code != http.StatusSeeOther {
		t.Errorf("login page with session status = %d, want 303", rr.Code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rr := env.do(postForm("/logout", nil, cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout should expire the session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if rr := env.do(req); rr.Code != http.StatusSeeOther {
		t.Errorf("old cookie after logout status = %d, want 303 to login", rr.Code)
	}
}

func TestIndexRendersDashboard(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"ChatGPT subscription split",
		"151.00 JPY",
		"3,020 JPY",
		"1,010 JPY",
		`name="m:2024-06"`,
		"unpaid 1,010 JPY",
		"[Notice] ChatGPT subscription collection",
		"Set a payment link",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	if rr.Header().Get(trace.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing CSP header")
	}
}

func TestMemberForms(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rr := env.do(postForm("/members/add", url.Values{"name": {"  Dave "}}, cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("add status = %d, want 303", rr.Code)
	}
	if st := env.state(t); !st.HasMember("Dave") {
		t.Fatalf("members = %v, want Dave added", st.Members)
	}

	rr = env.do(postForm("/members/add", url.Values{"name": {"Dave"}}, cookie))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate add status = %d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), core.ErrMemberExists.Error()) {
		t.Error("duplicate add should show the error inline")
	}

	rr = env.do(postForm("/members/delete", url.Values{"name": {"Alice"}}, cookie))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("removing the contractor status = %d, want 422", rr.Code)
	}

	rr = env.do(postForm("/contractor", url.Values{"contractor": {"Bob"}}, cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("contractor status = %d", rr.Code)
	}
	rr = env.do(postForm("/members/delete", url.Values{"name": {"Alice"}}, cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete status = %d", rr.Code)
	}
	st := env.state(t)
	if st.Contractor != "Bob" || st.HasMember("Alice") {
		t.Errorf("state = %+v", st)
	}
}

func TestPaymentLinkForm(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rr := env.do(postForm("/payment-link", url.Values{"payment_link": {"javascript:alert(1)"}}, cookie))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad link status = %d, want 422", rr.Code)
	}

	rr = env.do(postForm("/payment-link", url.Values{"payment_link": {"https://pay.example/alice"}}, cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	body := env.do(req).Body.String()
	if !strings.Contains(body, `href="https://pay.example/alice"`) {
		t.Error("payment button should link to the stored URL")
	}
}

func TestMonthForms(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rr := env.do(postForm("/months/next", nil, cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("next month status = %d", rr.Code)
	}
	st := env.state(t)
	if _, ok := st.History["2024-07"]; !ok {
		t.Fatalf("history = %v, want 2024-07 added", st.History)
	}
	if _, ok := st.History["2024-06"]; !ok {
		t.Fatalf("history = %v, want the seeded month persisted", st.History)
	}

	rr = env.do(postForm("/months/delete", url.Values{"month": {"2024-07"}}, cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete month status = %d", rr.Code)
	}

	rr = env.do(postForm("/months/delete", url.Values{"month": {"2024-13"}}, cookie))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid month status = %d, want 422", rr.Code)
	}
	rr = env.do(postForm("/months/delete", url.Values{"month": {"2023-01"}}, cookie))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown month status = %d, want 422", rr.Code)
	}
}

func TestApplyTable(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	form := url.Values{
		"month":     {"2024-06"},
		"member":    {"Alice", "Bob", "Carol"},
		"m:2024-06": {"Bob"},
	}
	rr := env.do(postForm("/ledger", form, cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/?ok=saved" {
		t.Errorf("Location = %q, want /?ok=saved", loc)
	}
	if st := env.state(t); !st.History.HasPaid("2024-06", "Bob") {
		t.Fatalf("history = %v, want Bob paid", st.History)
	}

	rr = env.do(postForm("/ledger", form, cookie))
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("unchanged table Location = %q, want /", loc)
	}

	delete(form, "m:2024-06")
	env.do(postForm("/ledger", form, cookie))
	if st := env.state(t); len(st.History["2024-06"]) != 0 {
		t.Errorf("unchecking should clear the month, got %v", st.History["2024-06"])
	}

	rr = env.do(postForm("/ledger", url.Values{"month": {"June"}}, cookie))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month column status = %d, want 422", rr.Code)
	}
}

func TestNotifyWithoutChat(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rr := env.do(postForm("/notify", nil, cookie))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), services.ErrNotifierDisabled.Error()) {
		t.Error("missing inline error")
	}
}

func TestUnreadableStateIsReadOnly(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	env.blob.ReadErr = errors.New("permission denied")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "changes are disabled") {
		t.Error("index should warn that changes are disabled")
	}

	rr = env.do(postForm("/members/add", url.Values{"name": {"Dave"}}, cookie))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("mutation status = %d, want 503", rr.Code)
	}
	if env.blob.Bytes() != nil {
		t.Error("nothing should be written while the state is unreadable")
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/export.xlsx", nil)
	req.AddCookie(cookie)
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "splitpay-2024-06.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Error("body should be a zip container")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "splitpay_http_request_duration_seconds") {
		t.Error("metrics should include request durations")
	}
}

func TestMutationRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = ratelimit.Config{Requests: 1, Window: time.Minute}
	})
	cookie := env.login(t)

	if rr := env.do(postForm("/months/next", nil, cookie)); rr.Code != http.StatusSeeOther {
		t.Fatalf("first change status = %d", rr.Code)
	}
	rr := env.do(postForm("/months/next", nil, cookie))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second change status = %d, want 429", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}
}
