package service

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/metrics"
	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage/memory"
	"github.com/rryowa/medods_practice/internal/util"
)

var testSigningKey = []byte("practice-test-secret")

func mintToken(t *testing.T, uid string, exp time.Time) string {
	t.Helper()

	claims := accessClaims{
		UserID: uid,
		Email:  uid + "@clinic.test",
		Role:   "doctor",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-15 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func testConfig(t *testing.T, baseURL string) *util.GatewayConfig {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	return &util.GatewayConfig{
		BaseURL:        u,
		LoginPath:      "/auth/login",
		RegisterPath:   "/auth/register",
		RefreshPath:    "/auth/refresh",
		LogoutPath:     "/auth/logout",
		RequestTimeout: 5 * time.Second,
		RefreshTimeout: 5 * time.Second,
		ExpiryBuffer:   util.DefaultExpiryBuffer,
	}
}

// fakeBackend is a practice API: auth endpoints plus /patients, which only
// accepts the token in validToken.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	validToken string
	refreshTo  string
	refreshErr int
	loginErr   int
	logoutErr  int
	seenAuth   []string
	seenBodies []string

	refreshCalls      atomic.Int32
	logoutCalls       atomic.Int32
	patientCalls      atomic.Int32
	unauthorizedCount atomic.Int32

	// refreshGate, when set, is waited on before answering a refresh.
	refreshGate func()
	// alwaysUnauthorized rejects every /patients call.
	alwaysUnauthorized bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", b.handleLogin)
	mux.HandleFunc("/auth/register", b.handleLogin)
	mux.HandleFunc("/auth/refresh", b.handleRefresh)
	mux.HandleFunc("/auth/logout", b.handleLogout)
	mux.HandleFunc("/patients", b.handlePatients)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) URL() string { return b.srv.URL }

func (b *fakeBackend) setValidToken(tok string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validToken = tok
}

func (b *fakeBackend) setRefreshTo(tok string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshTo = tok
}

func (b *fakeBackend) configure(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) auths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seenAuth...)
}

func (b *fakeBackend) bodies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seenBodies...)
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Reason: "bad json"})
		return
	}

	b.mu.Lock()
	loginErr, token := b.loginErr, b.validToken
	b.mu.Unlock()

	if loginErr != 0 {
		writeJSON(w, loginErr, models.ErrorResponse{Reason: "rejected " + req.Email})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rt-1", Path: "/auth", HttpOnly: true})
	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	b.mu.Lock()
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		gate()
	}

	b.mu.Lock()
	refreshErr, next := b.refreshErr, b.refreshTo
	b.mu.Unlock()

	if refreshErr != 0 {
		writeJSON(w, refreshErr, models.ErrorResponse{Reason: "refresh token revoked"})
		return
	}
	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: next})
}

func (b *fakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.logoutCalls.Add(1)

	b.mu.Lock()
	b.seenAuth = append(b.seenAuth, "logout:"+r.Header.Get("Authorization"))
	logoutErr := b.logoutErr
	b.mu.Unlock()

	if logoutErr != 0 {
		w.WriteHeader(logoutErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) handlePatients(w http.ResponseWriter, r *http.Request) {
	b.patientCalls.Add(1)

	raw, _ := io.ReadAll(r.Body)

	auth := r.Header.Get("Authorization")
	b.mu.Lock()
	b.seenAuth = append(b.seenAuth, auth)
	b.seenBodies = append(b.seenBodies, string(raw))
	valid, reject := b.validToken, b.alwaysUnauthorized
	b.mu.Unlock()

	if reject || auth != "Bearer "+valid {
		b.unauthorizedCount.Add(1)
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Reason: "token expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"patient": "Ivanov", "request_id": r.Header.Get("X-Request-ID")})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fixture wires the real components against a fakeBackend.
type fixture struct {
	backend     *fakeBackend
	cfg         *util.GatewayConfig
	store       *memory.SessionStore
	inspector   *TokenInspector
	client      *AuthClient
	auth        *AuthService
	coordinator *RefreshCoordinator
	gateway     *Gateway
}

func newFixture(t *testing.T, mutate ...func(*util.GatewayConfig)) *fixture {
	t.Helper()

	backend := newFakeBackend(t)
	cfg := testConfig(t, backend.URL())
	for _, m := range mutate {
		m(cfg)
	}

	httpClient, err := NewHTTPClient(cfg)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	log := zap.NewNop().Sugar()
	rec := metrics.Nop{}
	store := memory.NewSessionStore(log)
	inspector := NewTokenInspector()
	authClient := NewAuthClient(cfg, httpClient, log)
	auth := NewAuthService(cfg, authClient, inspector, store, rec, log)
	coordinator := NewRefreshCoordinator(cfg, authClient, inspector, store, auth, rec, log)
	gateway := NewGateway(cfg, httpClient, store, inspector, coordinator, rec, log)

	return &fixture{
		backend:     backend,
		cfg:         cfg,
		store:       store,
		inspector:   inspector,
		client:      authClient,
		auth:        auth,
		coordinator: coordinator,
		gateway:     gateway,
	}
}

// seed puts a session for token directly into the store.
func (f *fixture) seed(t *testing.T, token string) {
	t.Helper()

	s, err := f.inspector.Decode(token)
	if err != nil {
		t.Fatalf("decode seed token: %v", err)
	}
	f.store.Write(s, models.ChangeLogin)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func newStatusServer(t *testing.T, status int) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, models.ErrorResponse{Reason: http.StatusText(status)})
	}))
	t.Cleanup(srv.Close)
	return mustParseURL(t, srv.URL)
}
