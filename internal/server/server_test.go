package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/alenastream/alenastream/internal/auth"
)

const testSecret = "test-jwt-secret-key"

type stubStorage struct {
	downloadURL string
}

func (s *stubStorage) GenerateDownloadURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return s.downloadURL, nil
}

func (s *stubStorage) HeadObject(_ context.Context, _ string) (int64, string, error) {
	return 0, "", errors.New("not found")
}

func (s *stubStorage) DeleteObject(_ context.Context, _ string) error {
	return nil
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(_ context.Context) error { return p.err }

func testPublicFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":     {Data: []byte("<html>landing</html>")},
		"login.html":     {Data: []byte("<html>login</html>")},
		"dashboard.html": {Data: []byte("<html>dashboard</html>")},
		"js/embed.js":    {Data: []byte("// player")},
	}
}

func newTestServer(t *testing.T, baseURL string) (*Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}
	srv := New(Config{
		DB:        mock,
		Storage:   &stubStorage{downloadURL: "https://s3.example.com/signed"},
		PublicFS:  testPublicFS(),
		JWTSecret: testSecret,
		BaseURL:   baseURL,
	})
	return srv, mock
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := auth.GenerateSessionToken(testSecret, "user-uuid-1", "alice", "user")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return &http.Cookie{Name: auth.SessionCookieName, Value: token}
}

// --- Health ---

func TestHealth_OK(t *testing.T) {
	srv := New(Config{Pinger: &stubPinger{}})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHealth_DatabaseUnreachable(t *testing.T) {
	srv := New(Config{Pinger: &stubPinger{err: errors.New("down")}})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

// --- Public playback surface ---

func TestByToken_ReachableWithoutSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, embed_token, video_id, title FROM videos`).
		WithArgs("pubtoken123").
		WillReturnRows(pgxmock.NewRows([]string{"id", "embed_token", "video_id", "title"}).
			AddRow("vid-1", "pubtoken123", "media-abc", "Demo"))

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/videos/by-token/pubtoken123", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without session, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPublicSigned_ReachableWithoutSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	mock.ExpectQuery(`SELECT file_key, hls_key, source FROM videos`).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"file_key", "hls_key", "source"}).
			AddRow("uploads/media-abc.mp4", (*string)(nil), (*string)(nil)))

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/videos/public-signed/tok-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without session, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"mode":"direct"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

// --- Gated management surface ---

func TestVideoList_RequiresSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/videos/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error != "Unauthorized. Please login." {
		t.Errorf("unexpected error message: %q", body.Error)
	}
}

func TestVideoList_WithSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	mock.ExpectQuery(`SELECT v.id, v.title, v.video_id, v.embed_token`).
		WithArgs("user-uuid-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "video_id", "embed_token", "created_at", "view_count"}))

	req := httptest.NewRequest(http.MethodGet, "/api/videos/", nil)
	req.AddCookie(sessionCookie(t))
	rec := serve(srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatsSummary_RequiresSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/stats/summary", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// --- Pages ---

func TestPublicPage_ServedWithoutSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/login.html", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "login") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestPlayerScript_ServedWithoutSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/js/embed.js", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPrivatePage_RedirectsWithoutSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/dashboard.html", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/" {
		t.Errorf("expected redirect to /, got %q", got)
	}
}

func TestPrivatePage_ServedWithSession(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	req := httptest.NewRequest(http.MethodGet, "/dashboard.html", nil)
	req.AddCookie(sessionCookie(t))
	rec := serve(srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dashboard") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

// --- Security headers ---

func TestSecurityHeaders_Default(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/login.html", nil))

	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("expected SAMEORIGIN, got %q", got)
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'self'") {
		t.Errorf("expected same-origin frame-ancestors, got %q", csp)
	}
	if !strings.Contains(csp, "nonce-") {
		t.Errorf("expected script nonce in CSP, got %q", csp)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("expected no HSTS for non-https base URL")
	}
}

func TestSecurityHeaders_EmbedSurfaceIsFrameable(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	mock.ExpectQuery(`SELECT title FROM videos`).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"title"}).AddRow("Demo"))

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/e/tok-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "" {
		t.Errorf("expected no X-Frame-Options on embed surface, got %q", got)
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors *") {
		t.Errorf("expected frame-ancestors * on embed surface, got %q", csp)
	}
}

func TestSecurityHeaders_HSTSWithHTTPSBaseURL(t *testing.T) {
	srv, mock := newTestServer(t, "https://alenastream.com")
	defer mock.Close()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/login.html", nil))

	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header for https base URL")
	}
}

func TestSecurityHeaders_StorageEndpointInCSP(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}
	defer mock.Close()

	srv := New(Config{
		DB:               mock,
		Storage:          &stubStorage{},
		PublicFS:         testPublicFS(),
		JWTSecret:        testSecret,
		S3PublicEndpoint: "https://media.alenastream.com",
	})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/login.html", nil))

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "media-src 'self' blob: https://media.alenastream.com") {
		t.Errorf("expected storage endpoint in media-src, got %q", csp)
	}
}

// --- Static fallback ---

func TestUnknownPublicAsset_FallsBackToIndex(t *testing.T) {
	srv, mock := newTestServer(t, "")
	defer mock.Close()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/css/missing.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "landing") {
		t.Errorf("expected index fallback, got %s", rec.Body.String())
	}
}
