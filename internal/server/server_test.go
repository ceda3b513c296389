package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hijo-electricity/hijo/internal/metrics"
	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/ratelimit"
	"github.com/hijo-electricity/hijo/internal/service"
	"github.com/hijo-electricity/hijo/internal/storage"
	"github.com/hijo-electricity/hijo/internal/store"
	"github.com/hijo-electricity/hijo/internal/upload"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testUsername  = "hijo-admin"
	testPassword  = "supersecretpassword"
)

func init() {
	service.PasswordCost = bcrypt.MinCost
}

type recordingNotifier struct {
	mu       sync.Mutex
	contacts []*model.Contact
}

func (n *recordingNotifier) Dispatch(c *model.Contact) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contacts = append(n.contacts, c)
	return nil
}

func (n *recordingNotifier) sent() []*model.Contact {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*model.Contact(nil), n.contacts...)
}

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server   *Server
	store    *store.Store
	authSvc  *service.AuthService
	root     string
	notifier *recordingNotifier
	metrics  *metrics.Metrics
}

// newTestEnv creates a fully wired Server backed by an in-memory store, a
// temporary upload directory and in-process rate-limit counters.
func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	st, err := store.Open(store.DefaultConfig())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	root := t.TempDir()
	provider, err := storage.NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	authSvc := service.NewAuthService(st, service.NewTokenService(testJWTSecret, 0))
	notifier := &recordingNotifier{}

	cfg := DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	srv := New(cfg, Deps{
		Store:    st,
		Auth:     authSvc,
		Provider: provider,
		Uploads:  upload.New(provider, upload.DefaultMaxSize, logger, upload.WithObserver(m.Upload)),
		Notifier: notifier,
		Limits:   ratelimit.NewSet(nil, ratelimit.WithLogger(logger), ratelimit.OnLimit(m.RateLimited)),
		Metrics:  m,
	}, logger)

	return &testEnv{
		server:   srv,
		store:    st,
		authSvc:  authSvc,
		root:     root,
		notifier: notifier,
		metrics:  m,
	}
}

func (e *testEnv) seedAdmin(t *testing.T) {
	t.Helper()
	if _, err := e.authSvc.CreateAdmin(context.Background(), testUsername, testPassword); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
}

// login returns a bearer token for the seeded admin.
func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rr := e.doJSON(t, "POST", "/api/auth/login", "", map[string]string{
		"username": testUsername,
		"password": testPassword,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data model.LoginResult `json:"data"`
	}
	decodeBody(t, rr, &resp)
	return resp.Data.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return e.do(t, method, path, token, bytes.NewReader(b), "application/json")
}

func (e *testEnv) storedImages(t *testing.T) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(e.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk uploads: %v", err)
	}
	return files
}

type envelope struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    json.RawMessage    `json:"data"`
	Errors  []model.FieldError `json:"errors"`
	Error   string             `json:"error"`
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	decodeBody(t, rr, &env)
	return env
}

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}

func projectForm(t *testing.T, fields map[string]string, withImage bool) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if withImage {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="site.jpg"`)
		h.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write(jpegBytes)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	return buf, mw.FormDataContentType()
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Version = "1.2.3" })

	rr := env.do(t, "GET", "/healthz", "", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	var health map[string]string
	decodeBody(t, rr, &health)
	if health["status"] != "ok" || health["version"] != "1.2.3" {
		t.Errorf("healthz body = %v", health)
	}

	if rr := env.do(t, "GET", "/readyz", "", nil, ""); rr.Code != http.StatusOK {
		t.Errorf("readyz: %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/nothing-here"},
		{"GET", "/"},
		{"PATCH", "/api/projects"},
	} {
		rr := env.do(t, tc.method, tc.path, "", nil, "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want 404", tc.method, tc.path, rr.Code)
			continue
		}
		body := decodeEnvelope(t, rr)
		if body.Success || body.Message != "Route not found" {
			t.Errorf("%s %s: envelope = %+v", tc.method, tc.path, body)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/projects", "", nil, "")
	for header, want := range map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "SAMEORIGIN",
		"Referrer-Policy":              "no-referrer",
		"Cross-Origin-Resource-Policy": "same-origin",
		"Strict-Transport-Security":    "max-age=15552000; includeSubDomains",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy missing")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.CORSOrigins = []string{"https://hijo.example"} })

	req := httptest.NewRequest("OPTIONS", "/api/contact", nil)
	req.Header.Set("Origin", "https://hijo.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rr := httptest.NewRecorder()
	env.server.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://hijo.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.login(t)

	rr := env.do(t, "GET", "/api/auth/verify", token, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: status %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Message string `json:"message"`
		Data    struct {
			Admin model.AdminInfo `json:"admin"`
		} `json:"data"`
	}
	decodeBody(t, rr, &resp)
	if resp.Message != "Token is valid" || resp.Data.Admin.Username != testUsername {
		t.Errorf("verify response = %+v", resp)
	}

	rr = env.do(t, "GET", "/api/auth/verify", "", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("verify without token: %d", rr.Code)
	}
	if got := decodeEnvelope(t, rr).Message; got != "No token provided. Authorization denied." {
		t.Errorf("message = %q", got)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/contact"},
		{"GET", "/api/contact/1"},
		{"DELETE", "/api/contact/1"},
		{"DELETE", "/api/projects/1"},
	} {
		rr := env.do(t, tc.method, tc.path, "", nil, "")
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status %d, want 401", tc.method, tc.path, rr.Code)
		}
	}
}

func TestLoginRateLimitCountsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	// Successful logins are refunded.
	for i := 0; i < ratelimit.Login.Limit+2; i++ {
		env.login(t)
	}

	bad := map[string]string{"username": testUsername, "password": "wrong-password"}
	for i := 0; i < ratelimit.Login.Limit; i++ {
		rr := env.doJSON(t, "POST", "/api/auth/login", "", bad)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d, want 401", i+1, rr.Code)
		}
	}

	rr := env.doJSON(t, "POST", "/api/auth/login", "", bad)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("attempt %d: status %d, want 429", ratelimit.Login.Limit+1, rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body.Success || body.Message != ratelimit.Login.Message {
		t.Errorf("envelope = %+v", body)
	}

	// The limit holds for correct credentials too.
	rr = env.doJSON(t, "POST", "/api/auth/login", "", map[string]string{
		"username": testUsername, "password": testPassword,
	})
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("valid login after limit: status %d, want 429", rr.Code)
	}
}

func TestContactRateLimit(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{
		"name":    "Layla",
		"email":   "layla@example.com",
		"message": "Please call me about a rewiring job.",
	}
	for i := 0; i < ratelimit.Contact.Limit; i++ {
		if rr := env.doJSON(t, "POST", "/api/contact", "", body); rr.Code != http.StatusCreated {
			t.Fatalf("submission %d: status %d, body %s", i+1, rr.Code, rr.Body.String())
		}
	}
	rr := env.doJSON(t, "POST", "/api/contact", "", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rr.Code)
	}
	if got := decodeEnvelope(t, rr).Message; got != ratelimit.Contact.Message {
		t.Errorf("message = %q", got)
	}

	// Other clients are counted separately.
	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	other := httptest.NewRecorder()
	env.server.ServeHTTP(other, req)
	if other.Code != http.StatusOK {
		t.Errorf("other client: status %d", other.Code)
	}
}

func TestContactFlowNotifiesAndSanitizes(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.login(t)

	rr := env.doJSON(t, "POST", "/api/contact", "", map[string]string{
		"name":    "<b>Omar</b> Haddad",
		"email":   "omar@example.com",
		"phone":   "+971 50 123 4567",
		"message": "<script>alert(1)</script>Need a quote for solar panels.",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rr.Code, rr.Body.String())
	}
	created := decodeEnvelope(t, rr)
	if created.Message != "Your message has been received! We will contact you soon." {
		t.Errorf("message = %q", created.Message)
	}
	var receipt model.ContactReceipt
	if err := json.Unmarshal(created.Data, &receipt); err != nil {
		t.Fatalf("receipt: %v", err)
	}

	sent := env.notifier.sent()
	if len(sent) != 1 || sent[0].ID != receipt.ID {
		t.Fatalf("notifier received %d contacts", len(sent))
	}

	rr = env.do(t, "GET", "/api/contact/"+strconv.FormatInt(receipt.ID, 10), token, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	var got struct {
		Data model.Contact `json:"data"`
	}
	decodeBody(t, rr, &got)
	if strings.ContainsAny(got.Data.Name, "<>") || strings.Contains(got.Data.Message, "script") {
		t.Errorf("stored contact not sanitized: %+v", got.Data)
	}
}

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.login(t)

	body, ct := projectForm(t, map[string]string{
		"titleEn":       "Warehouse Lighting",
		"descriptionEn": "LED retrofit for a 4000 m2 warehouse.",
	}, true)
	rr := env.do(t, "POST", "/api/projects", token, body, ct)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Data model.Project `json:"data"`
	}
	decodeBody(t, rr, &created)
	if !strings.HasPrefix(created.Data.Image, "/uploads/projects/") {
		t.Fatalf("image path = %q", created.Data.Image)
	}

	// The stored image is publicly served.
	if rr := env.do(t, "GET", created.Data.Image, "", nil, ""); rr.Code != http.StatusOK {
		t.Fatalf("serve image: %d", rr.Code)
	} else if !bytes.Equal(rr.Body.Bytes(), jpegBytes) {
		t.Error("served image differs from upload")
	}

	path := "/api/projects/" + strconv.FormatInt(created.Data.ID, 10)
	rr = env.do(t, "DELETE", path, token, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("first delete: %d", rr.Code)
	}
	rr = env.do(t, "DELETE", path, token, nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d, want 404", rr.Code)
	}
	if got := decodeEnvelope(t, rr).Message; got != "Project not found" {
		t.Errorf("message = %q", got)
	}
	if files := env.storedImages(t); len(files) != 0 {
		t.Errorf("images left after delete: %v", files)
	}
}

func TestFailedCreateLeavesNoFile(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.login(t)

	body, ct := projectForm(t, map[string]string{"titleEn": "No description"}, true)
	rr := env.do(t, "POST", "/api/projects", token, body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
	if files := env.storedImages(t); len(files) != 0 {
		t.Errorf("orphaned files: %v", files)
	}

	// Without a token nothing is stored either.
	body, ct = projectForm(t, map[string]string{
		"titleEn": "Unauthorized", "descriptionEn": "Should not be stored",
	}, true)
	if rr := env.do(t, "POST", "/api/projects", "", body, ct); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rr.Code)
	}
	if files := env.storedImages(t); len(files) != 0 {
		t.Errorf("orphaned files: %v", files)
	}
}

func TestInvalidIDRejected(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/projects/abc", "", nil, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
	if len(decodeEnvelope(t, rr).Errors) == 0 {
		t.Error("expected field errors")
	}
}

func TestOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/openapi.json", "", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var doc map[string]interface{}
	decodeBody(t, rr, &doc)
	paths, _ := doc["paths"].(map[string]interface{})
	if _, ok := paths["/api/contact"]; !ok {
		t.Errorf("paths missing /api/contact: %v", paths)
	}
}

func TestMetricsExposition(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "GET", "/api/projects", "", nil, "")
	rr := env.do(t, "GET", "/metrics", "", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "hijo_http_requests_total") {
		t.Error("request counter missing from exposition")
	}
}

func TestShutdownHooksRunInOrder(t *testing.T) {
	env := newTestEnv(t)

	var order []string
	env.server.OnShutdown("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	env.server.OnShutdown("second", func(context.Context) error {
		order = append(order, "second")
		return io.ErrUnexpectedEOF
	})
	env.server.OnShutdown("third", func(context.Context) error {
		order = append(order, "third")
		return nil
	})

	env.server.runHooks(context.Background())
	if strings.Join(order, ",") != "first,second,third" {
		t.Errorf("order = %v", order)
	}
}
