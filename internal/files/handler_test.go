package files_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/brightwave/portal-api/internal/audit"
	"github.com/brightwave/portal-api/internal/cache"
	"github.com/brightwave/portal-api/internal/files"
	"github.com/brightwave/portal-api/internal/rbac"
	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/tenant"
	"github.com/brightwave/portal-api/internal/upstream"
	_ "github.com/brightwave/portal-api/testing"
)

type fakeDrive struct {
	fileCalls     int64
	uploadCalls   int64
	projectFolder string
	uploaded      []byte
	uploadedName  string
}

func (f *fakeDrive) FindContactByEmail(ctx context.Context, email string) (*upstream.Contact, error) {
	return &upstream.Contact{ID: "c-1", Email: email, AccountName: "Acme"}, nil
}

func (f *fakeDrive) GetProjects(ctx context.Context, accountID string) ([]upstream.Project, error) {
	return nil, nil
}

func (f *fakeDrive) GetInvoices(ctx context.Context, accountID string) ([]upstream.Invoice, error) {
	return nil, nil
}

func (f *fakeDrive) GetAllCustomerFiles(ctx context.Context, folderID string) ([]upstream.FileRef, error) {
	atomic.AddInt64(&f.fileCalls, 1)
	return []upstream.FileRef{{ID: "doc-1", Name: "contract.pdf", Size: 2048}}, nil
}

func (f *fakeDrive) GetCustomerFolder(ctx context.Context, email string) (string, error) {
	return "folder-root", nil
}

func (f *fakeDrive) GetProjectFolder(ctx context.Context, email, name string) (string, error) {
	f.projectFolder = name
	return "folder-" + name, nil
}

func (f *fakeDrive) UploadFile(ctx context.Context, folderID string, content []byte, name string) (*upstream.FileRef, error) {
	atomic.AddInt64(&f.uploadCalls, 1)
	f.uploaded = content
	f.uploadedName = name
	return &upstream.FileRef{ID: "doc-new", Name: name, Size: int64(len(content))}, nil
}

type memAuditStore struct {
	events []audit.Event
}

func (s *memAuditStore) Insert(ctx context.Context, event audit.Event) error {
	s.events = append(s.events, event)
	return nil
}

type fixture struct {
	router   chi.Router
	drive    *fakeDrive
	audits   *memAuditStore
	sessions *shared.SessionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	drive := &fakeDrive{}
	audits := &memAuditStore{}
	cacheSvc := cache.NewService(cache.NewMemoryStore(), drive, logger, nil, cache.DefaultTTLConfig())
	handler := files.NewHandler(logger, rbac.NewGate(logger), cacheSvc, drive, tenant.NewResolver(drive), audit.NewLogger(audits, logger))

	router := chi.NewRouter()
	handler.MountRoutes(router)
	return &fixture{
		router:   router,
		drive:    drive,
		audits:   audits,
		sessions: shared.NewSessionManager(client, "test_session", time.Hour, false),
	}
}

func (f *fixture) do(t *testing.T, req *http.Request, p *shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	if p != nil {
		sess, err := f.sessions.Create(context.Background(), httptest.NewRecorder(), *p)
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func customer() *shared.Principal {
	return &shared.Principal{UserID: 42, Email: "user@acme.test", Role: rbac.RoleCustomer}
}

func multipartFile(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestListRequiresSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListUsesCustomerFolder(t *testing.T) {
	f := newFixture(t)

	first := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil), customer())
	if first.Code != http.StatusOK {
		t.Fatalf("first read: %d %s", first.Code, first.Body.String())
	}
	second := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil), customer())
	var body struct {
		Cached *bool              `json:"cached"`
		Data   []upstream.FileRef `json:"data"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Cached == nil || !*body.Cached {
		t.Fatalf("expected cached repeat read, got %s", second.Body.String())
	}
	if got := atomic.LoadInt64(&f.drive.fileCalls); got != 1 {
		t.Fatalf("expected one upstream listing, got %d", got)
	}
}

func TestListProjectFolderCachesSeparately(t *testing.T) {
	f := newFixture(t)

	f.do(t, httptest.NewRequest(http.MethodGet, "/", nil), customer())
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/?project=Rollout", nil), customer())
	if rec.Code != http.StatusOK {
		t.Fatalf("project listing: %d", rec.Code)
	}
	if f.drive.projectFolder != "Rollout" {
		t.Fatalf("expected project folder lookup, got %q", f.drive.projectFolder)
	}
	if got := atomic.LoadInt64(&f.drive.fileCalls); got != 2 {
		t.Fatalf("expected separate fetch per folder, got %d", got)
	}
}

func TestUploadInvalidatesListings(t *testing.T) {
	f := newFixture(t)

	// Prime the list cache.
	f.do(t, httptest.NewRequest(http.MethodGet, "/", nil), customer())

	buf, contentType := multipartFile(t, "file", "scope.pdf", []byte("pdf-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/", buf)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(t, req, customer())

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	if got := atomic.LoadInt64(&f.drive.uploadCalls); got != 1 {
		t.Fatalf("expected one upload, got %d", got)
	}
	if f.drive.uploadedName != "scope.pdf" || string(f.drive.uploaded) != "pdf-bytes" {
		t.Fatalf("unexpected upload %q %q", f.drive.uploadedName, f.drive.uploaded)
	}

	after := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil), customer())
	var body struct {
		Cached *bool `json:"cached"`
	}
	if err := json.Unmarshal(after.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Cached == nil || *body.Cached {
		t.Fatalf("list after upload must bypass the stale cache")
	}

	var created int
	for _, ev := range f.audits.events {
		if ev.Resource == cache.ResourceFiles && ev.Action == audit.ActionCreate {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected one upload audit entry, got %+v", f.audits.events)
	}
}

func TestUploadRejectsViewer(t *testing.T) {
	f := newFixture(t)

	buf, contentType := multipartFile(t, "file", "scope.pdf", []byte("pdf-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/", buf)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(t, req, &shared.Principal{UserID: 9, Email: "viewer@acme.test", Role: rbac.RoleViewer})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if got := atomic.LoadInt64(&f.drive.uploadCalls); got != 0 {
		t.Fatalf("forbidden upload must not reach upstream")
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	f := newFixture(t)

	oversized := bytes.Repeat([]byte{'a'}, 25<<20+1)
	buf, contentType := multipartFile(t, "file", "dump.bin", oversized)
	req := httptest.NewRequest(http.MethodPost, "/", buf)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(t, req, customer())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fields["file"] == "" {
		t.Fatalf("expected a file field error, got %s", rec.Body.String())
	}
	if got := atomic.LoadInt64(&f.drive.uploadCalls); got != 0 {
		t.Fatalf("oversized upload must not reach upstream, got %d calls", got)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("project", "Rollout")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(t, req, customer())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
