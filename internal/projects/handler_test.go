package projects_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/brightwave/portal-api/internal/audit"
	"github.com/brightwave/portal-api/internal/cache"
	"github.com/brightwave/portal-api/internal/projects"
	"github.com/brightwave/portal-api/internal/rbac"
	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/tenant"
	"github.com/brightwave/portal-api/internal/upstream"
	_ "github.com/brightwave/portal-api/testing"
)

type fakeCRM struct {
	projectCalls int64
	createCalls  int64
	listErr      error
	createErr    error
}

func (f *fakeCRM) FindContactByEmail(ctx context.Context, email string) (*upstream.Contact, error) {
	return &upstream.Contact{ID: "c-1", Email: email, AccountName: "Acme Corp"}, nil
}

func (f *fakeCRM) GetProjects(ctx context.Context, accountID string) ([]upstream.Project, error) {
	atomic.AddInt64(&f.projectCalls, 1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []upstream.Project{{ID: "p1", Name: "Rollout", Status: "active"}}, nil
}

func (f *fakeCRM) GetInvoices(ctx context.Context, accountID string) ([]upstream.Invoice, error) {
	return nil, nil
}

func (f *fakeCRM) GetAllCustomerFiles(ctx context.Context, folderID string) ([]upstream.FileRef, error) {
	return nil, nil
}

func (f *fakeCRM) CreateProject(ctx context.Context, fields upstream.ProjectFields) (*upstream.Project, error) {
	atomic.AddInt64(&f.createCalls, 1)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &upstream.Project{ID: "p-new", Name: fields.Name, Status: "active"}, nil
}

type memAuditStore struct {
	events []audit.Event
}

func (s *memAuditStore) Insert(ctx context.Context, event audit.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *memAuditStore) byResource(resource string) []audit.Event {
	var out []audit.Event
	for _, ev := range s.events {
		if ev.Resource == resource {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	router   chi.Router
	crm      *fakeCRM
	audits   *memAuditStore
	sessions *shared.SessionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	crm := &fakeCRM{}
	audits := &memAuditStore{}
	cacheSvc := cache.NewService(cache.NewMemoryStore(), crm, logger, nil, cache.DefaultTTLConfig())
	handler := projects.NewHandler(logger, rbac.NewGate(logger), cacheSvc, crm, tenant.NewResolver(crm), audit.NewLogger(audits, logger))

	router := chi.NewRouter()
	handler.MountRoutes(router)
	return &fixture{
		router:   router,
		crm:      crm,
		audits:   audits,
		sessions: shared.NewSessionManager(client, "test_session", time.Hour, false),
	}
}

func (f *fixture) request(t *testing.T, method, body string, p *shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
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

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestListRequiresSession(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := atomic.LoadInt64(&f.crm.projectCalls); got != 0 {
		t.Fatalf("anonymous request must not reach upstream, got %d calls", got)
	}
	if len(f.audits.events) != 0 {
		t.Fatalf("authorization denials are not audited, got %+v", f.audits.events)
	}
}

func TestListViewerAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "", &shared.Principal{UserID: 9, Email: "viewer@acme.test", Role: rbac.RoleViewer})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListCachesSecondRead(t *testing.T) {
	f := newFixture(t)

	first := f.request(t, http.MethodGet, "", customer())
	if first.Code != http.StatusOK {
		t.Fatalf("first read: %d %s", first.Code, first.Body.String())
	}
	if body := decodeEnvelope(t, first); body["cached"] != false {
		t.Fatalf("first read should report cached=false, got %v", body["cached"])
	}

	second := f.request(t, http.MethodGet, "", customer())
	if second.Code != http.StatusOK {
		t.Fatalf("second read: %d", second.Code)
	}
	if body := decodeEnvelope(t, second); body["cached"] != true {
		t.Fatalf("second read should report cached=true, got %v", body["cached"])
	}

	if got := atomic.LoadInt64(&f.crm.projectCalls); got != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", got)
	}

	views := f.audits.byResource(cache.ResourceProjects)
	if len(views) != 2 {
		t.Fatalf("expected both reads audited, got %+v", views)
	}
	if views[0].Context["cached"] != false || views[1].Context["cached"] != true {
		t.Fatalf("audit entries should record cache provenance: %+v", views)
	}
	if views[0].ActorID != "42" || views[0].Action != audit.ActionView {
		t.Fatalf("unexpected audit entry %+v", views[0])
	}
}

func TestCreateProjectInvalidatesList(t *testing.T) {
	f := newFixture(t)

	// Prime the list cache.
	f.request(t, http.MethodGet, "", customer())

	rec := f.request(t, http.MethodPost, `{"name":"New build","description":"Q4 rollout"}`, customer())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	if got := atomic.LoadInt64(&f.crm.createCalls); got != 1 {
		t.Fatalf("expected one create call, got %d", got)
	}

	after := f.request(t, http.MethodGet, "", customer())
	if body := decodeEnvelope(t, after); body["cached"] != false {
		t.Fatalf("list after create must bypass the stale cache, got cached=%v", body["cached"])
	}

	var created []audit.Event
	for _, ev := range f.audits.byResource(cache.ResourceProjects) {
		if ev.Action == audit.ActionCreate {
			created = append(created, ev)
		}
	}
	if len(created) != 1 || created[0].ResourceID != "p-new" {
		t.Fatalf("expected one create audit entry, got %+v", created)
	}
}

func TestCreateRejectsViewer(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, `{"name":"New build"}`, &shared.Principal{UserID: 9, Email: "viewer@acme.test", Role: rbac.RoleViewer})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if got := atomic.LoadInt64(&f.crm.createCalls); got != 0 {
		t.Fatalf("forbidden request must not reach upstream, got %d calls", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, `{"name":"x"}`, customer())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeEnvelope(t, rec)
	fields, _ := body["fields"].(map[string]any)
	if _, ok := fields["name"]; !ok {
		t.Fatalf("expected field error for name, got %v", body)
	}
	if got := atomic.LoadInt64(&f.crm.createCalls); got != 0 {
		t.Fatalf("invalid payload must not reach upstream")
	}
}

func TestListUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.crm.listErr = errors.New("status 502 from upstream")

	rec := f.request(t, http.MethodGet, "", customer())

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["error"] != "Internal server error" {
		t.Fatalf("clients must only see the generic message, got %v", body["error"])
	}
	if strings.Contains(rec.Body.String(), "502") {
		t.Fatalf("upstream detail leaked to the client: %s", rec.Body.String())
	}

	secEvents := f.audits.byResource(audit.SecurityResource)
	if len(secEvents) != 1 {
		t.Fatalf("expected one security event, got %+v", f.audits.events)
	}
	if secEvents[0].Context["kind"] != "upstream_failure" {
		t.Fatalf("unexpected security event %+v", secEvents[0])
	}
	if msg, _ := secEvents[0].Context["error"].(string); !strings.Contains(msg, "502") {
		t.Fatalf("security event should carry the underlying error, got %+v", secEvents[0].Context)
	}
}
