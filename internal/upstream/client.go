// Package upstream is the client for the CRM/Projects/Books/WorkDrive suite
// the portal proxies. All calls are network I/O; failures beyond "not found"
// surface as a generic shared.ErrUpstream so no provider detail leaks.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/brightwave/portal-api/internal/shared"
)

// Client is the upstream surface the portal consumes.
type Client interface {
	FindContactByEmail(ctx context.Context, email string) (*Contact, error)
	CreateContact(ctx context.Context, fields ContactFields) (*Contact, error)
	CreateLead(ctx context.Context, fields LeadFields) (*Lead, error)

	GetProjects(ctx context.Context, accountID string) ([]Project, error)
	CreateProject(ctx context.Context, fields ProjectFields) (*Project, error)

	GetInvoices(ctx context.Context, accountID string) ([]Invoice, error)

	GetCustomerFolder(ctx context.Context, email string) (string, error)
	GetProjectFolder(ctx context.Context, email, name string) (string, error)
	UploadFile(ctx context.Context, folderID string, content []byte, name string) (*FileRef, error)
	GetAllCustomerFiles(ctx context.Context, folderID string) ([]FileRef, error)
}

// HTTPClient talks JSON over HTTP with bearer-token auth. Token refresh and
// rate limiting are handled by the provider gateway, not here.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient constructs an HTTPClient.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FindContactByEmail looks up a CRM contact, nil when absent.
func (c *HTTPClient) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	var contact Contact
	err := c.get(ctx, "/crm/contacts?email="+url.QueryEscape(email), &contact)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

// CreateContact creates a CRM contact.
func (c *HTTPClient) CreateContact(ctx context.Context, fields ContactFields) (*Contact, error) {
	var contact Contact
	if err := c.post(ctx, "/crm/contacts", fields, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// CreateLead creates a CRM lead.
func (c *HTTPClient) CreateLead(ctx context.Context, fields LeadFields) (*Lead, error) {
	var lead Lead
	if err := c.post(ctx, "/crm/leads", fields, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetProjects lists projects for an account.
func (c *HTTPClient) GetProjects(ctx context.Context, accountID string) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "/projects/accounts/"+url.PathEscape(accountID)+"/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a project under the account named in fields.
func (c *HTTPClient) CreateProject(ctx context.Context, fields ProjectFields) (*Project, error) {
	var project Project
	if err := c.post(ctx, "/projects/projects", fields, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetInvoices lists invoices for an account.
func (c *HTTPClient) GetInvoices(ctx context.Context, accountID string) ([]Invoice, error) {
	var invoices []Invoice
	if err := c.get(ctx, "/books/accounts/"+url.PathEscape(accountID)+"/invoices", &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// GetCustomerFolder resolves the WorkDrive folder for a customer email.
func (c *HTTPClient) GetCustomerFolder(ctx context.Context, email string) (string, error) {
	var folder struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, "/workdrive/folders?email="+url.QueryEscape(email), &folder); err != nil {
		return "", err
	}
	return folder.ID, nil
}

// GetProjectFolder resolves the per-project WorkDrive subfolder.
func (c *HTTPClient) GetProjectFolder(ctx context.Context, email, name string) (string, error) {
	var folder struct {
		ID string `json:"id"`
	}
	path := "/workdrive/folders?email=" + url.QueryEscape(email) + "&project=" + url.QueryEscape(name)
	if err := c.get(ctx, path, &folder); err != nil {
		return "", err
	}
	return folder.ID, nil
}

// UploadFile stores a document in the given folder.
func (c *HTTPClient) UploadFile(ctx context.Context, folderID string, content []byte, name string) (*FileRef, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("content", name)
	if err != nil {
		return nil, fmt.Errorf("upstream: build upload: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("upstream: build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("upstream: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/workdrive/folders/"+url.PathEscape(folderID)+"/files", &body)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var ref FileRef
	if err := c.do(req, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetAllCustomerFiles lists every document in a folder.
func (c *HTTPClient) GetAllCustomerFiles(ctx context.Context, folderID string) ([]FileRef, error) {
	var files []FileRef
	if err := c.get(ctx, "/workdrive/folders/"+url.PathEscape(folderID)+"/files", &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	return c.do(req, target)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, target any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("upstream: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *HTTPClient) do(req *http.Request, target any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrUpstream, req.Method, req.URL.Path, err)
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, req.URL.Path)
	case res.StatusCode < 200 || res.StatusCode > 299:
		// Drain a little of the body for the process log; callers only see ErrUpstream.
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrUpstream, req.Method, req.URL.Path, res.StatusCode, detail)
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode %s: %v", shared.ErrUpstream, req.URL.Path, err)
	}
	return nil
}
