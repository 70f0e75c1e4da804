// Package client talks to the PrintLog HTTP API and keeps optimistic
// per-entity caches for UI layers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/tidwall/gjson"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("printlog: HTTP %d", e.Status)
	}
	return fmt.Sprintf("printlog: HTTP %d: %s", e.Status, e.Message)
}

// Client is an authenticated PrintLog API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL, sending token as a
// bearer session.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api"+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return data, nil
}

func entityPath(entity string, segments ...string) string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(entity)
	for _, s := range segments {
		b.WriteString("/")
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func decodeList[T any](data []byte, decode func([]byte) (T, error)) ([]T, error) {
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("decode list: expected a JSON array")
	}
	items := make([]T, 0, len(root.Array()))
	var err error
	root.ForEach(func(_, v gjson.Result) bool {
		var item T
		item, err = decode([]byte(v.Raw))
		if err != nil {
			return false
		}
		items = append(items, item)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}

// ListFilaments returns the caller's filaments.
func (c *Client) ListFilaments(ctx context.Context) ([]models.Filament, error) {
	data, err := c.do(ctx, http.MethodGet, entityPath("filaments"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList(data, models.DecodeFilament)
}

// SaveFilament upserts f. An empty id lets the server generate one.
func (c *Client) SaveFilament(ctx context.Context, f models.Filament) (models.Filament, error) {
	data, err := c.do(ctx, http.MethodPost, entityPath("filaments"), f)
	if err != nil {
		return models.Filament{}, err
	}
	return models.DecodeFilament(data)
}

// UpdateFilamentWeight sets the remaining grams of a spool.
func (c *Client) UpdateFilamentWeight(ctx context.Context, id string, weight float64) (models.Filament, error) {
	data, err := c.do(ctx, http.MethodPatch, entityPath("filaments", id, "weight"), map[string]float64{"peso_atual": weight})
	if err != nil {
		return models.Filament{}, err
	}
	return models.DecodeFilament(data)
}

// DeleteFilament removes one filament.
func (c *Client) DeleteFilament(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, entityPath("filaments", id), nil)
	return err
}

// ListPrinters returns the caller's printers.
func (c *Client) ListPrinters(ctx context.Context) ([]models.Printer, error) {
	data, err := c.do(ctx, http.MethodGet, entityPath("printers"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList(data, models.DecodePrinter)
}

// SavePrinter upserts p.
func (c *Client) SavePrinter(ctx context.Context, p models.Printer) (models.Printer, error) {
	data, err := c.do(ctx, http.MethodPost, entityPath("printers"), p)
	if err != nil {
		return models.Printer{}, err
	}
	return models.DecodePrinter(data)
}

// UpdatePrinterStatus changes the status of a printer.
func (c *Client) UpdatePrinterStatus(ctx context.Context, id, status string) (models.Printer, error) {
	data, err := c.do(ctx, http.MethodPatch, entityPath("printers", id, "status"), map[string]string{"status": status})
	if err != nil {
		return models.Printer{}, err
	}
	return models.DecodePrinter(data)
}

// ResetPrinterMaintenance marks a printer as serviced at its current hours.
func (c *Client) ResetPrinterMaintenance(ctx context.Context, id string) (models.Printer, error) {
	data, err := c.do(ctx, http.MethodPost, entityPath("printers", id, "maintenance"), nil)
	if err != nil {
		return models.Printer{}, err
	}
	return models.DecodePrinter(data)
}

// DeletePrinter removes one printer.
func (c *Client) DeletePrinter(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, entityPath("printers", id), nil)
	return err
}

// ListProjects returns the caller's projects, newest first.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	data, err := c.do(ctx, http.MethodGet, entityPath("projects"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList(data, models.DecodeProject)
}

// SaveProject upserts p.
func (c *Client) SaveProject(ctx context.Context, p models.Project) (models.Project, error) {
	data, err := c.do(ctx, http.MethodPost, entityPath("projects"), p)
	if err != nil {
		return models.Project{}, err
	}
	return models.DecodeProject(data)
}

// UpdateProjectStatus moves a project through its lifecycle.
func (c *Client) UpdateProjectStatus(ctx context.Context, id, status string) (models.Project, error) {
	data, err := c.do(ctx, http.MethodPatch, entityPath("projects", id, "status"), map[string]string{"status": status})
	if err != nil {
		return models.Project{}, err
	}
	return models.DecodeProject(data)
}

// DeleteProject removes one project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, entityPath("projects", id), nil)
	return err
}

// ApproveBudget runs the approval transaction on the server.
func (c *Client) ApproveBudget(ctx context.Context, req models.Approval) error {
	_, err := c.do(ctx, http.MethodPost, entityPath("approve-budget"), req)
	return err
}

// Backup downloads the caller's account export.
func (c *Client) Backup(ctx context.Context) (*models.Backup, error) {
	data, err := c.do(ctx, http.MethodGet, entityPath("users", "me", "backup"), nil)
	if err != nil {
		return nil, err
	}
	var backup models.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	return &backup, nil
}

// Purge deletes every row the caller owns and returns the purge protocol.
func (c *Client) Purge(ctx context.Context) (string, error) {
	data, err := c.do(ctx, http.MethodDelete, entityPath("users"), nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(data, "protocol").String(), nil
}

// Purges lists the exports the server kept from the caller's purges.
func (c *Client) Purges(ctx context.Context) ([]models.PurgeRecord, error) {
	data, err := c.do(ctx, http.MethodGet, entityPath("users", "me", "purges"), nil)
	if err != nil {
		return nil, err
	}
	var records []models.PurgeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode purges: %w", err)
	}
	return records, nil
}

// PurgedExport downloads the export kept by the purge with protocol.
func (c *Client) PurgedExport(ctx context.Context, protocol string) (*models.Backup, error) {
	data, err := c.do(ctx, http.MethodGet, entityPath("users", "me", "purges", protocol), nil)
	if err != nil {
		return nil, err
	}
	var backup models.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("decode purged export: %w", err)
	}
	return &backup, nil
}

// Logout revokes the client's session token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, entityPath("session", "logout"), nil)
	return err
}
