// Package kong talks to a Kong-style admin API over HTTP.
//
// One Client wraps one plane's API endpoint; per-entity-type managers
// derived from it satisfy the manager interfaces the sync driver and the
// rollback engine dispatch through. Both the gateway admin API and the
// control plane API speak the same JSON shape, so the same client serves
// either plane.
package kong

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

	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/errors"
	"github.com/qartal/kongsync/internal/logging"
	"github.com/qartal/kongsync/internal/manager"
)

var log = logging.Component("kong")

// =============================================================================
// Client
// =============================================================================

// Options configures a client.
type Options struct {
	// BaseURL is the API root, e.g. "http://localhost:8001".
	BaseURL string

	// Token is sent as a bearer token when non-empty.
	Token string

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

// Client is an admin API client for one plane.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for one plane's admin API.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is the admin API's error body.
type apiError struct {
	Message string `json:"message"`
}

// do sends one request and decodes the JSON response into out, when out
// is non-nil. Non-2xx responses become errors carrying the API message.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(errors.ErrNotFound, "%s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(data, &ae) == nil && ae.Message != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, ae.Message, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// =============================================================================
// Entity managers
// =============================================================================

// collectionPath maps an entity type to its admin API collection.
func collectionPath(entityType string) string {
	// The admin API pluralizes with a plain "s" for every type the tool
	// manages (services, routes, consumers, plugins, upstreams).
	return "/" + entityType + "s"
}

// Manager performs entity operations for one type against one plane.
type Manager struct {
	client     *Client
	entityType string
}

// Manager returns the per-type manager for this client.
func (c *Client) Manager(entityType string) *Manager {
	return &Manager{client: c, entityType: entityType}
}

// listPage is one page of a collection listing. Pagination follows the
// opaque offset token; an empty offset marks the last page.
type listPage struct {
	Data   []entity.Record `json:"data"`
	Offset string          `json:"offset"`
}

// List enumerates the full collection, following pagination.
func (m *Manager) List(ctx context.Context) ([]entity.Record, error) {
	base := collectionPath(m.entityType)
	var out []entity.Record
	offset := ""

	for {
		path := base + "?size=1000"
		if offset != "" {
			path += "&offset=" + url.QueryEscape(offset)
		}

		var page listPage
		if err := m.client.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Data...)

		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}

	log.Debug("collection listed",
		"entity_type", m.entityType,
		"count", len(out),
	)
	return out, nil
}

// Create stores a new entity and returns the API's copy, which carries
// the plane-assigned identifier and timestamps.
func (m *Manager) Create(ctx context.Context, e entity.Record) (entity.Record, error) {
	var created entity.Record
	if err := m.client.do(ctx, http.MethodPost, collectionPath(m.entityType), e, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces the entity with the given identifier.
func (m *Manager) Update(ctx context.Context, id string, e entity.Record) (entity.Record, error) {
	path := collectionPath(m.entityType) + "/" + url.PathEscape(id)
	var updated entity.Record
	if err := m.client.do(ctx, http.MethodPut, path, e, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the entity with the given identifier. Deleting an
// entity the plane no longer has is not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	path := collectionPath(m.entityType) + "/" + url.PathEscape(id)
	err := m.client.do(ctx, http.MethodDelete, path, nil, nil)
	if errors.IsNotFound(err) {
		return nil
	}
	return err
}

// =============================================================================
// Registry wiring
// =============================================================================

// RegisterAll binds this client's managers for every entity type under
// one plane in the registry.
func (c *Client) RegisterAll(r *manager.Registry, plane manager.Plane, entityTypes []string) {
	for _, t := range entityTypes {
		r.Register(plane, t, c.Manager(t))
	}
}
