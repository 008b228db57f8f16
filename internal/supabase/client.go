// Package supabase talks to the hosted database through its PostgREST API.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nulzo/atlas-api/internal/config"
	"github.com/nulzo/atlas-api/internal/httpclient"
)

// DefaultLimit caps selects that do not ask for a limit themselves.
const DefaultLimit = 100

var (
	ErrTableNotAllowed = errors.New("supabase: table not allowed")
	ErrDisabled        = errors.New("supabase: hosted database not configured")
)

type Client struct {
	restURL string
	apiKey  string
	tables  map[string]struct{}
	http    httpclient.HTTPClient
}

func New(cfg config.HostedDBConfig) *Client {
	tables := make(map[string]struct{}, len(cfg.Tables))
	for _, t := range cfg.Tables {
		tables[t] = struct{}{}
	}

	c := &Client{
		apiKey: cfg.APIKey,
		tables: tables,
		http:   httpclient.New(cfg.Timeout),
	}
	if cfg.URL != "" {
		c.restURL = strings.TrimRight(cfg.URL, "/") + "/rest/v1"
	}
	return c
}

func (c *Client) Enabled() bool {
	return c.restURL != ""
}

func (c *Client) Allowed(table string) bool {
	_, ok := c.tables[table]
	return ok
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"apikey":        c.apiKey,
		"Authorization": "Bearer " + c.apiKey,
	}
}

func (c *Client) tableURL(table string, query url.Values) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if !c.Allowed(table) {
		return "", fmt.Errorf("%w: %s", ErrTableNotAllowed, table)
	}

	u := c.restURL + "/" + url.PathEscape(table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

// Select returns the rows of table matching the PostgREST filters in query,
// e.g. id=eq.3&order=created_at.desc.
func (c *Client) Select(ctx context.Context, table string, query url.Values) (json.RawMessage, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if q.Get("select") == "" {
		q.Set("select", "*")
	}
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(DefaultLimit))
	}

	u, err := c.tableURL(table, q)
	if err != nil {
		return nil, err
	}

	body, err := httpclient.Fetch(ctx, c.http, http.MethodGet, u, c.headers(), nil)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return json.RawMessage(body), nil
}

// Insert writes rows (an object or an array of objects) and returns the
// stored representation.
func (c *Client) Insert(ctx context.Context, table string, rows any) (json.RawMessage, error) {
	u, err := c.tableURL(table, nil)
	if err != nil {
		return nil, err
	}

	headers := c.headers()
	headers["Prefer"] = "return=representation"

	body, err := httpclient.Fetch(ctx, c.http, http.MethodPost, u, headers, rows)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return json.RawMessage(body), nil
}

// Ping checks that the REST endpoint answers with our key.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if _, err := httpclient.Fetch(ctx, c.http, http.MethodGet, c.restURL+"/", c.headers(), nil); err != nil {
		return fmt.Errorf("ping hosted db: %w", err)
	}
	return nil
}
