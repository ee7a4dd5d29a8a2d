// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client calls a running console over its HTTP interface. Documents
// travel in their native form: values are encoded before they are sent and
// decoded after they are received.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/united-manufacturing-hub/docconsole/pkg/codec"
	"github.com/united-manufacturing-hub/docconsole/pkg/collection"
	"github.com/united-manufacturing-hub/docconsole/pkg/registry"
)

const defaultTimeout = 30 * time.Second

// APIError is a failed call as reported by the server.
type APIError struct {
	Status  int
	Message string `json:"message"`
	Literal string `json:"literal,omitempty"`
	ID      string `json:"id,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("console answered %d: %s", e.Status, e.Message)
	if e.Literal != "" {
		msg += fmt.Sprintf(" (%q)", e.Literal)
	}

	if e.ID != "" {
		msg += " [id " + e.ID + "]"
	}

	return msg
}

// IsNotFound reports whether err is a 404 from the console.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsReadOnly reports whether err is a call rejected because the console is
// read-only.
func IsReadOnly(err error) bool {
	return hasStatus(err, http.StatusMethodNotAllowed)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one console.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the console at baseURL. A nil httpClient uses a
// client with a 30 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Query selects the documents of a query call. Empty documents are left out.
type Query struct {
	Filter     bson.D
	Sort       bson.D
	Projection bson.D
	Skip       int64
	// Limit of zero leaves the page size to the server.
	Limit int64
}

// QueryResult holds decoded documents and the warnings of the server.
type QueryResult struct {
	Documents []bson.D
	Warnings  []string
}

func (c *Client) ReadOnly(ctx context.Context) (bool, error) {
	var res struct {
		ReadOnly bool `json:"readOnly"`
	}

	if err := c.getJSON(ctx, "/api/readonly", nil, &res); err != nil {
		return false, err
	}

	return res.ReadOnly, nil
}

func (c *Client) Servers(ctx context.Context) ([]registry.ServerEntry, error) {
	var servers []registry.ServerEntry

	if err := c.getJSON(ctx, "/api/servers", nil, &servers); err != nil {
		return nil, err
	}

	return servers, nil
}

// AddServer stores address on the console and connects to it.
func (c *Client) AddServer(ctx context.Context, address string) error {
	body, err := json.Marshal(map[string]string{"url": address})
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodPut, "/api/servers", nil, body)

	return err
}

func (c *Client) RemoveServer(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodDelete, path("servers", name), nil, nil)

	return err
}

func (c *Client) Databases(ctx context.Context, server string) ([]registry.DatabaseSummary, error) {
	var databases []registry.DatabaseSummary

	if err := c.getJSON(ctx, path("servers", server, "databases"), nil, &databases); err != nil {
		return nil, err
	}

	return databases, nil
}

func (c *Client) Collections(ctx context.Context, server, database string) ([]collection.Stats, error) {
	var collections []collection.Stats

	if err := c.getJSON(ctx, path("servers", server, "databases", database, "collections"), nil, &collections); err != nil {
		return nil, err
	}

	return collections, nil
}

func (c *Client) Query(ctx context.Context, server, database, coll string, q Query) (*QueryResult, error) {
	params := url.Values{}

	for key, doc := range map[string]bson.D{"q": q.Filter, "sort": q.Sort, "project": q.Projection} {
		if len(doc) == 0 {
			continue
		}

		text, err := codec.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}

		params.Set(key, string(text))
	}

	if q.Skip > 0 {
		params.Set("skip", strconv.FormatInt(q.Skip, 10))
	}

	if q.Limit > 0 {
		params.Set("limit", strconv.FormatInt(q.Limit, 10))
	}

	obj, err := c.getObject(ctx, collectionPath(server, database, coll, "query"), params)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{}

	results, _ := obj.Get("results")
	items, _ := results.([]any)

	for _, item := range items {
		doc, err := codec.DecodeDocument(item)
		if err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}

		result.Documents = append(result.Documents, doc)
	}

	if warnings, ok := obj.Get("warnings"); ok {
		for _, w := range warnings.([]any) {
			if s, ok := w.(string); ok {
				result.Warnings = append(result.Warnings, s)
			}
		}
	}

	return result, nil
}

func (c *Client) Count(ctx context.Context, server, database, coll string, filter bson.D) (int64, error) {
	params := url.Values{}

	if len(filter) > 0 {
		text, err := codec.Marshal(filter)
		if err != nil {
			return 0, fmt.Errorf("failed to encode query: %w", err)
		}

		params.Set("q", string(text))
	}

	var res struct {
		Count int64 `json:"count"`
	}

	if err := c.getJSON(ctx, collectionPath(server, database, coll, "count"), params, &res); err != nil {
		return 0, err
	}

	return res.Count, nil
}

// Document fetches one document by its hex id.
func (c *Client) Document(ctx context.Context, server, database, coll, id string) (bson.D, error) {
	obj, err := c.getObject(ctx, collectionPath(server, database, coll, "documents", id), nil)
	if err != nil {
		return nil, err
	}

	doc, _ := obj.Get("document")

	return codec.DecodeDocument(doc)
}

// UpdateDocument writes doc to the document with the given id and returns
// what the server wrote. A partial update only sets the fields of doc.
func (c *Client) UpdateDocument(ctx context.Context, server, database, coll, id string, doc bson.D, partial bool) (bson.D, error) {
	body, err := codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var params url.Values
	if partial {
		params = url.Values{"partial": {"true"}}
	}

	raw, err := c.do(ctx, http.MethodPost, collectionPath(server, database, coll, "documents", id), params, body)
	if err != nil {
		return nil, err
	}

	obj, err := parseObject(raw)
	if err != nil {
		return nil, err
	}

	update, _ := obj.Get("update")

	return codec.DecodeDocument(update)
}

func (c *Client) DeleteDocument(ctx context.Context, server, database, coll, id string) error {
	_, err := c.do(ctx, http.MethodDelete, collectionPath(server, database, coll, "documents", id), nil, nil)

	return err
}

func (c *Client) getJSON(ctx context.Context, p string, params url.Values, out any) error {
	raw, err := c.do(ctx, http.MethodGet, p, params, nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response of %s: %w", p, err)
	}

	return nil
}

func (c *Client) getObject(ctx context.Context, p string, params url.Values) (codec.Object, error) {
	raw, err := c.do(ctx, http.MethodGet, p, params, nil)
	if err != nil {
		return nil, err
	}

	return parseObject(raw)
}

func parseObject(raw []byte) (codec.Object, error) {
	value, err := codec.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	obj, ok := value.(codec.Object)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object in the response, got %T", value)
	}

	return obj, nil
}

// do sends one request and returns the body of a 2xx answer. Other answers
// become an *APIError.
func (c *Client) do(ctx context.Context, method, p string, params url.Values, body []byte) ([]byte, error) {
	target := c.baseURL + p
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, p, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", method, p, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}

		return nil, apiErr
	}

	return raw, nil
}

func path(segments ...string) string {
	var b strings.Builder

	b.WriteString("/api")

	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}

	return b.String()
}

func collectionPath(server, database, coll string, rest ...string) string {
	return path(append([]string{"servers", server, "databases", database, "collections", coll}, rest...)...)
}
