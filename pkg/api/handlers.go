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

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/united-manufacturing-hub/docconsole/pkg/codec"
	"github.com/united-manufacturing-hub/docconsole/pkg/collection"
	"github.com/united-manufacturing-hub/docconsole/pkg/registry"
)

type okResponse struct {
	Ok bool `json:"ok"`
}

type readOnlyResponse struct {
	Ok       bool `json:"ok"`
	ReadOnly bool `json:"readOnly"`
}

// QueryResponse is the body of a successful query. Warnings name the boxes
// that did not parse and were replaced by an empty document.
type QueryResponse struct {
	Ok       bool     `json:"ok"`
	Results  []any    `json:"results"`
	Warnings []string `json:"warnings,omitempty"`
}

type CountResponse struct {
	Ok       bool     `json:"ok"`
	Count    int64    `json:"count"`
	Warnings []string `json:"warnings,omitempty"`
}

type documentResponse struct {
	Ok       bool `json:"ok"`
	Document any  `json:"document"`
}

type updateResponse struct {
	Ok     bool `json:"ok"`
	Update any  `json:"update"`
}

// AddServerRequest is the body of PUT /api/servers.
type AddServerRequest struct {
	URL string `json:"url"`
}

type collectionURI struct {
	Server     string `uri:"server" binding:"required"`
	Database   string `uri:"database" binding:"required"`
	Collection string `uri:"collection" binding:"required"`
}

func (s *Server) getReadOnly(c *gin.Context) {
	render(c, http.StatusOK, readOnlyResponse{Ok: true, ReadOnly: s.opts.ReadOnly})
}

func (s *Server) getServers(c *gin.Context) {
	servers := s.registry.ListServers(c.Request.Context())
	if servers == nil {
		servers = []registry.ServerEntry{}
	}

	render(c, http.StatusOK, servers)
}

func (s *Server) putServer(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errInvalidBody, err))

		return
	}

	var req AddServerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errInvalidBody, err))

		return
	}

	if err := s.hosts.Add(req.URL); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errInvalidBody, err))

		return
	}

	addresses, err := s.hosts.GetAll()
	if err != nil {
		s.fail(c, fmt.Errorf("failed to read configured servers: %w", err))

		return
	}

	s.registry.Load(c.Request.Context(), addresses)

	s.log.Infow("Server added", "address", req.URL)
	render(c, http.StatusOK, okResponse{Ok: true})
}

func (s *Server) deleteServer(c *gin.Context) {
	name := c.Param("server")

	if err := s.hosts.Remove(name); err != nil {
		s.fail(c, fmt.Errorf("failed to remove server %s: %w", name, err))

		return
	}

	s.registry.Remove(name)

	s.log.Infow("Server removed", "server", name)
	render(c, http.StatusOK, okResponse{Ok: true})
}

func (s *Server) getDatabases(c *gin.Context) {
	databases, err := s.registry.ListDatabases(c.Request.Context(), c.Param("server"))
	if err != nil {
		s.fail(c, err)

		return
	}

	render(c, http.StatusOK, databases)
}

func (s *Server) getCollections(c *gin.Context) {
	collections, err := s.registry.ListCollections(c.Request.Context(), c.Param("server"), c.Param("database"))
	if err != nil {
		s.fail(c, err)

		return
	}

	render(c, http.StatusOK, collections)
}

// accessor resolves the collection named by the path. On failure the error
// response has been written.
func (s *Server) accessor(c *gin.Context) (*collection.Accessor, bool) {
	var uri collectionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errInvalidBody, err))

		return nil, false
	}

	acc, err := s.registry.Collection(c.Request.Context(), uri.Server, uri.Database, uri.Collection)
	if err != nil {
		s.fail(c, err)

		return nil, false
	}

	return acc, true
}

func (s *Server) query(c *gin.Context) {
	var warnings []string

	filter, err := documentParam(c, "q", "query", &warnings)
	if err != nil {
		s.fail(c, err)

		return
	}

	sort, err := documentParam(c, "sort", "sort", &warnings)
	if err != nil {
		s.fail(c, err)

		return
	}

	projection, err := documentParam(c, "project", "projection", &warnings)
	if err != nil {
		s.fail(c, err)

		return
	}

	acc, ok := s.accessor(c)
	if !ok {
		return
	}

	results, err := acc.Find(c.Request.Context(), collection.Query{
		Filter:     filter,
		Projection: projection,
		Sort:       sort,
		Skip:       intParam(c, "skip", 0),
		Limit:      s.limit(c),
	})
	if err != nil {
		s.fail(c, err)

		return
	}

	render(c, http.StatusOK, QueryResponse{Ok: true, Results: results, Warnings: warnings})
}

func (s *Server) count(c *gin.Context) {
	var warnings []string

	filter, err := documentParam(c, "q", "query", &warnings)
	if err != nil {
		s.fail(c, err)

		return
	}

	acc, ok := s.accessor(c)
	if !ok {
		return
	}

	n, err := acc.Count(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)

		return
	}

	render(c, http.StatusOK, CountResponse{Ok: true, Count: n, Warnings: warnings})
}

func (s *Server) getDocument(c *gin.Context) {
	acc, ok := s.accessor(c)
	if !ok {
		return
	}

	doc, err := acc.FindOne(c.Request.Context(), c.Param("document"))
	if err != nil {
		s.fail(c, err)

		return
	}

	render(c, http.StatusOK, documentResponse{Ok: true, Document: doc})
}

func (s *Server) postDocument(c *gin.Context) {
	acc, ok := s.accessor(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errInvalidBody, err))

		return
	}

	value, err := codec.ParseJSON(body)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errInvalidBody, err))

		return
	}

	if _, isObject := value.(codec.Object); !isObject {
		s.fail(c, fmt.Errorf("%w: expected a JSON object", errInvalidBody))

		return
	}

	update, err := acc.UpdateOne(c.Request.Context(), c.Param("document"), value, c.Query("partial") == "true")
	if err != nil {
		s.fail(c, err)

		return
	}

	render(c, http.StatusOK, updateResponse{Ok: true, Update: update})
}

func (s *Server) deleteDocument(c *gin.Context) {
	acc, ok := s.accessor(c)
	if !ok {
		return
	}

	if err := acc.RemoveOne(c.Request.Context(), c.Param("document")); err != nil {
		s.fail(c, err)

		return
	}

	render(c, http.StatusOK, okResponse{Ok: true})
}

// documentParam parses one of the free-text boxes. Text that is not a JSON
// object adds a warning and yields an empty document.
func documentParam(c *gin.Context, key, label string, warnings *[]string) (bson.D, error) {
	text := c.Query(key)

	doc, err := codec.ParseDocumentOrEmpty(text)
	if errors.Is(err, codec.ErrInvalidInput) {
		*warnings = append(*warnings, fmt.Sprintf("Invalid %s: %s", label, text))

		return bson.D{}, nil
	}

	return doc, err
}

func intParam(c *gin.Context, key string, fallback int64) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return fallback
	}

	return n
}

// limit returns the page size. Missing or non-positive limits use the
// default, larger ones are capped.
func (s *Server) limit(c *gin.Context) int64 {
	n := intParam(c, "limit", s.opts.DefaultLimit)

	switch {
	case n <= 0:
		return s.opts.DefaultLimit
	case n > s.opts.MaxLimit:
		return s.opts.MaxLimit
	default:
		return n
	}
}
