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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/united-manufacturing-hub/docconsole/pkg/codec"
	"github.com/united-manufacturing-hub/docconsole/pkg/collection"
	"github.com/united-manufacturing-hub/docconsole/pkg/metrics"
	"github.com/united-manufacturing-hub/docconsole/pkg/registry"
	"github.com/united-manufacturing-hub/docconsole/pkg/sentry"
)

const internalErrorMessage = "The server had an internal error. Please mention the following id while contacting support"

// errInvalidBody marks request bodies that cannot be used.
var errInvalidBody = errors.New("invalid request body")

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message"`
	// Literal is the offending value of a validation error.
	Literal string `json:"literal,omitempty"`
	// ID correlates an internal error with the server log.
	ID string `json:"id,omitempty"`
}

// fail writes the response for err. It is the only place errors turn into
// status codes.
func (s *Server) fail(c *gin.Context, err error) {
	var decodeErr *codec.DecodeError

	switch {
	case errors.Is(err, ErrReadOnly):
		render(c, http.StatusMethodNotAllowed, ErrorResponse{Message: ErrReadOnly.Error()})
	case errors.Is(err, registry.ErrServerNotFound),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, collection.ErrDocumentNotFound):
		render(c, http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.As(err, &decodeErr):
		render(c, http.StatusBadRequest, ErrorResponse{Message: decodeErr.Err.Error(), Literal: decodeErr.Literal})
	case errors.Is(err, errInvalidBody):
		render(c, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	default:
		id := uuid.NewString()

		metrics.IncErrorCount(metrics.ComponentAPI)
		sentry.ReportIssueWithContext(err, sentry.IssueTypeError, s.log, map[string]any{
			"correlation_id": id,
			"route":          c.FullPath(),
			"method":         c.Request.Method,
		})

		render(c, http.StatusInternalServerError, ErrorResponse{Message: internalErrorMessage, ID: id})
	}
}

// render writes body as JSON.
func render(c *gin.Context, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to encode response")

		return
	}

	c.Data(status, "application/json; charset=utf-8", data)
}
