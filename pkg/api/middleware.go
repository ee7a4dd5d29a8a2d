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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/united-manufacturing-hub/docconsole/pkg/metrics"
)

// ErrReadOnly is reported for mutating calls while the console is read-only.
var ErrReadOnly = errors.New("You can't do this in read-only mode") //nolint:staticcheck // shown to users as is

// writeEnabled rejects the request before its body is read when the console
// is read-only.
func (s *Server) writeEnabled() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.opts.ReadOnly {
			c.Next()

			return
		}

		s.fail(c, ErrReadOnly)
		c.Abort()
	}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := c.Writer.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.ObserveRequest(route, c.Request.Method, status, time.Since(start))
	}
}
