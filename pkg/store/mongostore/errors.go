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

package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

// Server error codes the console reacts to.
const (
	codeNamespaceNotFound    = 26
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

// classify attaches a store.ErrorKind to a driver error, together with the
// server's code and code name when there is one.
func classify(err error) error {
	if err == nil {
		return nil
	}

	se := &store.Error{Err: err, Kind: store.KindOther}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		se.Code = cmdErr.Code
		se.Name = cmdErr.Name
	}

	var srvErr mongo.ServerError

	switch {
	case errors.As(err, &srvErr) && (srvErr.HasErrorCode(codeUnauthorized) || srvErr.HasErrorCode(codeAuthenticationFailed)):
		se.Kind = store.KindAuthorization
	case errors.As(err, &srvErr) && srvErr.HasErrorCode(codeNamespaceNotFound):
		se.Kind = store.KindNotFound
	case errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err):
		se.Kind = store.KindTimeout
	case mongo.IsNetworkError(err):
		se.Kind = store.KindNetwork
	}

	return se
}
