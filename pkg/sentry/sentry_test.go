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

package sentry

import (
	"errors"
	"fmt"
	"strings"

	gosentry "github.com/getsentry/sentry-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("Reporting", func() {
	It("titles errors by their first phrase", func() {
		Expect(getMeaningfulErrorTitle(errors.New("listing databases: connection refused"))).To(Equal("listing databases"))
		Expect(getMeaningfulErrorTitle(errors.New(strings.Repeat("x", 150)))).To(HaveLen(100))
	})

	It("does nothing without a DSN", func() {
		Expect(InitSentry("", "dev", "development")).To(Succeed())
		Expect(enabled.Load()).To(BeFalse())
		Flush(0)
	})

	It("logs with the context attached", func() {
		core, logs := observer.New(zap.DebugLevel)

		ReportIssueWithContext(errors.New("boom: details"), IssueTypeError, zap.New(core).Sugar(), map[string]any{"correlation_id": "abc"})

		Expect(logs.Len()).To(Equal(1))
		entry := logs.All()[0]
		Expect(entry.Message).To(Equal("boom"))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("correlation_id", "abc"))
	})

	It("tolerates a nil logger", func() {
		Expect(func() { ReportIssue(fmt.Errorf("failed %d times", 3), IssueTypeWarning, nil) }).ToNot(Panic())
	})

	It("builds events with tags for string context", func() {
		event := createSentryEvent(gosentry.LevelError, errors.New("x"), map[string]any{"route": "/api/servers", "n": 1})
		Expect(event.Tags).To(HaveKeyWithValue("route", "/api/servers"))
		Expect(event.Extra).To(HaveKeyWithValue("n", 1))
	})
})
