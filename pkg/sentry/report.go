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
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
)

// ReportIssue logs err and sends it to Sentry when reporting is enabled.
func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

// ReportIssueWithContext is ReportIssue with extra key-value pairs attached to
// both the log line and the Sentry event.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]any) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	fields := make([]any, 0, 2*len(context)+2)
	fields = append(fields, "error", err)

	for key, value := range context {
		fields = append(fields, key, value)
	}

	level := sentry.LevelError

	if issueType == IssueTypeWarning {
		level = sentry.LevelWarning

		log.Warnw(getMeaningfulErrorTitle(err), fields...)
	} else {
		log.Errorw(getMeaningfulErrorTitle(err), fields...)
	}

	sendSentryEvent(createSentryEvent(level, err, context))
}
