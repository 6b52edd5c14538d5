// Copyright (c) 2022 Palantir Technologies. All rights reserved.
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

package log

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Logger writes leveled, line-oriented messages. Nil writers disable the levels that use them.
type Logger struct {
	OutputWriter       io.Writer
	ErrorWriter        io.Writer
	EnableTraceLogging bool
}

// TraceEnabled reports whether Trace would write anything.
func (l Logger) TraceEnabled() bool {
	return l.OutputWriter != nil && l.EnableTraceLogging
}

func (l Logger) Trace(format string, args ...interface{}) {
	if l.TraceEnabled() {
		_, _ = fmt.Fprintln(l.OutputWriter, fmt.Sprintf("[TRACE] "+format, args...))
	}
}

func (l Logger) Info(format string, args ...interface{}) {
	if l.OutputWriter != nil {
		_, _ = fmt.Fprintln(l.OutputWriter, color.CyanString("[INFO] "+format, args...))
	}
}

func (l Logger) Warn(format string, args ...interface{}) {
	if l.OutputWriter != nil {
		_, _ = fmt.Fprintln(l.OutputWriter, color.YellowString("[WARN] "+format, args...))
	}
}

func (l Logger) Error(format string, args ...interface{}) {
	if l.ErrorWriter != nil {
		_, _ = fmt.Fprintln(l.ErrorWriter, color.RedString("[ERROR] "+format, args...))
	}
}
