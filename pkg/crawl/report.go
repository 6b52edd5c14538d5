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

package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

type Reporter struct {
	// if non-nil, reported output is written to this writer
	OutputWriter io.Writer
	// True if reported output should be JSON, false otherwise
	OutputJSON bool
	// True if the reported output should consist of only the path to the file that failed, false otherwise.
	// Only has an effect if OutputJSON is false.
	OutputFilePathOnly bool
	// True if class files that round-trip successfully should be reported as well as failures.
	ReportSuccesses bool
	lastFailureFile string
	counts          Counts
}

// Counts tallies the results seen by a Reporter.
type Counts struct {
	Verified   int64 `json:"verified"`
	Mismatched int64 `json:"mismatched"`
	Failed     int64 `json:"failed"`
	// Number of files on disk holding at least one class that did not round-trip.
	FilesAffected int64 `json:"filesAffected"`
}

// Failures is the number of class files that did not round-trip.
func (c Counts) Failures() int64 {
	return c.Mismatched + c.Failed
}

type ClassResult struct {
	Outcome      string `json:"outcome"`
	FilePath     string `json:"filePath"`
	DetailedPath string `json:"detailedPath"`
	Size         int64  `json:"size"`
	Offset       *int64 `json:"firstDifferenceOffset,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Report counts result and writes it to the OutputWriter according to the Reporter's configuration.
func (r *Reporter) Report(ctx context.Context, result Result) {
	switch result.Outcome {
	case RoundTripOK:
		r.counts.Verified++
	case RoundTripMismatch:
		r.counts.Mismatched++
	default:
		r.counts.Failed++
	}

	failed := result.Outcome.Failed()
	newFailureFile := failed && r.lastFailureFile != result.Path[0]
	if newFailureFile {
		r.counts.FilesAffected++
	}
	defer func() {
		if failed {
			r.lastFailureFile = result.Path[0]
		}
	}()

	if r.OutputWriter == nil || !failed && !r.ReportSuccesses {
		return
	}

	var outputToWrite string
	if r.OutputJSON {
		classResult := ClassResult{
			Outcome:      result.Outcome.String(),
			FilePath:     result.Path[0],
			DetailedPath: result.Path.Joined(),
			Size:         result.Size,
		}
		if result.Outcome == RoundTripMismatch {
			offset := result.Offset
			classResult.Offset = &offset
		}
		if result.Err != nil {
			classResult.Error = result.Err.Error()
		}
		// should not fail
		jsonBytes, _ := json.Marshal(classResult)
		outputToWrite = string(jsonBytes)
	} else if r.OutputFilePathOnly {
		if !newFailureFile {
			return
		}
		outputToWrite = result.Path[0]
	} else {
		outputToWrite = textResult(result)
	}
	_, _ = fmt.Fprintln(r.OutputWriter, outputToWrite)
}

func textResult(result Result) string {
	path := result.Path.Joined()
	switch result.Outcome {
	case RoundTripOK:
		return color.GreenString("[OK] %s (%d bytes)", path, result.Size)
	case RoundTripMismatch:
		return color.YellowString("[MISMATCH] %s: re-encoded bytes differ from offset %d", path, result.Offset)
	case DecodeFailed:
		return color.RedString("[DECODE FAILED] %s: %v", path, result.Err)
	default:
		return color.RedString("[ENCODE FAILED] %s: %v", path, result.Err)
	}
}

// Counts returns the tallies of everything reported so far.
func (r *Reporter) Counts() Counts {
	return r.counts
}
