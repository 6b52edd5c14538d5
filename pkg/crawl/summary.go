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
	"encoding/json"
	"fmt"
	"io"
)

type SummaryJSON struct {
	Stats
	Counts
}

// WriteSummary writes the final line(s) of a verification run.
func WriteSummary(w io.Writer, outputJSON bool, stats Stats, counts Counts) error {
	var output string
	if outputJSON {
		jsonBytes, err := json.Marshal(SummaryJSON{
			Stats:  stats,
			Counts: counts,
		})
		if err != nil {
			return err
		}
		output = string(jsonBytes)
	} else {
		if counts.Failures() > 0 {
			output = fmt.Sprintf("Class files failing to round-trip: %d mismatched, %d failed, in %d file(s); %d verified", counts.Mismatched, counts.Failed, counts.FilesAffected, counts.Verified)
		} else {
			output = fmt.Sprintf("All %d class file(s) round-tripped", counts.Verified)
		}
		output += fmt.Sprintf("\n%d total files scanned, skipped %d paths due to permission denied errors, skipped %d paths due to configured limits, encountered %d errors processing paths", stats.FilesScanned, stats.PermissionDeniedCount, stats.PathSkippedCount, stats.PathErrorCount)
	}
	_, err := fmt.Fprintln(w, output)
	return err
}
