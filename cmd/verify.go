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

package cmd

import (
	"github.com/palantir/jclass/internal/crawler"
	"github.com/palantir/jclass/pkg/crawl"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func verifyCmd() *cobra.Command {
	var flags verifyFlags
	cmd := cobra.Command{
		Use:          "verify <root>",
		Args:         cobra.ExactArgs(1),
		Short:        "Crawl filesystem to check that every class file round-trips.",
		SilenceUsage: true,
		Long: `Crawl filesystem to check that every class file decodes and re-encodes to identical bytes.
Root must be provided and can be a single file or directory.
If a directory is provided, it is traversed and all class files and archives are verified.
Class files inside zip-based archives (jar, war, ear, zip, par, jmod) and tar archives
(optionally gzip, bzip2, zstd or lz4 compressed) are verified too, including nested archives
up to the configured depth.
Use the ignore-dir flag to provide directories of which to ignore all nested files.
The command exits with a non-zero status if any class file failed to round-trip.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := createVerifyConfig(args[0], flags)
			if err != nil {
				return err
			}
			reporter := crawl.Reporter{
				OutputWriter:       cmd.OutOrStdout(),
				OutputJSON:         flags.outputJSON,
				OutputFilePathOnly: flags.outputFilePathOnly,
				ReportSuccesses:    flags.reportSuccesses,
			}
			stats, err := crawler.Crawl(cmd.Context(), config, reporter.Report, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			counts := reporter.Counts()
			if flags.outputSummary && !flags.outputFilePathOnly {
				if err := crawl.WriteSummary(cmd.OutOrStdout(), flags.outputJSON, stats, counts); err != nil {
					return err
				}
			}
			if counts.Failures() > 0 {
				return errors.Errorf("%d class file(s) failed to round-trip", counts.Failures())
			}
			return nil
		},
	}
	applyVerifyFlags(&cmd, &flags)
	return &cmd
}
