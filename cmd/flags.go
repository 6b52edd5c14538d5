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
	"fmt"
	"regexp"
	"time"

	"github.com/palantir/jclass/internal/crawler"
	"github.com/palantir/jclass/pkg/archive"
	"github.com/palantir/jclass/pkg/document"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type verifyFlags struct {
	ignoreDirs                   []string
	archiveOpenMode              string
	perArchiveTimeout            time.Duration
	nestedArchiveMaxDepth        uint
	nestedArchiveMaxSize         uint
	nestedArchiveDiskSwapMaxSize uint
	nestedArchiveDiskSwapDir     string
	maxClassSize                 uint
	directoriesCrawledPerSecond  int
	archivesCrawledPerSecond     int
	enableTraceLogging           bool
	disableDetailedOutput        bool
	outputJSON                   bool
	outputFilePathOnly           bool
	outputSummary                bool
	reportSuccesses              bool
}

func applyVerifyFlags(cmd *cobra.Command, flags *verifyFlags) {
	cmd.Flags().StringSliceVar(&flags.ignoreDirs, "ignore-dir", nil, `Specify directory pattern to ignore. Use multiple times to supply multiple patterns.
Patterns are matched against the full path of each directory.
e.g. ignore "^/proc" to ignore "/proc" when using a crawl root of "/"`)
	cmd.Flags().StringVar(&flags.archiveOpenMode, "archive-open-mode", "standard", `Supported values:
  standard - standard file opening will be used. This may cause the filesystem cache to be populated with reads from the archive opens.
  directio - direct I/O will be used when opening archives that require sequential reading of their content without being able to skip to file tables at known locations within the file.
             For example, "directio" can have an effect on the way that tar-based archives are read but will have no effect on zip-based archives.
             Using "directio" will cause the filesystem cache to be skipped where possible. "directio" is not supported on tmpfs filesystems and will cause tmpfs archive files to report an error.`)
	cmd.Flags().DurationVar(&flags.perArchiveTimeout, "per-archive-timeout", 15*time.Minute, `If this duration is exceeded when verifying an archive,
an error will be logged and the crawler will move onto the next file.`)
	cmd.Flags().UintVar(&flags.nestedArchiveMaxSize, "nested-archive-max-size", 5*1024*1024, `The maximum compressed size in bytes of any nested zip-based archive that will be held in memory for verification.
This limit is made a per-depth level.`)
	cmd.Flags().UintVar(&flags.nestedArchiveDiskSwapMaxSize, "nested-archive-disk-swap-max-size", 0, `The maximum size in bytes of disk space allowed to use for verifying nested archives that are over the nested-archive-max-size.
By default no disk swap is allowed and nested archives will only be verified if they fit into the configured nested-archive-max-size.
The limit applies to the accumulated size of all temporary files that exist at the same time.`)
	cmd.Flags().StringVar(&flags.nestedArchiveDiskSwapDir, "nested-archive-disk-swap-dir", "/tmp", `When nested-archive-disk-swap-max-size is non-zero, this is the directory in which temporary files will be created for large nested archives.`)
	cmd.Flags().UintVar(&flags.nestedArchiveMaxDepth, "nested-archive-max-depth", 0, `The maximum depth to recurse into nested archives.
A max depth of 0 will open up an archive on the filesystem but not any nested archives.`)
	cmd.Flags().UintVar(&flags.maxClassSize, "max-class-size", 16*1024*1024, `The maximum size in bytes of a class file that will be verified. Larger class files are skipped.`)
	cmd.Flags().IntVar(&flags.directoriesCrawledPerSecond, "directories-per-second-rate-limit", 0, `The maximum number of directories to crawl per second. 0 for unlimited.`)
	cmd.Flags().IntVar(&flags.archivesCrawledPerSecond, "archives-per-second-rate-limit", 0, `The maximum number of archives to verify per second. 0 for unlimited.`)
	cmd.Flags().BoolVar(&flags.enableTraceLogging, "enable-trace-logging", false, `Enables trace logging of every class file as it is verified.`)
	cmd.Flags().BoolVar(&flags.disableDetailedOutput, "disable-detailed-output", false, `If true, informational messages such as skipped paths will not be printed.`)
	cmd.Flags().BoolVar(&flags.outputJSON, "json", false, "If true, output will be in JSON format")
	cmd.Flags().BoolVar(&flags.outputFilePathOnly, "file-path-only", false, `If true, output will consist of only paths to the files on disk holding classes that failed to round-trip.
This cannot be used with --json.`)
	cmd.Flags().BoolVar(&flags.outputSummary, "summary", true, "If true, outputs a summary of all operations once program completes")
	cmd.Flags().BoolVar(&flags.reportSuccesses, "report-successes", false, "If true, class files that round-trip successfully are reported as well as failures")
}

func createVerifyConfig(root string, flags verifyFlags) (crawler.Config, error) {
	if flags.outputJSON && flags.outputFilePathOnly {
		return crawler.Config{}, errors.New("--json and --file-path-only cannot be used together")
	}

	ignores, err := flags.resolveIgnoreDirs()
	if err != nil {
		return crawler.Config{}, err
	}

	mode, err := flags.resolveArchiveOpenMode()
	if err != nil {
		return crawler.Config{}, err
	}

	return crawler.Config{
		Root:                        root,
		ArchiveOpenMode:             mode,
		ArchiveListTimeout:          flags.perArchiveTimeout,
		ArchiveMaxDepth:             flags.nestedArchiveMaxDepth,
		ArchiveMaxSize:              flags.nestedArchiveMaxSize,
		ArchiveDiskSwapMaxSize:      flags.nestedArchiveDiskSwapMaxSize,
		ArchiveDiskSwapMaxDir:       flags.nestedArchiveDiskSwapDir,
		MaxClassSize:                flags.maxClassSize,
		DirectoriesCrawledPerSecond: flags.directoriesCrawledPerSecond,
		ArchivesCrawledPerSecond:    flags.archivesCrawledPerSecond,
		PrintDetailedOutput:         !flags.disableDetailedOutput && !flags.outputJSON && !flags.outputFilePathOnly,
		EnableTraceLogging:          flags.enableTraceLogging,
		Ignores:                     ignores,
	}, nil
}

func (fs verifyFlags) resolveArchiveOpenMode() (archive.FileOpenMode, error) {
	switch fs.archiveOpenMode {
	case "standard":
		return archive.StandardOpen, nil
	case "directio":
		return archive.DirectIOOpen, nil
	}
	return archive.StandardOpen, fmt.Errorf(`unsupported --archive-open-mode: %s. Supported values are "standard" and "directio"`, fs.archiveOpenMode)
}

func (fs verifyFlags) resolveIgnoreDirs() ([]*regexp.Regexp, error) {
	var ignores []*regexp.Regexp
	for _, pattern := range fs.ignoreDirs {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compile ignore-dir pattern %q", pattern)
		}
		ignores = append(ignores, compiled)
	}
	return ignores, nil
}

type documentFlags struct {
	format string
}

func applyDocumentFlags(cmd *cobra.Command, flags *documentFlags) {
	cmd.Flags().StringVar(&flags.format, "format", "", `Document format, one of json, yaml or cbor.
Defaults to the format matching the document file extension (.json, .yaml, .yml or .cbor).`)
}

// resolveFormat returns the --format value when set, otherwise the format of documentPath.
func (fs documentFlags) resolveFormat(documentPath string) (document.Format, error) {
	if fs.format != "" {
		return document.ParseFormat(fs.format)
	}
	return document.FormatFromPath(documentPath)
}
