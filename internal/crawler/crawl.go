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

package crawler

import (
	"context"
	"io"
	"regexp"
	"time"

	"github.com/palantir/jclass/pkg/archive"
	"github.com/palantir/jclass/pkg/buffer"
	"github.com/palantir/jclass/pkg/crawl"
	"github.com/palantir/jclass/pkg/log"
	"go.uber.org/ratelimit"
)

type Config struct {
	// Root is the root directory or file for the crawl operation
	Root string
	// ArchiveListTimeout is the maximum amount of time that will be spent walking an archive on disk, including
	// everything nested in it. Once this duration has passed the archive is reported as an error.
	ArchiveListTimeout time.Duration
	// ArchiveMaxDepth is the maximum archive depth to recurse into. A value of 0 will open up an archive on the
	// filesystem but will not recurse into any nested archives within it.
	ArchiveMaxDepth uint
	// ArchiveMaxSize is the maximum nested zip-based archive size that will be held in memory for inspection.
	ArchiveMaxSize uint
	// ArchiveDiskSwapMaxSize is the size on disk, in bytes, that is allowed to be used for writing
	// archives over ArchiveMaxSize to disk as temporary files.
	// ArchiveDiskSwapMaxSize is the total size allowed across all files that exist at the same time.
	ArchiveDiskSwapMaxSize uint
	// ArchiveDiskSwapMaxDir is the directory in which temporary files will be written for archives
	// that are over ArchiveMaxSize.
	ArchiveDiskSwapMaxDir string
	// MaxClassSize is the largest class file, in bytes, that will be round-tripped.
	MaxClassSize uint
	// Maximum number of directories to scan per second, or 0 for no limit.
	DirectoriesCrawledPerSecond int
	// Maximum number of archives to scan per second, or 0 for no limit.
	ArchivesCrawledPerSecond int
	// If true, print out informational messages such as skipped paths as they happen
	PrintDetailedOutput bool
	// Ignores specifies the regular expressions used to determine which directories to omit.
	Ignores []*regexp.Regexp
	// ArchiveOpenMode prescribes the crawler to use either direct-io or standard file opening.
	ArchiveOpenMode archive.FileOpenMode
	// EnableTraceLogging enables trace level logging.
	EnableTraceLogging bool
}

// Crawl round-trips every class file under the configured root, passing each result to process.
func Crawl(ctx context.Context, config Config, process crawl.HandleResultFunc, stdout, stderr io.Writer) (crawl.Stats, error) {
	var outputWriter io.Writer
	if config.PrintDetailedOutput || config.EnableTraceLogging {
		outputWriter = stdout
	}
	logger := log.Logger{
		OutputWriter:       outputWriter,
		ErrorWriter:        stderr,
		EnableTraceLogging: config.EnableTraceLogging,
	}
	verifier := crawl.Verifier{
		Logger:             logger,
		Limiter:            limiterFromConfig(config.ArchivesCrawledPerSecond),
		ArchiveWalkTimeout: config.ArchiveListTimeout,
		ArchiveMaxDepth:    config.ArchiveMaxDepth,
		ArchiveWalkers:     config.archiveWalkers(),
		MaxClassSize:       int(config.MaxClassSize),
		HandleResult:       process,
	}
	crawler := crawl.Crawler{
		Limiter:    limiterFromConfig(config.DirectoriesCrawledPerSecond),
		Logger:     logger,
		IgnoreDirs: config.Ignores,
	}

	crawlStats, err := crawler.Crawl(ctx, config.Root, verifier.Verify)
	if err != nil {
		logger.Error("Error crawling: %v", err)
		return crawl.Stats{}, err
	}
	return crawlStats, nil
}

func (cfg Config) archiveWalkers() func(string) (archive.WalkerProvider, bool) {
	var converter buffer.ReaderReaderAtConverter
	if cfg.ArchiveDiskSwapMaxSize == 0 {
		// Although using a buffer.InMemoryWithDiskOverflowReaderAtConverter with a max of 0 would yield
		// the same resource limits here, by using a buffer.SizeCappedInMemoryReaderAtConverter we will
		// report more user-friendly error messages when hitting the limits.
		converter = buffer.SizeCappedInMemoryReaderAtConverter(int64(cfg.ArchiveMaxSize))
	} else {
		converter = &buffer.InMemoryWithDiskOverflowReaderAtConverter{
			Path:          cfg.ArchiveDiskSwapMaxDir,
			MaxMemorySize: int64(cfg.ArchiveMaxSize),
			MaxDiskSpace:  int64(cfg.ArchiveDiskSwapMaxSize),
		}
	}
	return archive.Walkers(converter, cfg.ArchiveOpenMode)
}

func limiterFromConfig(limit int) ratelimit.Limiter {
	if limit > 0 {
		return ratelimit.New(limit)
	}
	return ratelimit.NewUnlimited()
}
