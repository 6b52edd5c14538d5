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
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/palantir/jclass/pkg/log"
	"go.uber.org/ratelimit"
)

type Crawler struct {
	// Limiter bounds the rate at which directories are entered. Nil means unlimited.
	Limiter ratelimit.Limiter
	// Logger receives errors for paths that could not be processed.
	Logger     log.Logger
	IgnoreDirs []*regexp.Regexp
}

type Stats struct {
	// Total number of files scanned.
	FilesScanned uint64 `json:"filesScanned"`
	// Number of paths that were not considered due to "permission denied" errors
	PermissionDeniedCount uint64 `json:"permissionDeniedErrors"`
	// Number of paths that were attempted to be processed but encountered errors.
	PathErrorCount uint64 `json:"pathErrors"`
	// Number of paths that were skipped due to config/size limits
	PathSkippedCount uint64 `json:"pathsSkipped"`
}

// MatchFunc processes a single regular file and reports how many paths inside it were skipped.
type MatchFunc func(ctx context.Context, path string, d fs.DirEntry) (skipped uint64, err error)

// Crawl walks root, which may be a file or a directory, calling match for every regular file
// outside the ignored directories. Errors from match are counted and logged, not returned.
func (c Crawler) Crawl(ctx context.Context, root string, match MatchFunc) (Stats, error) {
	stats := Stats{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			switch {
			case os.IsPermission(err):
				stats.PermissionDeniedCount++
				return nil
			case os.IsNotExist(err):
				// The root must exist. Anything below it may be removed while the walk is running.
				if path == root {
					return err
				}
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			if c.includeDir(path) {
				if c.Limiter != nil {
					c.Limiter.Take()
				}
				return nil
			}
			return fs.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		stats.FilesScanned++
		skipped, err := match(ctx, path, d)
		stats.PathSkippedCount += skipped
		if err != nil {
			stats.PathErrorCount++
			c.Logger.Error("Error processing path %s: %v", path, err)
		}
		return nil
	})
	return stats, err
}

func (c Crawler) includeDir(path string) bool {
	for _, pattern := range c.IgnoreDirs {
		if pattern.MatchString(path) {
			return false
		}
	}
	return true
}
