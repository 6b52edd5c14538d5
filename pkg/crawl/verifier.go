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
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/palantir/jclass/pkg/archive"
	"github.com/palantir/jclass/pkg/buffer"
	"github.com/palantir/jclass/pkg/log"
	"github.com/pkg/errors"
	"go.uber.org/ratelimit"
)

// DefaultMaxClassSize is used when Verifier.MaxClassSize is not set.
const DefaultMaxClassSize = 16 << 20

// Result is the round-trip outcome for a single class file.
type Result struct {
	Path    NestedPath
	Size    int64
	Outcome Outcome
	// Offset of the first differing byte for RoundTripMismatch, -1 otherwise.
	Offset int64
	Err    error
}

// HandleResultFunc is called for every class file that a Verifier round-trips.
type HandleResultFunc func(ctx context.Context, result Result)

// Verifier round-trips class files found on disk and inside archives.
type Verifier struct {
	log.Logger
	// Limiter bounds the rate at which archives are walked. Nil means unlimited.
	Limiter            ratelimit.Limiter
	ArchiveWalkTimeout time.Duration
	ArchiveMaxDepth    uint
	ArchiveWalkers     func(string) (archive.WalkerProvider, bool)
	// MaxClassSize is the largest class file, in bytes, that is read into memory.
	MaxClassSize int
	HandleResult HandleResultFunc
}

// Verify round-trips the class files at path. path is either a class file or an archive
// containing class files. Any other file is ignored.
func (v *Verifier) Verify(ctx context.Context, path string, d fs.DirEntry) (skipped uint64, err error) {
	v.Trace("Verifying file %s", path)

	lowercaseFilename := strings.ToLower(d.Name())
	if strings.HasSuffix(lowercaseFilename, ".class") {
		return v.verifyClassFile(ctx, path)
	}

	provider, ok := v.ArchiveWalkers(lowercaseFilename)
	if !ok {
		return 0, nil
	}

	if v.ArchiveWalkTimeout > 0 {
		ctxWithTimeout, cancel := context.WithTimeout(ctx, v.ArchiveWalkTimeout)
		defer cancel()
		ctx = ctxWithTimeout
	}

	walker, err := provider.FromFile(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cErr := walker.Close(); err == nil && cErr != nil {
			err = cErr
		}
	}()

	skipped, err = v.walkArchive(ctx, 0, walker, NestedPath{path})
	if err != nil {
		return skipped, errors.Wrapf(err, "failed to walk archive %s", path)
	}
	return skipped, nil
}

func (v *Verifier) verifyClassFile(ctx context.Context, path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := buffer.ReadAllLimited(f, v.maxClassSize())
	if err != nil {
		var tooLarge buffer.WriteTooLargeError
		if errors.As(err, &tooLarge) {
			v.Info("Skipping class file above configured maximum size at %s", path)
			return 1, nil
		}
		return 0, errors.Wrapf(err, "failed to read class file %s", path)
	}
	v.verifyClass(ctx, NestedPath{path}, data)
	return 0, nil
}

func (v *Verifier) walkArchive(ctx context.Context, depth uint, walker archive.WalkCloser, nestedPaths NestedPath) (uint64, error) {
	var skipped uint64
	if v.Limiter != nil {
		v.Limiter.Take()
	}
	err := walker.Walk(ctx, v.fileWalkFunc(depth, &skipped, nestedPaths))
	return skipped, err
}

func (v *Verifier) fileWalkFunc(depth uint, skipped *uint64, paths NestedPath) archive.FileWalkFn {
	return func(ctx context.Context, path string, size int64, contents io.Reader) (proceed bool, err error) {
		nestedPaths := append(append(NestedPath{}, paths...), path)
		filename := strings.ToLower(filenameFromPathInsideArchive(path))

		if strings.HasSuffix(filename, ".class") {
			if size > int64(v.maxClassSize()) {
				*skipped++
				v.Info("Skipping class file above configured maximum size at %s", nestedPaths.Joined())
				return true, nil
			}
			data, err := buffer.ReadAllLimited(contents, v.maxClassSize())
			if err != nil {
				return false, errors.Wrapf(err, "failed to read %s", nestedPaths.Joined())
			}
			v.verifyClass(ctx, nestedPaths, data)
			return true, nil
		}

		provider, ok := v.ArchiveWalkers(filename)
		if !ok {
			return true, nil
		}
		if depth >= v.ArchiveMaxDepth {
			*skipped++
			v.Info("Skipping nested archive nested beyond configured maximum level at %s", nestedPaths.Joined())
			return true, nil
		}
		walker, err := provider.FromReader(contents, size)
		if err != nil {
			var exceeds buffer.ContentsExceedLimitError
			if errors.As(err, &exceeds) {
				*skipped++
				v.Info("Skipping nested archive above configured maximum size at %s", nestedPaths.Joined())
				return true, nil
			}
			return false, err
		}
		defer func() {
			if cErr := walker.Close(); err == nil && cErr != nil {
				err = cErr
			}
		}()
		innerSkipped, err := v.walkArchive(ctx, depth+1, walker, nestedPaths)
		*skipped += innerSkipped
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

func (v *Verifier) verifyClass(ctx context.Context, path NestedPath, data []byte) {
	outcome, offset, err := RoundTrip(data)
	v.Trace("Round trip of %s: %s", path.Joined(), outcome)
	if v.HandleResult != nil {
		v.HandleResult(ctx, Result{
			Path:    path,
			Size:    int64(len(data)),
			Outcome: outcome,
			Offset:  offset,
			Err:     err,
		})
	}
}

func (v *Verifier) maxClassSize() int {
	if v.MaxClassSize <= 0 {
		return DefaultMaxClassSize
	}
	return v.MaxClassSize
}

func filenameFromPathInsideArchive(path string) string {
	filename, finalSlashIndex := path, strings.LastIndex(path, "/")
	if finalSlashIndex > -1 {
		filename = path[finalSlashIndex+1:]
	}
	return filename
}
