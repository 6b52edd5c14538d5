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
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/palantir/jclass/pkg/archive"
	"github.com/palantir/jclass/pkg/buffer"
	"github.com/palantir/jclass/pkg/classfile/classfiletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/ratelimit"
)

type zipEntry struct {
	name     string
	contents []byte
}

func zipBytes(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = f.Write(e.contents)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type collected struct {
	results []Result
}

func (c *collected) handle(_ context.Context, r Result) {
	c.results = append(c.results, r)
}

func (c *collected) byPath() map[string]Result {
	out := make(map[string]Result)
	for _, r := range c.results {
		out[r.Path.Joined()] = r
	}
	return out
}

func (c *collected) paths() []string {
	var out []string
	for _, r := range c.results {
		out = append(out, r.Path.Joined())
	}
	sort.Strings(out)
	return out
}

func newTestVerifier(c *collected, maxDepth uint) *Verifier {
	return &Verifier{
		Limiter:            ratelimit.NewUnlimited(),
		ArchiveWalkTimeout: time.Minute,
		ArchiveMaxDepth:    maxDepth,
		ArchiveWalkers:     archive.Walkers(buffer.SizeCappedInMemoryReaderAtConverter(1<<20), archive.StandardOpen),
		HandleResult:       c.handle,
	}
}

func writeFile(t *testing.T, dir, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, contents, 0640))
	return path
}

func TestVerifier_Verify(t *testing.T) {
	t.Run("class file on disk", func(t *testing.T) {
		var c collected
		path := writeFile(t, t.TempDir(), "Hello.class", classfiletest.HelloClass())
		skipped, err := newTestVerifier(&c, 0).Verify(context.Background(), path, dirEntry(t, path))
		require.NoError(t, err)
		assert.Zero(t, skipped)
		require.Len(t, c.results, 1)
		assert.Equal(t, Result{
			Path:    NestedPath{path},
			Size:    int64(len(classfiletest.HelloClass())),
			Outcome: RoundTripOK,
			Offset:  -1,
		}, c.results[0])
	})

	t.Run("other files are ignored", func(t *testing.T) {
		var c collected
		path := writeFile(t, t.TempDir(), "README.md", []byte("hello"))
		skipped, err := newTestVerifier(&c, 0).Verify(context.Background(), path, dirEntry(t, path))
		require.NoError(t, err)
		assert.Zero(t, skipped)
		assert.Empty(t, c.results)
	})

	t.Run("oversized class file is skipped", func(t *testing.T) {
		var c collected
		path := writeFile(t, t.TempDir(), "Hello.class", classfiletest.HelloClass())
		v := newTestVerifier(&c, 0)
		v.MaxClassSize = 10
		skipped, err := v.Verify(context.Background(), path, dirEntry(t, path))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), skipped)
		assert.Empty(t, c.results)
	})

	t.Run("classes in nested archives", func(t *testing.T) {
		var c collected
		inner := zipBytes(t, zipEntry{name: "pkg/Mismatch.class", contents: mismatchedClass()})
		outer := zipBytes(t,
			zipEntry{name: "pkg/Hello.class", contents: classfiletest.HelloClass()},
			zipEntry{name: "pkg/Broken.CLASS", contents: []byte{0xCA, 0xFE, 0xBA, 0xBE}},
			zipEntry{name: "META-INF/MANIFEST.MF", contents: []byte("Manifest-Version: 1.0\n")},
			zipEntry{name: "lib/inner.jar", contents: inner},
		)
		path := writeFile(t, t.TempDir(), "app.jar", outer)
		skipped, err := newTestVerifier(&c, 1).Verify(context.Background(), path, dirEntry(t, path))
		require.NoError(t, err)
		assert.Zero(t, skipped)
		assert.Equal(t, []string{
			path + "!lib/inner.jar!pkg/Mismatch.class",
			path + "!pkg/Broken.CLASS",
			path + "!pkg/Hello.class",
		}, c.paths())
		results := c.byPath()
		assert.Equal(t, RoundTripOK, results[path+"!pkg/Hello.class"].Outcome)
		assert.Equal(t, DecodeFailed, results[path+"!pkg/Broken.CLASS"].Outcome)
		assert.Error(t, results[path+"!pkg/Broken.CLASS"].Err)
		mismatch := results[path+"!lib/inner.jar!pkg/Mismatch.class"]
		assert.Equal(t, RoundTripMismatch, mismatch.Outcome)
		assert.Equal(t, int64(12), mismatch.Offset)
	})

	t.Run("archives beyond the maximum depth are skipped", func(t *testing.T) {
		var c collected
		inner := zipBytes(t, zipEntry{name: "Hello.class", contents: classfiletest.HelloClass()})
		outer := zipBytes(t, zipEntry{name: "inner.jar", contents: inner})
		path := writeFile(t, t.TempDir(), "app.jar", outer)
		skipped, err := newTestVerifier(&c, 0).Verify(context.Background(), path, dirEntry(t, path))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), skipped)
		assert.Empty(t, c.results)
	})

	t.Run("nested archives above the converter limit are skipped", func(t *testing.T) {
		var c collected
		inner := zipBytes(t, zipEntry{name: "Hello.class", contents: classfiletest.HelloClass()})
		outer := zipBytes(t, zipEntry{name: "inner.jar", contents: inner})
		path := writeFile(t, t.TempDir(), "app.jar", outer)
		v := newTestVerifier(&c, 1)
		v.ArchiveWalkers = archive.Walkers(buffer.SizeCappedInMemoryReaderAtConverter(1), archive.StandardOpen)
		skipped, err := v.Verify(context.Background(), path, dirEntry(t, path))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), skipped)
		assert.Empty(t, c.results)
	})

	t.Run("corrupt archive is an error", func(t *testing.T) {
		var c collected
		path := writeFile(t, t.TempDir(), "app.jar", []byte("not a zip"))
		_, err := newTestVerifier(&c, 0).Verify(context.Background(), path, dirEntry(t, path))
		assert.Error(t, err)
	})
}

func dirEntry(t *testing.T, path string) os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		if e.Name() == filepath.Base(path) {
			return e
		}
	}
	require.FailNow(t, "no directory entry for "+path)
	return nil
}
