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

package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/palantir/jclass/pkg/buffer"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// FileWalkFn is called for every regular file in an archive. contents is only valid for the
// duration of the call. Returning proceed=false stops the walk without error.
type FileWalkFn func(ctx context.Context, path string, size int64, contents io.Reader) (proceed bool, err error)

type WalkFn func(ctx context.Context, walkFn FileWalkFn) error

// WalkCloser walks an opened archive and releases its resources on Close.
type WalkCloser interface {
	Walk(ctx context.Context, walkFn FileWalkFn) error
	Close() error
}

type walkCloser struct {
	walk  WalkFn
	close func() error
}

func (w walkCloser) Walk(ctx context.Context, walkFn FileWalkFn) error {
	return w.walk(ctx, walkFn)
}

func (w walkCloser) Close() error {
	return w.close()
}

// ReaderWalkerProviderFunc opens an archive over size bytes of r.
type ReaderWalkerProviderFunc func(r io.Reader, size int64) (WalkCloser, error)

// WalkerProvider opens archives either from a path on disk or from content nested in another archive.
type WalkerProvider interface {
	FromFile(path string) (WalkCloser, error)
	FromReader(r io.Reader, size int64) (WalkCloser, error)
}

type walkerProvider struct {
	fromFile   func(path string) (WalkCloser, error)
	fromReader ReaderWalkerProviderFunc
}

func (w walkerProvider) FromFile(path string) (WalkCloser, error) {
	return w.fromFile(path)
}

func (w walkerProvider) FromReader(r io.Reader, size int64) (WalkCloser, error) {
	return w.fromReader(r, size)
}

// Walkers returns a lookup from file name to the WalkerProvider able to open it. converter is used
// to obtain random access to zip content that only exists as a stream, and openMode decides how
// archives on disk are opened.
func Walkers(converter buffer.ReaderReaderAtConverter, openMode FileOpenMode) func(string) (WalkerProvider, bool) {
	open := standardOpenFileWalker
	if openMode == DirectIOOpen {
		open = directIOOpenFileWalker
	}
	providers := map[FormatType]WalkerProvider{
		ZipArchive:     newWalkerProvider(open, zipWalker(converter)),
		TarArchive:     newWalkerProvider(open, tarWalker),
		TarGzArchive:   newWalkerProvider(open, tarGzWalker),
		TarBz2Archive:  newWalkerProvider(open, tarBz2Walker),
		TarZstdArchive: newWalkerProvider(open, tarZstdWalker),
		TarLz4Archive:  newWalkerProvider(open, tarLz4Walker),
	}
	return func(filename string) (WalkerProvider, bool) {
		format, ok := ParseArchiveFormatFromFile(filename)
		if !ok {
			return nil, false
		}
		provider, ok := providers[format]
		return provider, ok
	}
}

func newWalkerProvider(open func(ReaderWalkerProviderFunc) func(string) (WalkCloser, error), fromReader ReaderWalkerProviderFunc) WalkerProvider {
	return walkerProvider{
		fromFile:   open(fromReader),
		fromReader: fromReader,
	}
}

func zipWalker(converter buffer.ReaderReaderAtConverter) ReaderWalkerProviderFunc {
	return func(r io.Reader, size int64) (WalkCloser, error) {
		closeFn := buffer.CloseFn(noopCloser)
		ra, ok := r.(io.ReaderAt)
		if !ok {
			var err error
			ra, closeFn, err = converter.ReaderAt(r, size)
			if err != nil {
				return nil, err
			}
		}
		zipReader, err := zip.NewReader(ra, size)
		if err != nil {
			_ = closeFn()
			return nil, err
		}
		return walkCloser{
			walk: func(ctx context.Context, walkFn FileWalkFn) error {
				return WalkZipFiles(ctx, zipReader, walkFn)
			},
			close: closeFn,
		}, nil
	}
}

func tarWalker(r io.Reader, _ int64) (WalkCloser, error) {
	return tarWalkCloser(tar.NewReader(r), noopCloser), nil
}

func tarGzWalker(r io.Reader, _ int64) (WalkCloser, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return tarWalkCloser(tar.NewReader(gzipReader), gzipReader.Close), nil
}

func tarBz2Walker(r io.Reader, _ int64) (WalkCloser, error) {
	return tarWalkCloser(tar.NewReader(bzip2.NewReader(r)), noopCloser), nil
}

func tarZstdWalker(r io.Reader, _ int64) (WalkCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd decoder")
	}
	return tarWalkCloser(tar.NewReader(decoder), func() error {
		decoder.Close()
		return nil
	}), nil
}

func tarLz4Walker(r io.Reader, _ int64) (WalkCloser, error) {
	return tarWalkCloser(tar.NewReader(lz4.NewReader(r)), noopCloser), nil
}

func tarWalkCloser(r *tar.Reader, close func() error) WalkCloser {
	return walkCloser{
		walk: func(ctx context.Context, walkFn FileWalkFn) error {
			return WalkTarFiles(ctx, r, walkFn)
		},
		close: close,
	}
}

func noopCloser() error { return nil }
