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

package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// ContentsExceedLimitError is returned when content cannot be held within the configured limits.
type ContentsExceedLimitError string

func (o ContentsExceedLimitError) Error() string {
	if o == "" {
		return "contents size exceeds limit"
	}
	return "contents size exceeds limit: " + string(o)
}

type CloseFn func() error

// ReaderReaderAtConverter turns sequential content of a known size into random access content,
// which is what zip-based archives need when they are nested inside other archives.
type ReaderReaderAtConverter interface {
	ReaderAt(r io.Reader, contentSize int64) (io.ReaderAt, CloseFn, error)
}

type ReaderReaderAtConverterFunc func(r io.Reader, contentSize int64) (io.ReaderAt, CloseFn, error)

func (fn ReaderReaderAtConverterFunc) ReaderAt(r io.Reader, contentSize int64) (io.ReaderAt, CloseFn, error) {
	return fn(r, contentSize)
}

// SizeCappedInMemoryReaderAtConverter holds content in memory, refusing anything above maxSize.
func SizeCappedInMemoryReaderAtConverter(maxSize int64) ReaderReaderAtConverterFunc {
	return func(r io.Reader, contentSize int64) (io.ReaderAt, CloseFn, error) {
		if contentSize > maxSize {
			return nil, nil, ContentsExceedLimitError("over max allowed in-memory buffer size")
		}
		return inMemoryReaderAt(r, contentSize)
	}
}

// InMemoryWithDiskOverflowReaderAtConverter holds content of up to MaxMemorySize bytes in memory and
// writes larger content to temporary files in Path. MaxDiskSpace bounds the combined size of the
// temporary files that exist at any one time.
type InMemoryWithDiskOverflowReaderAtConverter struct {
	Path          string
	MaxMemorySize int64
	MaxDiskSpace  int64

	mu           sync.Mutex
	sizeOccupied int64
}

func (c *InMemoryWithDiskOverflowReaderAtConverter) ReaderAt(r io.Reader, contentSize int64) (io.ReaderAt, CloseFn, error) {
	if contentSize <= c.MaxMemorySize {
		return inMemoryReaderAt(r, contentSize)
	}
	if !c.reserve(contentSize) {
		return nil, nil, ContentsExceedLimitError("over remaining space allowed for disk swap")
	}

	file, err := os.CreateTemp(c.Path, "jclass-swap-")
	if err != nil {
		c.release(contentSize)
		return nil, nil, err
	}
	if err := copyExactlyN(file, r, contentSize); err != nil {
		_ = file.Close()
		// The reservation is kept when the file cannot be removed: it still occupies up to contentSize.
		if rmErr := os.Remove(file.Name()); rmErr == nil {
			c.release(contentSize)
		}
		return nil, nil, err
	}

	var once sync.Once
	var closeErr error
	return file, func() error {
		once.Do(func() {
			_ = file.Close()
			if closeErr = os.Remove(file.Name()); closeErr == nil {
				c.release(contentSize)
			}
		})
		return closeErr
	}, nil
}

func (c *InMemoryWithDiskOverflowReaderAtConverter) reserve(size int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if size > c.MaxDiskSpace-c.sizeOccupied {
		return false
	}
	c.sizeOccupied += size
	return true
}

func (c *InMemoryWithDiskOverflowReaderAtConverter) release(size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizeOccupied -= size
}

func inMemoryReaderAt(r io.Reader, size int64) (io.ReaderAt, CloseFn, error) {
	var buf bytes.Buffer
	if err := copyExactlyN(&buf, r, size); err != nil {
		return nil, nil, err
	}
	return bytes.NewReader(buf.Bytes()), func() error { return nil }, nil
}

func copyExactlyN(dst io.Writer, src io.Reader, n int64) error {
	actualN, err := io.CopyN(dst, src, n)
	if err == io.EOF {
		return errors.Errorf("expected content size to be %d but was %d", n, actualN)
	}
	return err
}
