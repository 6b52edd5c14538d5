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
	"os"

	"github.com/ncw/directio"
	"github.com/palantir/jclass/pkg/buffer"
)

type FileOpenMode bool

const (
	// StandardOpen opens files using read only flags.
	StandardOpen FileOpenMode = false
	// DirectIOOpen opens files using flags that allow for direct i/o, skipping filesystem cache.
	DirectIOOpen FileOpenMode = true

	// directIOIntermediateBufferSize is the intermediate buffer size used when using DirectIOOpen FileOpenMode.
	directIOIntermediateBufferSize = 8 * directio.BlockSize
)

func standardOpenFileWalker(getWalker ReaderWalkerProviderFunc) func(path string) (WalkCloser, error) {
	return func(path string) (WalkCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		stat, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		walker, err := getWalker(f, stat.Size())
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return closeBoth(walker, f), nil
	}
}

// directIOOpenFileWalker reads through an aligned intermediate buffer, which means the walker
// only ever sees a sequential reader. Files smaller than one block are opened normally.
func directIOOpenFileWalker(getWalker ReaderWalkerProviderFunc) func(path string) (WalkCloser, error) {
	return func(path string) (WalkCloser, error) {
		stat, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if stat.Size() < directio.BlockSize {
			return standardOpenFileWalker(getWalker)(path)
		}

		f, err := directio.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, err
		}
		walker, err := getWalker(&buffer.IntermediateBufferReader{
			Reader:      f,
			ContentSize: stat.Size(),
			Buffer:      directio.AlignedBlock(directIOIntermediateBufferSize),
		}, stat.Size())
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return closeBoth(walker, f), nil
	}
}

func closeBoth(walker WalkCloser, f *os.File) WalkCloser {
	return walkCloser{
		walk: walker.Walk,
		close: func() error {
			wErr := walker.Close()
			if fErr := f.Close(); fErr != nil {
				return fErr
			}
			return wErr
		},
	}
}
