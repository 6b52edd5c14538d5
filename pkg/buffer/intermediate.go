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
	"io"
)

// IntermediateBufferReader reads ContentSize bytes from Reader through Buffer, so that every
// read issued against Reader has the size (and, for direct I/O, the alignment) of Buffer.
type IntermediateBufferReader struct {
	Reader      io.Reader
	ContentSize int64
	Buffer      []byte

	// Buffer[start:end] holds bytes read from Reader but not yet returned.
	start, end int
	delivered  int64
}

func (a *IntermediateBufferReader) Read(p []byte) (int, error) {
	remaining := a.ContentSize - a.delivered
	if remaining <= 0 {
		return 0, io.EOF
	}
	if a.start == a.end {
		if len(a.Buffer) == 0 {
			return 0, io.ErrShortBuffer
		}
		n, err := a.Reader.Read(a.Buffer)
		a.start, a.end = 0, n
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == 0 {
			if err == io.EOF {
				// content ended before ContentSize bytes were seen
				return 0, io.ErrUnexpectedEOF
			}
			return 0, nil
		}
	}

	window := a.Buffer[a.start:a.end]
	if int64(len(window)) > remaining {
		window = window[:remaining]
	}
	n := copy(p, window)
	a.start += n
	a.delivered += int64(n)
	if a.delivered == a.ContentSize {
		return n, io.EOF
	}
	return n, nil
}
