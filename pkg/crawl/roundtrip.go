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
	"github.com/palantir/jclass/pkg/classfile"
)

// Outcome is the result of decoding a class file and encoding it again.
type Outcome int

const (
	RoundTripOK Outcome = iota
	RoundTripMismatch
	DecodeFailed
	EncodeFailed
)

var outcomeNames = map[Outcome]string{
	RoundTripOK:       "roundTripOK",
	RoundTripMismatch: "roundTripMismatch",
	DecodeFailed:      "decodeFailed",
	EncodeFailed:      "encodeFailed",
}

func (o Outcome) String() string {
	return outcomeNames[o]
}

// Failed reports whether o should make a verification run fail.
func (o Outcome) Failed() bool {
	return o != RoundTripOK
}

// RoundTrip decodes data and encodes the result. For RoundTripMismatch, offset is the first
// byte at which the encoding differs from data; it is -1 otherwise.
func RoundTrip(data []byte) (outcome Outcome, offset int64, err error) {
	cls, err := classfile.Decode(data)
	if err != nil {
		return DecodeFailed, -1, err
	}
	encoded, err := cls.Encode()
	if err != nil {
		return EncodeFailed, -1, err
	}
	if offset := FirstDifference(data, encoded); offset >= 0 {
		return RoundTripMismatch, offset, nil
	}
	return RoundTripOK, -1, nil
}

// FirstDifference returns the index of the first byte at which a and b differ, or -1 when they
// are equal. When one is a prefix of the other, the length of the shorter one is returned.
func FirstDifference(a, b []byte) int64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int64(i)
		}
	}
	if len(a) != len(b) {
		return int64(n)
	}
	return -1
}
