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

package classfile

import (
	"github.com/palantir/jclass/pkg/classfile/internal/binary"
	"github.com/pkg/errors"
)

var (
	// ErrTruncated is returned when the input ends before a value could be read.
	ErrTruncated = binary.ErrTruncated
	// ErrUnknownTag is returned for a constant pool tag byte outside the supported set.
	ErrUnknownTag = errors.New("unknown constant pool tag")
	// ErrUnknownReferenceKind is returned for a method handle kind outside 1-9.
	ErrUnknownReferenceKind = errors.New("unknown reference kind")
	// ErrInvalidAccessFlags is returned when access flags carry bits outside KnownAccessFlags.
	ErrInvalidAccessFlags = errors.New("invalid access flags")
	// ErrZeroIndex is returned when a required constant pool index is 0.
	ErrZeroIndex = errors.New("constant pool index must not be 0")
	// ErrNoEntry is returned when looking up an index that holds no constant.
	ErrNoEntry = errors.New("no constant pool entry")
	// ErrNotUtf8 is returned when an index is expected to hold a Utf8 constant but does not.
	ErrNotUtf8 = errors.New("constant pool entry is not Utf8")
	// ErrUnknownAttribute is returned by Resolve for attribute names without a typed form.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrTrailingBytes is returned by Resolve when a typed body does not consume its whole payload.
	ErrTrailingBytes = errors.New("trailing bytes after attribute body")
	// ErrTooLarge is returned by Encode when a length does not fit its prefix.
	ErrTooLarge = errors.New("value too large for its length prefix")
)
