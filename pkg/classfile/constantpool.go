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
	"sort"

	"github.com/pkg/errors"
)

// Tag identifies the kind of a constant pool entry on the wire.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldRef           Tag = 9
	TagMethodRef          Tag = 10
	TagInterfaceMethodRef Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagInvokeDynamic      Tag = 18
)

var tagNames = map[Tag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldRef:           "FieldRef",
	TagMethodRef:          "MethodRef",
	TagInterfaceMethodRef: "InterfaceMethodRef",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagInvokeDynamic:      "InvokeDynamic",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "Unknown"
}

// TagByName returns the tag whose String form is name.
func TagByName(name string) (Tag, bool) {
	for tag, n := range tagNames {
		if n == name {
			return tag, true
		}
	}
	return 0, false
}

// Entry is a single constant. The set of implementations is closed.
type Entry interface {
	Tag() Tag
	// Width is the number of index slots the entry occupies: 2 for Long and Double, 1 otherwise.
	Width() uint16
}

type ConstantUtf8 struct {
	Value string
}

type ConstantInteger struct {
	Value int32
}

type ConstantFloat struct {
	Value float32
}

type ConstantLong struct {
	Value int64
}

type ConstantDouble struct {
	Value float64
}

type ConstantClass struct {
	NameIndex Index
}

type ConstantString struct {
	StringIndex Index
}

type ConstantFieldRef struct {
	ClassIndex       Index
	NameAndTypeIndex Index
}

type ConstantMethodRef struct {
	ClassIndex       Index
	NameAndTypeIndex Index
}

type ConstantInterfaceMethodRef struct {
	ClassIndex       Index
	NameAndTypeIndex Index
}

type ConstantNameAndType struct {
	NameIndex       Index
	DescriptorIndex Index
}

type ConstantMethodHandle struct {
	ReferenceKind  ReferenceKind
	ReferenceIndex Index
}

type ConstantMethodType struct {
	DescriptorIndex Index
}

// ConstantInvokeDynamic refers to the bootstrap methods table by position, not through the pool,
// so BootstrapMethodAttrIndex may legitimately be 0.
type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         Index
}

func (ConstantUtf8) Tag() Tag               { return TagUtf8 }
func (ConstantInteger) Tag() Tag            { return TagInteger }
func (ConstantFloat) Tag() Tag              { return TagFloat }
func (ConstantLong) Tag() Tag               { return TagLong }
func (ConstantDouble) Tag() Tag             { return TagDouble }
func (ConstantClass) Tag() Tag              { return TagClass }
func (ConstantString) Tag() Tag             { return TagString }
func (ConstantFieldRef) Tag() Tag           { return TagFieldRef }
func (ConstantMethodRef) Tag() Tag          { return TagMethodRef }
func (ConstantInterfaceMethodRef) Tag() Tag { return TagInterfaceMethodRef }
func (ConstantNameAndType) Tag() Tag        { return TagNameAndType }
func (ConstantMethodHandle) Tag() Tag       { return TagMethodHandle }
func (ConstantMethodType) Tag() Tag         { return TagMethodType }
func (ConstantInvokeDynamic) Tag() Tag      { return TagInvokeDynamic }

func (ConstantUtf8) Width() uint16               { return 1 }
func (ConstantInteger) Width() uint16            { return 1 }
func (ConstantFloat) Width() uint16              { return 1 }
func (ConstantLong) Width() uint16               { return 2 }
func (ConstantDouble) Width() uint16             { return 2 }
func (ConstantClass) Width() uint16              { return 1 }
func (ConstantString) Width() uint16             { return 1 }
func (ConstantFieldRef) Width() uint16           { return 1 }
func (ConstantMethodRef) Width() uint16          { return 1 }
func (ConstantInterfaceMethodRef) Width() uint16 { return 1 }
func (ConstantNameAndType) Width() uint16        { return 1 }
func (ConstantMethodHandle) Width() uint16       { return 1 }
func (ConstantMethodType) Width() uint16         { return 1 }
func (ConstantInvokeDynamic) Width() uint16      { return 1 }

// ConstantPool maps indices to constants. Indices start at 1; the index following a
// Long or Double is never populated.
type ConstantPool struct {
	entries map[Index]Entry
	next    Index
}

// NewConstantPool returns an empty pool whose first Add lands at index 1.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make(map[Index]Entry), next: 1}
}

// Add stores e at the next free index and returns that index.
func (p *ConstantPool) Add(e Entry) Index {
	p.init()
	idx := p.next
	p.entries[idx] = e
	p.next += Index(e.Width())
	return idx
}

// Put stores e at idx, replacing any existing entry. Used when rebuilding a pool whose
// indices are already known.
func (p *ConstantPool) Put(idx Index, e Entry) {
	p.init()
	p.entries[idx] = e
	if end := idx + Index(e.Width()); end > p.next {
		p.next = end
	}
}

func (p *ConstantPool) init() {
	if p.entries == nil {
		p.entries = make(map[Index]Entry)
	}
	if p.next == 0 {
		p.next = 1
	}
}

// Get returns the entry at idx.
func (p *ConstantPool) Get(idx Index) (Entry, error) {
	e, ok := p.entries[idx]
	if !ok {
		return nil, errors.Wrapf(ErrNoEntry, "index %d", uint16(idx))
	}
	return e, nil
}

// Utf8 returns the text of the Utf8 constant at idx.
func (p *ConstantPool) Utf8(idx Index) (string, error) {
	e, err := p.Get(idx)
	if err != nil {
		return "", err
	}
	u, ok := e.(ConstantUtf8)
	if !ok {
		return "", errors.Wrapf(ErrNotUtf8, "index %d holds %s", uint16(idx), e.Tag())
	}
	return u.Value, nil
}

// ClassName returns the name referenced by the Class constant at idx.
func (p *ConstantPool) ClassName(idx Index) (string, error) {
	e, err := p.Get(idx)
	if err != nil {
		return "", err
	}
	c, ok := e.(ConstantClass)
	if !ok {
		return "", errors.Errorf("index %d holds %s, not Class", uint16(idx), e.Tag())
	}
	return p.Utf8(c.NameIndex)
}

// Indices returns the populated indices in ascending order.
func (p *ConstantPool) Indices() []Index {
	indices := make([]Index, 0, len(p.entries))
	for idx := range p.entries {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// Len returns the number of stored entries.
func (p *ConstantPool) Len() int {
	return len(p.entries)
}

// Count returns the on-wire constant_pool_count: one plus the sum of every entry's width.
func (p *ConstantPool) Count() int {
	count := 1
	for _, e := range p.entries {
		count += int(e.Width())
	}
	return count
}
