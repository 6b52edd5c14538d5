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
	"strings"
	"unicode/utf8"

	"github.com/palantir/jclass/pkg/classfile/internal/binary"
	"github.com/pkg/errors"
)

// Decode parses a complete class file held in data and runs the attribute resolution pass.
//
// Structural problems (truncation, unknown constant tags or reference kinds, undefined
// access flag bits, a zero index where one is required) are returned as errors. Attribute
// resolution problems are not: such attributes keep their raw payload.
func Decode(data []byte) (*JavaClass, error) {
	r := binary.NewReader(data)
	c := &JavaClass{}
	var err error

	if c.Magic, err = r.ReadU32(); err != nil {
		return nil, errors.Wrap(err, "magic")
	}
	if c.MinorVersion, err = r.ReadU16(); err != nil {
		return nil, errors.Wrap(err, "minor version")
	}
	if c.MajorVersion, err = r.ReadU16(); err != nil {
		return nil, errors.Wrap(err, "major version")
	}
	if c.ConstantPool, err = readConstantPool(r); err != nil {
		return nil, errors.Wrap(err, "constant pool")
	}
	if c.AccessFlags, err = readAccessFlags(r); err != nil {
		return nil, errors.Wrap(err, "class access flags")
	}
	if c.ThisClass, err = readIndex(r); err != nil {
		return nil, errors.Wrap(err, "this_class")
	}
	if c.SuperClass, err = readOptionalIndex(r); err != nil {
		return nil, errors.Wrap(err, "super_class")
	}
	if c.Interfaces, err = readList(r, readIndex); err != nil {
		return nil, errors.Wrap(err, "interfaces")
	}
	if c.Fields, err = readList(r, readField); err != nil {
		return nil, errors.Wrap(err, "fields")
	}
	if c.Methods, err = readList(r, readMethod); err != nil {
		return nil, errors.Wrap(err, "methods")
	}
	if c.Attributes, err = readList(r, readAttribute); err != nil {
		return nil, errors.Wrap(err, "class attributes")
	}

	c.Resolve()
	return c, nil
}

// readList reads a u16 element count followed by that many elements.
func readList[T any](r *binary.Reader, read func(*binary.Reader) (T, error)) ([]T, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, errors.Wrap(err, "count")
	}
	items := make([]T, 0, count)
	for i := 0; i < int(count); i++ {
		item, err := read(r)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d of %d", i, count)
		}
		items = append(items, item)
	}
	return items, nil
}

func readIndex(r *binary.Reader) (Index, error) {
	v, err := r.ReadU16()
	if err != nil {
		return NoIndex, err
	}
	if v == 0 {
		return NoIndex, errors.Wrapf(ErrZeroIndex, "at offset %d", r.Position()-2)
	}
	return Index(v), nil
}

func readOptionalIndex(r *binary.Reader) (Index, error) {
	v, err := r.ReadU16()
	return Index(v), err
}

func readAccessFlags(r *binary.Reader) (AccessFlags, error) {
	v, err := r.ReadU16()
	if err != nil {
		return 0, err
	}
	flags := AccessFlags(v)
	if !flags.Valid() {
		return 0, errors.Wrapf(ErrInvalidAccessFlags, "0x%04x", v)
	}
	return flags, nil
}

func readReferenceKind(r *binary.Reader) (ReferenceKind, error) {
	v, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	kind := ReferenceKind(v)
	if !kind.Valid() {
		return 0, errors.Wrapf(ErrUnknownReferenceKind, "%d", v)
	}
	return kind, nil
}

func readConstantPool(r *binary.Reader) (*ConstantPool, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, errors.Wrap(err, "count")
	}
	pool := NewConstantPool()
	// int, so that a Long in the last slot cannot wrap the counter.
	for idx := 1; idx < int(count); {
		e, err := readEntry(r)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", idx)
		}
		pool.Put(Index(idx), e)
		idx += int(e.Width())
	}
	return pool, nil
}

func readEntry(r *binary.Reader) (Entry, error) {
	b, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	switch tag := Tag(b); tag {
	case TagUtf8:
		length, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		raw, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		return ConstantUtf8{Value: decodeUtf8(raw)}, nil
	case TagInteger:
		v, err := r.ReadI32()
		return ConstantInteger{Value: v}, err
	case TagFloat:
		v, err := r.ReadF32()
		return ConstantFloat{Value: v}, err
	case TagLong:
		v, err := r.ReadI64()
		return ConstantLong{Value: v}, err
	case TagDouble:
		v, err := r.ReadF64()
		return ConstantDouble{Value: v}, err
	case TagClass:
		name, err := readIndex(r)
		return ConstantClass{NameIndex: name}, err
	case TagString:
		s, err := readIndex(r)
		return ConstantString{StringIndex: s}, err
	case TagFieldRef, TagMethodRef, TagInterfaceMethodRef:
		class, err := readIndex(r)
		if err != nil {
			return nil, err
		}
		nameAndType, err := readIndex(r)
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagFieldRef:
			return ConstantFieldRef{ClassIndex: class, NameAndTypeIndex: nameAndType}, nil
		case TagMethodRef:
			return ConstantMethodRef{ClassIndex: class, NameAndTypeIndex: nameAndType}, nil
		default:
			return ConstantInterfaceMethodRef{ClassIndex: class, NameAndTypeIndex: nameAndType}, nil
		}
	case TagNameAndType:
		name, err := readIndex(r)
		if err != nil {
			return nil, err
		}
		descriptor, err := readIndex(r)
		return ConstantNameAndType{NameIndex: name, DescriptorIndex: descriptor}, err
	case TagMethodHandle:
		kind, err := readReferenceKind(r)
		if err != nil {
			return nil, err
		}
		ref, err := readIndex(r)
		return ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: ref}, err
	case TagMethodType:
		descriptor, err := readIndex(r)
		return ConstantMethodType{DescriptorIndex: descriptor}, err
	case TagInvokeDynamic:
		bootstrap, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		nameAndType, err := readIndex(r)
		return ConstantInvokeDynamic{BootstrapMethodAttrIndex: bootstrap, NameAndTypeIndex: nameAndType}, err
	default:
		return nil, errors.Wrapf(ErrUnknownTag, "%d at offset %d", b, r.Position()-1)
	}
}

// decodeUtf8 replaces each maximal invalid subsequence with U+FFFD rather than failing.
func decodeUtf8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	var sb strings.Builder
	sb.Grow(len(raw) + 2)
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			raw = raw[invalidSequenceLen(raw):]
			continue
		}
		sb.Write(raw[:size])
		raw = raw[size:]
	}
	return sb.String()
}

// invalidSequenceLen returns the length of the longest prefix of p that could still begin a
// well-formed sequence, and at least 1.
func invalidSequenceLen(p []byte) int {
	need := 0
	lo, hi := byte(0x80), byte(0xBF)
	switch b := p[0]; {
	case b >= 0xC2 && b <= 0xDF:
		need = 1
	case b == 0xE0:
		need, lo = 2, 0xA0
	case b >= 0xE1 && b <= 0xEC, b == 0xEE, b == 0xEF:
		need = 2
	case b == 0xED:
		need, hi = 2, 0x9F
	case b == 0xF0:
		need, lo = 3, 0x90
	case b >= 0xF1 && b <= 0xF3:
		need = 3
	case b == 0xF4:
		need, hi = 3, 0x8F
	default:
		return 1
	}
	n := 1
	for n <= need && n < len(p) && p[n] >= lo && p[n] <= hi {
		n++
		lo, hi = 0x80, 0xBF
	}
	return n
}

func readMemberHeader(r *binary.Reader) (AccessFlags, Index, Index, []Attribute, error) {
	flags, err := readAccessFlags(r)
	if err != nil {
		return 0, 0, 0, nil, errors.Wrap(err, "access flags")
	}
	name, err := readIndex(r)
	if err != nil {
		return 0, 0, 0, nil, errors.Wrap(err, "name index")
	}
	descriptor, err := readIndex(r)
	if err != nil {
		return 0, 0, 0, nil, errors.Wrap(err, "descriptor index")
	}
	attributes, err := readList(r, readAttribute)
	if err != nil {
		return 0, 0, 0, nil, errors.Wrap(err, "attributes")
	}
	return flags, name, descriptor, attributes, nil
}

func readField(r *binary.Reader) (Field, error) {
	flags, name, descriptor, attributes, err := readMemberHeader(r)
	return Field{AccessFlags: flags, NameIndex: name, DescriptorIndex: descriptor, Attributes: attributes}, err
}

func readMethod(r *binary.Reader) (Method, error) {
	flags, name, descriptor, attributes, err := readMemberHeader(r)
	return Method{AccessFlags: flags, NameIndex: name, DescriptorIndex: descriptor, Attributes: attributes}, err
}

// readAttribute reads an attribute header and keeps the payload opaque; see Attribute.Resolve.
func readAttribute(r *binary.Reader) (Attribute, error) {
	name, err := readIndex(r)
	if err != nil {
		return Attribute{}, errors.Wrap(err, "name index")
	}
	length, err := r.ReadU32()
	if err != nil {
		return Attribute{}, errors.Wrap(err, "length")
	}
	if int64(length) > int64(r.Remaining()) {
		return Attribute{}, errors.Wrapf(ErrTruncated, "attribute length %d exceeds %d remaining bytes", length, r.Remaining())
	}
	payload, err := r.ReadBytes(int(length))
	if err != nil {
		return Attribute{}, err
	}
	return Attribute{NameIndex: name, Info: OpaqueInfo{Bytes: payload}}, nil
}
