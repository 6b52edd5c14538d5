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
	"math"

	"github.com/palantir/jclass/pkg/classfile/internal/binary"
	"github.com/pkg/errors"
)

const maxU32 = math.MaxUint32

// Encode serializes c. Every count and length prefix is recomputed from the current
// structure, so edited trees encode consistently. Attributes still holding OpaqueInfo are
// written back verbatim.
func (c *JavaClass) Encode() ([]byte, error) {
	w := binary.NewWriter()
	w.WriteU32(c.Magic)
	w.WriteU16(c.MinorVersion)
	w.WriteU16(c.MajorVersion)
	if err := writeConstantPool(w, c.pool()); err != nil {
		return nil, errors.Wrap(err, "constant pool")
	}
	w.WriteU16(uint16(c.AccessFlags))
	w.WriteU16(uint16(c.ThisClass))
	w.WriteU16(uint16(c.SuperClass))
	if err := writeList(w, c.Interfaces, writeIndex); err != nil {
		return nil, errors.Wrap(err, "interfaces")
	}
	if err := writeList(w, c.Fields, writeField); err != nil {
		return nil, errors.Wrap(err, "fields")
	}
	if err := writeList(w, c.Methods, writeMethod); err != nil {
		return nil, errors.Wrap(err, "methods")
	}
	if err := writeList(w, c.Attributes, writeAttribute); err != nil {
		return nil, errors.Wrap(err, "class attributes")
	}
	return w.Bytes(), nil
}

// writeList writes a u16 element count followed by each element.
func writeList[T any](w *binary.Writer, items []T, write func(*binary.Writer, T) error) error {
	if len(items) > math.MaxUint16 {
		return errors.Wrapf(ErrTooLarge, "%d elements", len(items))
	}
	w.WriteU16(uint16(len(items)))
	for i, item := range items {
		if err := write(w, item); err != nil {
			return errors.Wrapf(err, "element %d", i)
		}
	}
	return nil
}

func writeIndex(w *binary.Writer, idx Index) error {
	w.WriteU16(uint16(idx))
	return nil
}

// writeConstantPool writes the width-weighted count, then the entries in index order.
func writeConstantPool(w *binary.Writer, pool *ConstantPool) error {
	count := pool.Count()
	if count > math.MaxUint16 {
		return errors.Wrapf(ErrTooLarge, "constant pool count %d", count)
	}
	w.WriteU16(uint16(count))
	for _, idx := range pool.Indices() {
		e, _ := pool.Get(idx)
		if err := writeEntry(w, e); err != nil {
			return errors.Wrapf(err, "entry %d", uint16(idx))
		}
	}
	return nil
}

func writeEntry(w *binary.Writer, e Entry) error {
	w.WriteU8(uint8(e.Tag()))
	switch v := e.(type) {
	case ConstantUtf8:
		if len(v.Value) > math.MaxUint16 {
			return errors.Wrapf(ErrTooLarge, "Utf8 constant of %d bytes", len(v.Value))
		}
		w.WriteU16(uint16(len(v.Value)))
		w.WriteBytes([]byte(v.Value))
	case ConstantInteger:
		w.WriteI32(v.Value)
	case ConstantFloat:
		w.WriteF32(v.Value)
	case ConstantLong:
		w.WriteI64(v.Value)
	case ConstantDouble:
		w.WriteF64(v.Value)
	case ConstantClass:
		w.WriteU16(uint16(v.NameIndex))
	case ConstantString:
		w.WriteU16(uint16(v.StringIndex))
	case ConstantFieldRef:
		w.WriteU16(uint16(v.ClassIndex))
		w.WriteU16(uint16(v.NameAndTypeIndex))
	case ConstantMethodRef:
		w.WriteU16(uint16(v.ClassIndex))
		w.WriteU16(uint16(v.NameAndTypeIndex))
	case ConstantInterfaceMethodRef:
		w.WriteU16(uint16(v.ClassIndex))
		w.WriteU16(uint16(v.NameAndTypeIndex))
	case ConstantNameAndType:
		w.WriteU16(uint16(v.NameIndex))
		w.WriteU16(uint16(v.DescriptorIndex))
	case ConstantMethodHandle:
		w.WriteU8(uint8(v.ReferenceKind))
		w.WriteU16(uint16(v.ReferenceIndex))
	case ConstantMethodType:
		w.WriteU16(uint16(v.DescriptorIndex))
	case ConstantInvokeDynamic:
		w.WriteU16(v.BootstrapMethodAttrIndex)
		w.WriteU16(uint16(v.NameAndTypeIndex))
	default:
		return errors.Wrapf(ErrUnknownTag, "%T", e)
	}
	return nil
}

func writeField(w *binary.Writer, f Field) error {
	return writeMember(w, f.AccessFlags, f.NameIndex, f.DescriptorIndex, f.Attributes)
}

func writeMethod(w *binary.Writer, m Method) error {
	return writeMember(w, m.AccessFlags, m.NameIndex, m.DescriptorIndex, m.Attributes)
}

func writeMember(w *binary.Writer, flags AccessFlags, name, descriptor Index, attributes []Attribute) error {
	w.WriteU16(uint16(flags))
	w.WriteU16(uint16(name))
	w.WriteU16(uint16(descriptor))
	return errors.Wrap(writeList(w, attributes, writeAttribute), "attributes")
}

// writeAttribute encodes the info into a scratch buffer first because its length
// prefix precedes it.
func writeAttribute(w *binary.Writer, a Attribute) error {
	if a.Info == nil {
		return errors.Errorf("attribute %d has no info", uint16(a.NameIndex))
	}
	scratch := binary.NewWriter()
	if err := a.Info.encode(scratch); err != nil {
		return err
	}
	if uint64(scratch.Len()) > maxU32 {
		return errors.Wrapf(ErrTooLarge, "attribute of %d bytes", scratch.Len())
	}
	w.WriteU16(uint16(a.NameIndex))
	w.WriteU32(uint32(scratch.Len()))
	w.WriteBytes(scratch.Bytes())
	return nil
}
