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

// Names of the attributes that Resolve turns into typed info.
const (
	AttrConstantValue = "ConstantValue"
	AttrCode          = "Code"
	AttrExceptions    = "Exceptions"
)

// Kinds reported by AttributeInfo.Kind.
const (
	KindOpaque        = "opaque"
	KindConstantValue = "constantValue"
	KindCode          = "code"
	KindExceptions    = "exceptions"
)

// Attribute is a named, length-delimited record attached to a class, field, method or Code attribute.
//
// Info starts out as OpaqueInfo holding the raw payload. Resolve replaces it with a typed
// variant when the name is recognized and the payload parses completely.
type Attribute struct {
	NameIndex Index
	Info      AttributeInfo
}

// AttributeInfo is the payload of an attribute. The set of implementations is closed.
type AttributeInfo interface {
	Kind() string
	encode(w *binary.Writer) error
}

// OpaqueInfo is an attribute payload that has not been, or could not be, given a typed form.
type OpaqueInfo struct {
	Bytes []byte
}

// ConstantValueInfo is the body of a ConstantValue attribute.
type ConstantValueInfo struct {
	Index Index
}

// CodeInfo is the body of a Code attribute.
type CodeInfo struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
	Attributes     []Attribute
}

// ExceptionsInfo is the body of an Exceptions attribute.
type ExceptionsInfo struct {
	ExceptionIndexTable []Index
}

// ExceptionTableEntry is one handler range of a Code attribute. Offsets are raw code
// offsets. A CatchType of NoIndex catches every exception.
type ExceptionTableEntry struct {
	Start     uint16
	End       uint16
	Handler   uint16
	CatchType Index
}

func (OpaqueInfo) Kind() string        { return KindOpaque }
func (ConstantValueInfo) Kind() string { return KindConstantValue }
func (CodeInfo) Kind() string          { return KindCode }
func (ExceptionsInfo) Kind() string    { return KindExceptions }

// Resolve reinterprets an opaque payload using the attribute name found in pool.
//
// On failure the attribute is left untouched and the reason is returned; callers that
// decode whole classes ignore it so that one unknown or malformed attribute never stops
// the rest of the class from decoding. Already resolved attributes return nil.
func (a *Attribute) Resolve(pool *ConstantPool) error {
	opaque, ok := a.Info.(OpaqueInfo)
	if !ok {
		return nil
	}
	name, err := pool.Utf8(a.NameIndex)
	if err != nil {
		return errors.Wrap(err, "looking up attribute name")
	}
	r := binary.NewReader(opaque.Bytes)
	var info AttributeInfo
	switch name {
	case AttrConstantValue:
		info, err = readConstantValue(r)
	case AttrCode:
		info, err = readCode(r, pool)
	case AttrExceptions:
		info, err = readExceptions(r)
	default:
		return errors.Wrapf(ErrUnknownAttribute, "%q", name)
	}
	if err != nil {
		return errors.Wrapf(err, "decoding %s attribute", name)
	}
	if r.Remaining() != 0 {
		return errors.Wrapf(ErrTrailingBytes, "%s attribute has %d unread bytes", name, r.Remaining())
	}
	a.Info = info
	return nil
}

func resolveAll(attributes []Attribute, pool *ConstantPool) {
	for i := range attributes {
		_ = attributes[i].Resolve(pool)
	}
}

func readConstantValue(r *binary.Reader) (AttributeInfo, error) {
	idx, err := readIndex(r)
	if err != nil {
		return nil, err
	}
	return ConstantValueInfo{Index: idx}, nil
}

func readCode(r *binary.Reader, pool *ConstantPool) (AttributeInfo, error) {
	maxStack, err := r.ReadU16()
	if err != nil {
		return nil, errors.Wrap(err, "max_stack")
	}
	maxLocals, err := r.ReadU16()
	if err != nil {
		return nil, errors.Wrap(err, "max_locals")
	}
	codeLength, err := r.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "code_length")
	}
	if int64(codeLength) > int64(r.Remaining()) {
		return nil, errors.Wrapf(ErrTruncated, "code_length %d exceeds %d remaining bytes", codeLength, r.Remaining())
	}
	code, err := r.ReadBytes(int(codeLength))
	if err != nil {
		return nil, errors.Wrap(err, "code")
	}
	exceptionTable, err := readList(r, readExceptionTableEntry)
	if err != nil {
		return nil, errors.Wrap(err, "exception table")
	}
	attributes, err := readList(r, readAttribute)
	if err != nil {
		return nil, errors.Wrap(err, "nested attributes")
	}
	resolveAll(attributes, pool)
	return CodeInfo{
		MaxStack:       maxStack,
		MaxLocals:      maxLocals,
		Code:           code,
		ExceptionTable: exceptionTable,
		Attributes:     attributes,
	}, nil
}

func readExceptionTableEntry(r *binary.Reader) (ExceptionTableEntry, error) {
	var e ExceptionTableEntry
	var err error
	if e.Start, err = r.ReadU16(); err != nil {
		return e, err
	}
	if e.End, err = r.ReadU16(); err != nil {
		return e, err
	}
	if e.Handler, err = r.ReadU16(); err != nil {
		return e, err
	}
	// 0 is a catch-all handler, so catch_type is read as an optional index.
	if e.CatchType, err = readOptionalIndex(r); err != nil {
		return e, err
	}
	return e, nil
}

func readExceptions(r *binary.Reader) (AttributeInfo, error) {
	indices, err := readList(r, readIndex)
	if err != nil {
		return nil, err
	}
	return ExceptionsInfo{ExceptionIndexTable: indices}, nil
}

func (i OpaqueInfo) encode(w *binary.Writer) error {
	w.WriteBytes(i.Bytes)
	return nil
}

func (i ConstantValueInfo) encode(w *binary.Writer) error {
	w.WriteU16(uint16(i.Index))
	return nil
}

func (i CodeInfo) encode(w *binary.Writer) error {
	w.WriteU16(i.MaxStack)
	w.WriteU16(i.MaxLocals)
	if uint64(len(i.Code)) > maxU32 {
		return errors.Wrapf(ErrTooLarge, "code is %d bytes", len(i.Code))
	}
	w.WriteU32(uint32(len(i.Code)))
	w.WriteBytes(i.Code)
	if err := writeList(w, i.ExceptionTable, writeExceptionTableEntry); err != nil {
		return errors.Wrap(err, "exception table")
	}
	return errors.Wrap(writeList(w, i.Attributes, writeAttribute), "nested attributes")
}

func writeExceptionTableEntry(w *binary.Writer, e ExceptionTableEntry) error {
	w.WriteU16(e.Start)
	w.WriteU16(e.End)
	w.WriteU16(e.Handler)
	w.WriteU16(uint16(e.CatchType))
	return nil
}

func (i ExceptionsInfo) encode(w *binary.Writer) error {
	return writeList(w, i.ExceptionIndexTable, writeIndex)
}
