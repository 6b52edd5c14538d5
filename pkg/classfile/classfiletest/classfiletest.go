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

// Package classfiletest builds class file bytes by hand for tests, without going
// through the encoder under test.
package classfiletest

import (
	"encoding/binary"
	"math"
)

// Builder appends big-endian values.
type Builder struct {
	buf []byte
}

func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *Builder) U16(v uint16) *Builder {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
	return b
}

func (b *Builder) U32(v uint32) *Builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
	return b
}

func (b *Builder) U64(v uint64) *Builder {
	b.buf = binary.BigEndian.AppendUint64(b.buf, v)
	return b
}

func (b *Builder) Raw(p ...byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Utf8 appends a tagged Utf8 constant.
func (b *Builder) Utf8(s string) *Builder {
	return b.U8(1).U16(uint16(len(s))).Raw([]byte(s)...)
}

// Attribute appends an attribute header and payload.
func (b *Builder) Attribute(name uint16, payload []byte) *Builder {
	return b.U16(name).U32(uint32(len(payload))).Raw(payload...)
}

func (b *Builder) Bytes() []byte {
	return b.buf
}

// Constant pool indices used by HelloClass.
const (
	HelloName          = 1
	HelloClassIndex    = 2
	ObjectName         = 3
	ObjectClassIndex   = 4
	InitName           = 5
	VoidDescriptor     = 6
	CodeName           = 7
	InitNameAndType    = 8
	ObjectInitRef      = 9
	LineNumberName     = 10
	ValueFieldName     = 11
	LongDescriptor     = 12
	ConstantValueName  = 13
	LongConstant       = 14 // 15 is the skipped slot
	ExceptionsName     = 16
	IOExceptionName    = 17
	IOExceptionClass   = 18
	SourceFileName     = 19
	SourceFileValue    = 20
	DoubleConstant     = 21 // 22 is the skipped slot
	UnknownName        = 23
	HelloConstantCount = 24
)

// HelloCode is the bytecode of HelloClass's constructor: aload_0, invokespecial #9, return.
var HelloCode = []byte{0x2a, 0xb7, 0x00, ObjectInitRef, 0xb1}

// UnknownPayload is the payload of HelloClass's "UnknownXYZ" class attribute.
var UnknownPayload = []byte{0xde, 0xad, 0xbe, 0xef}

// LineNumberPayload is the payload of the LineNumberTable nested in the constructor's Code.
var LineNumberPayload = []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x01}

// HelloConstants appends the HelloClass constant pool, count included.
func HelloConstants(b *Builder) *Builder {
	b.U16(HelloConstantCount)
	b.Utf8("Hello")
	b.U8(7).U16(HelloName)
	b.Utf8("java/lang/Object")
	b.U8(7).U16(ObjectName)
	b.Utf8("<init>")
	b.Utf8("()V")
	b.Utf8("Code")
	b.U8(12).U16(InitName).U16(VoidDescriptor)
	b.U8(10).U16(ObjectClassIndex).U16(InitNameAndType)
	b.Utf8("LineNumberTable")
	b.Utf8("VALUE")
	b.Utf8("J")
	b.Utf8("ConstantValue")
	b.U8(5).U64(42)
	b.Utf8("Exceptions")
	b.Utf8("java/io/IOException")
	b.U8(7).U16(IOExceptionName)
	b.Utf8("SourceFile")
	b.Utf8("Hello.java")
	b.U8(6).U64(math.Float64bits(1.5))
	b.Utf8("UnknownXYZ")
	return b
}

// HelloCodePayload is the Code attribute body of the constructor. Its exception table has a
// catch-all entry and its nested attributes are a LineNumberTable and a ConstantValue.
func HelloCodePayload() []byte {
	b := &Builder{}
	b.U16(1).U16(1)
	b.U32(uint32(len(HelloCode))).Raw(HelloCode...)
	b.U16(1).U16(0).U16(4).U16(4).U16(0)
	b.U16(2)
	b.Attribute(LineNumberName, LineNumberPayload)
	b.Attribute(ConstantValueName, []byte{0x00, LongConstant})
	return b.Bytes()
}

// HelloClass returns a small but complete class file:
//
//	public class Hello {
//	    public static final long VALUE = 42L;
//	    public Hello() throws java.io.IOException { super(); }
//	}
//
// plus a SourceFile attribute and an "UnknownXYZ" class attribute.
func HelloClass() []byte {
	b := &Builder{}
	b.U32(0xCAFEBABE).U16(0).U16(52)
	HelloConstants(b)
	b.U16(0x0021).U16(HelloClassIndex).U16(ObjectClassIndex)
	b.U16(0)

	b.U16(1)
	b.U16(0x0019).U16(ValueFieldName).U16(LongDescriptor)
	b.U16(1).Attribute(ConstantValueName, []byte{0x00, LongConstant})

	b.U16(1)
	b.U16(0x0001).U16(InitName).U16(VoidDescriptor)
	b.U16(2)
	b.Attribute(CodeName, HelloCodePayload())
	b.Attribute(ExceptionsName, []byte{0x00, 0x01, 0x00, IOExceptionClass})

	b.U16(2)
	b.Attribute(SourceFileName, []byte{0x00, SourceFileValue})
	b.Attribute(UnknownName, UnknownPayload)
	return b.Bytes()
}

// Minimal returns a class with the constant pool written by constants (count included)
// and no interfaces, fields, methods or attributes.
func Minimal(constants func(b *Builder), accessFlags, thisClass, superClass uint16) []byte {
	b := &Builder{}
	b.U32(0xCAFEBABE).U16(0).U16(52)
	constants(b)
	b.U16(accessFlags).U16(thisClass).U16(superClass)
	b.U16(0).U16(0).U16(0).U16(0)
	return b.Bytes()
}
