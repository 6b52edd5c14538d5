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

package classfile_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/palantir/jclass/pkg/classfile"
	"github.com/palantir/jclass/pkg/classfile/classfiletest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHelloClass(t *testing.T) {
	cls, err := classfile.Decode(classfiletest.HelloClass())
	require.NoError(t, err)

	assert.Equal(t, classfile.Magic, cls.Magic)
	assert.Equal(t, uint16(52), cls.MajorVersion)
	assert.Equal(t, uint16(0), cls.MinorVersion)
	assert.Equal(t, classfile.AccPublic|classfile.AccSuper, cls.AccessFlags)
	assert.Empty(t, cls.Interfaces)

	name, err := cls.Name()
	require.NoError(t, err)
	assert.Equal(t, "Hello", name)
	superName, err := cls.SuperName()
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", superName)

	t.Run("constant pool", func(t *testing.T) {
		pool := cls.ConstantPool
		assert.Equal(t, 21, pool.Len())
		assert.Equal(t, classfiletest.HelloConstantCount, pool.Count())

		long, err := pool.Get(classfiletest.LongConstant)
		require.NoError(t, err)
		assert.Equal(t, classfile.ConstantLong{Value: 42}, long)
		double, err := pool.Get(classfiletest.DoubleConstant)
		require.NoError(t, err)
		assert.Equal(t, classfile.ConstantDouble{Value: 1.5}, double)

		for _, skipped := range []classfile.Index{classfiletest.LongConstant + 1, classfiletest.DoubleConstant + 1} {
			_, err := pool.Get(skipped)
			assert.True(t, errors.Is(err, classfile.ErrNoEntry), "index %d", skipped)
		}
		unknown, err := pool.Get(classfiletest.UnknownName)
		require.NoError(t, err)
		assert.Equal(t, classfile.ConstantUtf8{Value: "UnknownXYZ"}, unknown)

		ref, err := pool.Get(classfiletest.ObjectInitRef)
		require.NoError(t, err)
		assert.Equal(t, classfile.ConstantMethodRef{
			ClassIndex:       classfiletest.ObjectClassIndex,
			NameAndTypeIndex: classfiletest.InitNameAndType,
		}, ref)
	})

	t.Run("field attributes are resolved", func(t *testing.T) {
		require.Len(t, cls.Fields, 1)
		field := cls.Fields[0]
		assert.Equal(t, classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, field.AccessFlags)
		require.Len(t, field.Attributes, 1)
		assert.Equal(t, classfile.ConstantValueInfo{Index: classfiletest.LongConstant}, field.Attributes[0].Info)
	})

	t.Run("method attributes are resolved recursively", func(t *testing.T) {
		require.Len(t, cls.Methods, 1)
		method := cls.Methods[0]
		require.Len(t, method.Attributes, 2)

		code, ok := method.Code()
		require.True(t, ok)
		assert.Equal(t, uint16(1), code.MaxStack)
		assert.Equal(t, uint16(1), code.MaxLocals)
		assert.Equal(t, classfiletest.HelloCode, code.Code)
		assert.Equal(t, []classfile.ExceptionTableEntry{{Start: 0, End: 4, Handler: 4, CatchType: classfile.NoIndex}}, code.ExceptionTable)
		require.Len(t, code.Attributes, 2)
		assert.Equal(t, classfile.OpaqueInfo{Bytes: classfiletest.LineNumberPayload}, code.Attributes[0].Info)
		assert.Equal(t, classfile.ConstantValueInfo{Index: classfiletest.LongConstant}, code.Attributes[1].Info)

		assert.Equal(t, classfile.ExceptionsInfo{
			ExceptionIndexTable: []classfile.Index{classfiletest.IOExceptionClass},
		}, method.Attributes[1].Info)
	})

	t.Run("unrecognized class attributes stay opaque", func(t *testing.T) {
		require.Len(t, cls.Attributes, 2)
		assert.Equal(t, classfile.OpaqueInfo{Bytes: []byte{0x00, classfiletest.SourceFileValue}}, cls.Attributes[0].Info)
		assert.Equal(t, classfile.OpaqueInfo{Bytes: classfiletest.UnknownPayload}, cls.Attributes[1].Info)
		name, err := cls.AttributeName(cls.Attributes[1])
		require.NoError(t, err)
		assert.Equal(t, "UnknownXYZ", name)
	})
}

func TestRoundTrip(t *testing.T) {
	original := classfiletest.HelloClass()
	cls, err := classfile.Decode(original)
	require.NoError(t, err)

	encoded, err := cls.Encode()
	require.NoError(t, err)
	assert.Equal(t, original, encoded)

	again, err := classfile.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, cls, again)
}

func TestRoundTripWithoutResolution(t *testing.T) {
	cls, err := classfile.Decode(classfiletest.HelloClass())
	require.NoError(t, err)
	for i := range cls.Methods {
		for j := range cls.Methods[i].Attributes {
			a := &cls.Methods[i].Attributes[j]
			if name, _ := cls.AttributeName(*a); name == classfile.AttrCode {
				a.Info = classfile.OpaqueInfo{Bytes: classfiletest.HelloCodePayload()}
			}
		}
	}
	encoded, err := cls.Encode()
	require.NoError(t, err)
	assert.Equal(t, classfiletest.HelloClass(), encoded)
}

func TestConstantPoolIndexing(t *testing.T) {
	t.Run("narrow entries take consecutive indices", func(t *testing.T) {
		data := classfiletest.Minimal(func(b *classfiletest.Builder) {
			b.U16(5)
			b.Utf8("Code")
			b.Utf8("ConstantValue")
			b.U8(7).U16(1)
			b.U8(3).U32(7)
		}, 0x0021, 3, 0)
		cls, err := classfile.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, []classfile.Index{1, 2, 3, 4}, cls.ConstantPool.Indices())

		encoded, err := cls.Encode()
		require.NoError(t, err)
		assert.Equal(t, data, encoded)
		assert.Equal(t, []byte{0x00, 0x05, 0x01}, encoded[8:11])
	})

	t.Run("long skips the following index", func(t *testing.T) {
		data := classfiletest.Minimal(func(b *classfiletest.Builder) {
			b.U16(7)
			b.Utf8("A")
			b.U8(7).U16(1)
			b.Utf8("B")
			b.U8(5).U64(math.MaxUint64)
			b.U8(7).U16(3)
		}, 0x0021, 2, 6)
		cls, err := classfile.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, []classfile.Index{1, 2, 3, 4, 6}, cls.ConstantPool.Indices())

		_, err = cls.ConstantPool.Get(5)
		assert.True(t, errors.Is(err, classfile.ErrNoEntry))
		long, err := cls.ConstantPool.Get(4)
		require.NoError(t, err)
		assert.Equal(t, classfile.ConstantLong{Value: -1}, long)
		superName, err := cls.SuperName()
		require.NoError(t, err)
		assert.Equal(t, "B", superName)

		encoded, err := cls.Encode()
		require.NoError(t, err)
		assert.Equal(t, data, encoded)
	})

	t.Run("add assigns indices by width", func(t *testing.T) {
		pool := classfile.NewConstantPool()
		assert.Equal(t, classfile.Index(1), pool.Add(classfile.ConstantDouble{Value: 2}))
		assert.Equal(t, classfile.Index(3), pool.Add(classfile.ConstantUtf8{Value: "x"}))
		assert.Equal(t, classfile.Index(4), pool.Add(classfile.ConstantLong{Value: 1}))
		assert.Equal(t, classfile.Index(6), pool.Add(classfile.ConstantInteger{Value: 1}))
		assert.Equal(t, 7, pool.Count())
		assert.Equal(t, 4, pool.Len())
	})

	t.Run("every tag decodes and re-encodes", func(t *testing.T) {
		data := classfiletest.Minimal(func(b *classfiletest.Builder) {
			b.U16(18)
			b.Utf8("C")                          // 1
			b.U8(7).U16(1)                       // 2
			b.U8(3).U32(0xFFFFFFFF)              // 3
			b.U8(4).U32(math.Float32bits(2.5))   // 4
			b.U8(8).U16(1)                       // 5
			b.U8(12).U16(1).U16(1)               // 6
			b.U8(9).U16(2).U16(6)                // 7
			b.U8(10).U16(2).U16(6)               // 8
			b.U8(11).U16(2).U16(6)               // 9
			b.U8(15).U8(6).U16(8)                // 10
			b.U8(16).U16(1)                      // 11
			b.U8(18).U16(0).U16(6)               // 12
			b.U8(6).U64(math.Float64bits(-0.25)) // 13, 14
			b.U8(5).U64(1)                       // 15, 16
			b.U8(4).U32(0x7FC00001)              // 17
		}, 0x0001, 2, 0)
		cls, err := classfile.Decode(data)
		require.NoError(t, err)

		pool := cls.ConstantPool
		expected := map[classfile.Index]classfile.Entry{
			1:  classfile.ConstantUtf8{Value: "C"},
			2:  classfile.ConstantClass{NameIndex: 1},
			3:  classfile.ConstantInteger{Value: -1},
			4:  classfile.ConstantFloat{Value: 2.5},
			5:  classfile.ConstantString{StringIndex: 1},
			6:  classfile.ConstantNameAndType{NameIndex: 1, DescriptorIndex: 1},
			7:  classfile.ConstantFieldRef{ClassIndex: 2, NameAndTypeIndex: 6},
			8:  classfile.ConstantMethodRef{ClassIndex: 2, NameAndTypeIndex: 6},
			9:  classfile.ConstantInterfaceMethodRef{ClassIndex: 2, NameAndTypeIndex: 6},
			10: classfile.ConstantMethodHandle{ReferenceKind: classfile.RefInvokeStatic, ReferenceIndex: 8},
			11: classfile.ConstantMethodType{DescriptorIndex: 1},
			12: classfile.ConstantInvokeDynamic{BootstrapMethodAttrIndex: 0, NameAndTypeIndex: 6},
			13: classfile.ConstantDouble{Value: -0.25},
			15: classfile.ConstantLong{Value: 1},
		}
		for idx, want := range expected {
			got, err := pool.Get(idx)
			require.NoError(t, err, "index %d", idx)
			assert.Equal(t, want, got, "index %d", idx)
		}
		nan, err := pool.Get(17)
		require.NoError(t, err)
		assert.Equal(t, uint32(0x7FC00001), math.Float32bits(nan.(classfile.ConstantFloat).Value))

		encoded, err := cls.Encode()
		require.NoError(t, err)
		assert.Equal(t, data, encoded)
	})
}

func TestUtf8IsDecodedPermissively(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  []byte
		want string
	}{
		{name: "valid", raw: []byte("a\u00e9b"), want: "a\u00e9b"},
		{name: "single invalid byte", raw: []byte{'a', 0xFF, 'b'}, want: "a\uFFFDb"},
		{name: "adjacent invalid bytes", raw: []byte{'a', 0xFF, 0xFE, 'b'}, want: "a\uFFFD\uFFFDb"},
		{name: "truncated sequence", raw: []byte{'a', 0xE2, 0x82, 'b'}, want: "a\uFFFDb"},
		{name: "truncated sequence at end", raw: []byte{'a', 0xF0, 0x9F, 0x98}, want: "a\uFFFD"},
		{name: "truncated sequence then invalid byte", raw: []byte{0xE2, 0x82, 0xFF}, want: "\uFFFD\uFFFD"},
		{name: "surrogate", raw: []byte{'a', 0xED, 0xA0, 0x80, 'b'}, want: "a\uFFFD\uFFFD\uFFFDb"},
		{name: "overlong nul", raw: []byte{0xC0, 0x80}, want: "\uFFFD\uFFFD"},
		{name: "stray continuation bytes", raw: []byte{0x80, 0xBF}, want: "\uFFFD\uFFFD"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data := classfiletest.Minimal(func(b *classfiletest.Builder) {
				b.U16(3)
				b.U8(1).U16(uint16(len(tc.raw))).Raw(tc.raw...)
				b.U8(7).U16(1)
			}, 0x0021, 2, 0)
			cls, err := classfile.Decode(data)
			require.NoError(t, err)
			name, err := cls.Name()
			require.NoError(t, err)
			assert.Equal(t, tc.want, name)
		})
	}
}

func TestSuperClassIsOptional(t *testing.T) {
	data := classfiletest.Minimal(func(b *classfiletest.Builder) {
		b.U16(3)
		b.Utf8("java/lang/Object")
		b.U8(7).U16(1)
	}, 0x0021, 2, 0)
	cls, err := classfile.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, classfile.NoIndex, cls.SuperClass)
	superName, err := cls.SuperName()
	require.NoError(t, err)
	assert.Equal(t, "", superName)

	encoded, err := cls.Encode()
	require.NoError(t, err)
	assert.Equal(t, data, encoded)
}

func TestDecodeFatalErrors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		data      []byte
		expectErr error
	}{
		{
			name: "unknown constant pool tag",
			data: classfiletest.Minimal(func(b *classfiletest.Builder) {
				b.U16(2).U8(2).U16(0)
			}, 0x0021, 1, 0),
			expectErr: classfile.ErrUnknownTag,
		},
		{
			name: "unknown reference kind",
			data: classfiletest.Minimal(func(b *classfiletest.Builder) {
				b.U16(2).U8(15).U8(10).U16(1)
			}, 0x0021, 1, 0),
			expectErr: classfile.ErrUnknownReferenceKind,
		},
		{
			name: "undefined access flag bit",
			data: classfiletest.Minimal(func(b *classfiletest.Builder) {
				b.U16(3).Utf8("A").U8(7).U16(1)
			}, 0x8000, 2, 0),
			expectErr: classfile.ErrInvalidAccessFlags,
		},
		{
			name: "zero this_class",
			data: classfiletest.Minimal(func(b *classfiletest.Builder) {
				b.U16(1)
			}, 0x0021, 0, 0),
			expectErr: classfile.ErrZeroIndex,
		},
		{
			name: "zero index inside a constant",
			data: classfiletest.Minimal(func(b *classfiletest.Builder) {
				b.U16(2).U8(7).U16(0)
			}, 0x0021, 1, 0),
			expectErr: classfile.ErrZeroIndex,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := classfile.Decode(tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.expectErr), "unexpected error: %v", err)
		})
	}
}

func TestDecodeTruncatedInput(t *testing.T) {
	data := classfiletest.HelloClass()
	for n := 0; n < len(data); n++ {
		_, err := classfile.Decode(data[:n])
		require.Error(t, err, "prefix of %d bytes", n)
		require.True(t, errors.Is(err, classfile.ErrTruncated), "prefix of %d bytes: %v", n, err)
	}
}

func TestParse(t *testing.T) {
	cls, err := classfile.Parse(bytes.NewReader(classfiletest.HelloClass()))
	require.NoError(t, err)
	assert.Len(t, cls.Methods, 1)
}

func TestWriteAndParseFile(t *testing.T) {
	cls, err := classfile.Decode(classfiletest.HelloClass())
	require.NoError(t, err)
	path := t.TempDir() + "/Hello.class"
	require.NoError(t, cls.WriteFile(path))

	read, err := classfile.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, cls, read)

	_, err = classfile.ParseFile(t.TempDir() + "/missing.class")
	assert.Error(t, err)
}

func TestClassWithoutConstantPool(t *testing.T) {
	cls := &classfile.JavaClass{
		ThisClass:  1,
		SuperClass: 2,
		Attributes: []classfile.Attribute{{NameIndex: 1, Info: classfile.OpaqueInfo{Bytes: []byte{0x01}}}},
	}
	cls.Resolve()
	assert.Equal(t, classfile.OpaqueInfo{Bytes: []byte{0x01}}, cls.Attributes[0].Info)

	_, err := cls.Name()
	assert.ErrorIs(t, err, classfile.ErrNoEntry)
	_, err = cls.SuperName()
	assert.ErrorIs(t, err, classfile.ErrNoEntry)
	_, err = cls.AttributeName(cls.Attributes[0])
	assert.ErrorIs(t, err, classfile.ErrNoEntry)
}
