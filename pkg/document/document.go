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

// Package document projects a decoded class onto a plain tree of exported fields that
// can be written as JSON, YAML or CBOR and rebuilt into an encodable class.
package document

import (
	"encoding/hex"
	"math"

	"github.com/palantir/jclass/pkg/classfile"
	"github.com/pkg/errors"
)

// Class mirrors classfile.JavaClass. Index fields hold raw constant pool indices; 0 is absent.
type Class struct {
	Magic        uint32      `json:"magic" yaml:"magic"`
	MinorVersion uint16      `json:"minorVersion" yaml:"minorVersion"`
	MajorVersion uint16      `json:"majorVersion" yaml:"majorVersion"`
	ConstantPool []Constant  `json:"constantPool" yaml:"constantPool"`
	AccessFlags  uint16      `json:"accessFlags" yaml:"accessFlags"`
	ThisClass    uint16      `json:"thisClass" yaml:"thisClass"`
	SuperClass   uint16      `json:"superClass,omitempty" yaml:"superClass,omitempty"`
	Interfaces   []uint16    `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Fields       []Member    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Methods      []Member    `json:"methods,omitempty" yaml:"methods,omitempty"`
	Attributes   []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Constant is one constant pool entry. Tag selects which of the remaining fields apply.
// Float and Double values are stored as their IEEE 754 bits so that every NaN payload
// survives the trip through text formats.
type Constant struct {
	Index         uint16 `json:"index" yaml:"index"`
	Tag           string `json:"tag" yaml:"tag"`
	Text          string `json:"text,omitempty" yaml:"text,omitempty"`
	Int           int64  `json:"int,omitempty" yaml:"int,omitempty"`
	Bits          uint64 `json:"bits,omitempty" yaml:"bits,omitempty"`
	Class         uint16 `json:"class,omitempty" yaml:"class,omitempty"`
	Name          uint16 `json:"name,omitempty" yaml:"name,omitempty"`
	Descriptor    uint16 `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	NameAndType   uint16 `json:"nameAndType,omitempty" yaml:"nameAndType,omitempty"`
	String        uint16 `json:"string,omitempty" yaml:"string,omitempty"`
	ReferenceKind string `json:"referenceKind,omitempty" yaml:"referenceKind,omitempty"`
	Reference     uint16 `json:"reference,omitempty" yaml:"reference,omitempty"`
	Bootstrap     uint16 `json:"bootstrap,omitempty" yaml:"bootstrap,omitempty"`
}

// Member is a field or a method.
type Member struct {
	AccessFlags uint16      `json:"accessFlags" yaml:"accessFlags"`
	Name        uint16      `json:"name" yaml:"name"`
	Descriptor  uint16      `json:"descriptor" yaml:"descriptor"`
	Attributes  []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Attribute carries one of the payload forms, selected by Kind. Bytes is lowercase hex.
type Attribute struct {
	Name       uint16   `json:"name" yaml:"name"`
	Kind       string   `json:"kind" yaml:"kind"`
	Bytes      string   `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Value      uint16   `json:"value,omitempty" yaml:"value,omitempty"`
	Code       *Code    `json:"code,omitempty" yaml:"code,omitempty"`
	Exceptions []uint16 `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
}

// Code is the resolved body of a Code attribute.
type Code struct {
	MaxStack       uint16      `json:"maxStack" yaml:"maxStack"`
	MaxLocals      uint16      `json:"maxLocals" yaml:"maxLocals"`
	Bytecode       string      `json:"bytecode" yaml:"bytecode"`
	ExceptionTable []Handler   `json:"exceptionTable,omitempty" yaml:"exceptionTable,omitempty"`
	Attributes     []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Handler is an exception table entry. CatchType 0 catches everything.
type Handler struct {
	Start     uint16 `json:"start" yaml:"start"`
	End       uint16 `json:"end" yaml:"end"`
	Handler   uint16 `json:"handler" yaml:"handler"`
	CatchType uint16 `json:"catchType,omitempty" yaml:"catchType,omitempty"`
}

// FromClass projects c. The constant pool is listed in ascending index order.
func FromClass(c *classfile.JavaClass) Class {
	doc := Class{
		Magic:        c.Magic,
		MinorVersion: c.MinorVersion,
		MajorVersion: c.MajorVersion,
		AccessFlags:  uint16(c.AccessFlags),
		ThisClass:    uint16(c.ThisClass),
		SuperClass:   uint16(c.SuperClass),
		Interfaces:   fromIndices(c.Interfaces),
		Attributes:   fromAttributes(c.Attributes),
	}
	if c.ConstantPool != nil {
		for _, idx := range c.ConstantPool.Indices() {
			e, _ := c.ConstantPool.Get(idx)
			doc.ConstantPool = append(doc.ConstantPool, fromEntry(idx, e))
		}
	}
	for _, f := range c.Fields {
		doc.Fields = append(doc.Fields, Member{
			AccessFlags: uint16(f.AccessFlags),
			Name:        uint16(f.NameIndex),
			Descriptor:  uint16(f.DescriptorIndex),
			Attributes:  fromAttributes(f.Attributes),
		})
	}
	for _, m := range c.Methods {
		doc.Methods = append(doc.Methods, Member{
			AccessFlags: uint16(m.AccessFlags),
			Name:        uint16(m.NameIndex),
			Descriptor:  uint16(m.DescriptorIndex),
			Attributes:  fromAttributes(m.Attributes),
		})
	}
	return doc
}

func fromIndices(indices []classfile.Index) []uint16 {
	var out []uint16
	for _, idx := range indices {
		out = append(out, uint16(idx))
	}
	return out
}

func fromEntry(idx classfile.Index, e classfile.Entry) Constant {
	out := Constant{Index: uint16(idx), Tag: e.Tag().String()}
	switch v := e.(type) {
	case classfile.ConstantUtf8:
		out.Text = v.Value
	case classfile.ConstantInteger:
		out.Int = int64(v.Value)
	case classfile.ConstantFloat:
		out.Bits = uint64(math.Float32bits(v.Value))
	case classfile.ConstantLong:
		out.Int = v.Value
	case classfile.ConstantDouble:
		out.Bits = math.Float64bits(v.Value)
	case classfile.ConstantClass:
		out.Name = uint16(v.NameIndex)
	case classfile.ConstantString:
		out.String = uint16(v.StringIndex)
	case classfile.ConstantFieldRef:
		out.Class, out.NameAndType = uint16(v.ClassIndex), uint16(v.NameAndTypeIndex)
	case classfile.ConstantMethodRef:
		out.Class, out.NameAndType = uint16(v.ClassIndex), uint16(v.NameAndTypeIndex)
	case classfile.ConstantInterfaceMethodRef:
		out.Class, out.NameAndType = uint16(v.ClassIndex), uint16(v.NameAndTypeIndex)
	case classfile.ConstantNameAndType:
		out.Name, out.Descriptor = uint16(v.NameIndex), uint16(v.DescriptorIndex)
	case classfile.ConstantMethodHandle:
		out.ReferenceKind, out.Reference = v.ReferenceKind.String(), uint16(v.ReferenceIndex)
	case classfile.ConstantMethodType:
		out.Descriptor = uint16(v.DescriptorIndex)
	case classfile.ConstantInvokeDynamic:
		out.Bootstrap, out.NameAndType = v.BootstrapMethodAttrIndex, uint16(v.NameAndTypeIndex)
	}
	return out
}

func fromAttributes(attributes []classfile.Attribute) []Attribute {
	var out []Attribute
	for _, a := range attributes {
		doc := Attribute{Name: uint16(a.NameIndex)}
		switch info := a.Info.(type) {
		case classfile.OpaqueInfo:
			doc.Kind = classfile.KindOpaque
			doc.Bytes = hex.EncodeToString(info.Bytes)
		case classfile.ConstantValueInfo:
			doc.Kind = classfile.KindConstantValue
			doc.Value = uint16(info.Index)
		case classfile.CodeInfo:
			doc.Kind = classfile.KindCode
			doc.Code = &Code{
				MaxStack:   info.MaxStack,
				MaxLocals:  info.MaxLocals,
				Bytecode:   hex.EncodeToString(info.Code),
				Attributes: fromAttributes(info.Attributes),
			}
			for _, h := range info.ExceptionTable {
				doc.Code.ExceptionTable = append(doc.Code.ExceptionTable, Handler{
					Start:     h.Start,
					End:       h.End,
					Handler:   h.Handler,
					CatchType: uint16(h.CatchType),
				})
			}
		case classfile.ExceptionsInfo:
			doc.Kind = classfile.KindExceptions
			doc.Exceptions = fromIndices(info.ExceptionIndexTable)
		}
		out = append(out, doc)
	}
	return out
}

// ToClass rebuilds the class tree. Attribute kinds are restored as written; no resolution
// pass is run.
func (d Class) ToClass() (*classfile.JavaClass, error) {
	c := &classfile.JavaClass{
		Magic:        d.Magic,
		MinorVersion: d.MinorVersion,
		MajorVersion: d.MajorVersion,
		ConstantPool: classfile.NewConstantPool(),
		AccessFlags:  classfile.AccessFlags(d.AccessFlags),
		ThisClass:    classfile.Index(d.ThisClass),
		SuperClass:   classfile.Index(d.SuperClass),
		Interfaces:   toIndices(d.Interfaces),
	}
	for _, doc := range d.ConstantPool {
		if doc.Index == 0 {
			return nil, errors.Wrapf(classfile.ErrZeroIndex, "constant with tag %s", doc.Tag)
		}
		e, err := doc.toEntry()
		if err != nil {
			return nil, errors.Wrapf(err, "constant %d", doc.Index)
		}
		c.ConstantPool.Put(classfile.Index(doc.Index), e)
	}
	for i, doc := range d.Fields {
		attributes, err := toAttributes(doc.Attributes)
		if err != nil {
			return nil, errors.Wrapf(err, "field %d", i)
		}
		c.Fields = append(c.Fields, classfile.Field{
			AccessFlags:     classfile.AccessFlags(doc.AccessFlags),
			NameIndex:       classfile.Index(doc.Name),
			DescriptorIndex: classfile.Index(doc.Descriptor),
			Attributes:      attributes,
		})
	}
	for i, doc := range d.Methods {
		attributes, err := toAttributes(doc.Attributes)
		if err != nil {
			return nil, errors.Wrapf(err, "method %d", i)
		}
		c.Methods = append(c.Methods, classfile.Method{
			AccessFlags:     classfile.AccessFlags(doc.AccessFlags),
			NameIndex:       classfile.Index(doc.Name),
			DescriptorIndex: classfile.Index(doc.Descriptor),
			Attributes:      attributes,
		})
	}
	attributes, err := toAttributes(d.Attributes)
	if err != nil {
		return nil, errors.Wrap(err, "class attributes")
	}
	c.Attributes = attributes
	return c, nil
}

func toIndices(indices []uint16) []classfile.Index {
	var out []classfile.Index
	for _, idx := range indices {
		out = append(out, classfile.Index(idx))
	}
	return out
}

func (d Constant) toEntry() (classfile.Entry, error) {
	tag, ok := classfile.TagByName(d.Tag)
	if !ok {
		return nil, errors.Wrapf(classfile.ErrUnknownTag, "%q", d.Tag)
	}
	switch tag {
	case classfile.TagUtf8:
		return classfile.ConstantUtf8{Value: d.Text}, nil
	case classfile.TagInteger:
		if d.Int < math.MinInt32 || d.Int > math.MaxInt32 {
			return nil, errors.Errorf("integer %d out of range", d.Int)
		}
		return classfile.ConstantInteger{Value: int32(d.Int)}, nil
	case classfile.TagFloat:
		if d.Bits > math.MaxUint32 {
			return nil, errors.Errorf("float bits 0x%x out of range", d.Bits)
		}
		return classfile.ConstantFloat{Value: math.Float32frombits(uint32(d.Bits))}, nil
	case classfile.TagLong:
		return classfile.ConstantLong{Value: d.Int}, nil
	case classfile.TagDouble:
		return classfile.ConstantDouble{Value: math.Float64frombits(d.Bits)}, nil
	case classfile.TagClass:
		return classfile.ConstantClass{NameIndex: classfile.Index(d.Name)}, nil
	case classfile.TagString:
		return classfile.ConstantString{StringIndex: classfile.Index(d.String)}, nil
	case classfile.TagFieldRef:
		return classfile.ConstantFieldRef{ClassIndex: classfile.Index(d.Class), NameAndTypeIndex: classfile.Index(d.NameAndType)}, nil
	case classfile.TagMethodRef:
		return classfile.ConstantMethodRef{ClassIndex: classfile.Index(d.Class), NameAndTypeIndex: classfile.Index(d.NameAndType)}, nil
	case classfile.TagInterfaceMethodRef:
		return classfile.ConstantInterfaceMethodRef{ClassIndex: classfile.Index(d.Class), NameAndTypeIndex: classfile.Index(d.NameAndType)}, nil
	case classfile.TagNameAndType:
		return classfile.ConstantNameAndType{NameIndex: classfile.Index(d.Name), DescriptorIndex: classfile.Index(d.Descriptor)}, nil
	case classfile.TagMethodHandle:
		kind, ok := referenceKindByName(d.ReferenceKind)
		if !ok {
			return nil, errors.Wrapf(classfile.ErrUnknownReferenceKind, "%q", d.ReferenceKind)
		}
		return classfile.ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: classfile.Index(d.Reference)}, nil
	case classfile.TagMethodType:
		return classfile.ConstantMethodType{DescriptorIndex: classfile.Index(d.Descriptor)}, nil
	default:
		return classfile.ConstantInvokeDynamic{BootstrapMethodAttrIndex: d.Bootstrap, NameAndTypeIndex: classfile.Index(d.NameAndType)}, nil
	}
}

func referenceKindByName(name string) (classfile.ReferenceKind, bool) {
	for k := classfile.RefGetField; k <= classfile.RefInvokeInterface; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

func toAttributes(docs []Attribute) ([]classfile.Attribute, error) {
	var out []classfile.Attribute
	for i, doc := range docs {
		info, err := doc.toInfo()
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %d", i)
		}
		out = append(out, classfile.Attribute{NameIndex: classfile.Index(doc.Name), Info: info})
	}
	return out, nil
}

func (d Attribute) toInfo() (classfile.AttributeInfo, error) {
	switch d.Kind {
	case classfile.KindOpaque:
		b, err := hex.DecodeString(d.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "opaque bytes")
		}
		return classfile.OpaqueInfo{Bytes: b}, nil
	case classfile.KindConstantValue:
		return classfile.ConstantValueInfo{Index: classfile.Index(d.Value)}, nil
	case classfile.KindExceptions:
		return classfile.ExceptionsInfo{ExceptionIndexTable: toIndices(d.Exceptions)}, nil
	case classfile.KindCode:
		if d.Code == nil {
			return nil, errors.New("code attribute without a code body")
		}
		code, err := hex.DecodeString(d.Code.Bytecode)
		if err != nil {
			return nil, errors.Wrap(err, "bytecode")
		}
		nested, err := toAttributes(d.Code.Attributes)
		if err != nil {
			return nil, errors.Wrap(err, "nested attributes")
		}
		info := classfile.CodeInfo{
			MaxStack:   d.Code.MaxStack,
			MaxLocals:  d.Code.MaxLocals,
			Code:       code,
			Attributes: nested,
		}
		for _, h := range d.Code.ExceptionTable {
			info.ExceptionTable = append(info.ExceptionTable, classfile.ExceptionTableEntry{
				Start:     h.Start,
				End:       h.End,
				Handler:   h.Handler,
				CatchType: classfile.Index(h.CatchType),
			})
		}
		return info, nil
	default:
		return nil, errors.Errorf("unknown attribute kind %q", d.Kind)
	}
}
