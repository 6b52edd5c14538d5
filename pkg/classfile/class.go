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
	"io"
	"os"

	"github.com/pkg/errors"
)

// Magic is the conventional first word of a class file. Decode does not enforce it.
const Magic uint32 = 0xCAFEBABE

// JavaClass is a decoded class file.
type JavaClass struct {
	Magic        uint32
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool *ConstantPool
	AccessFlags  AccessFlags
	ThisClass    Index
	// SuperClass is NoIndex when the class has no superclass.
	SuperClass Index
	Interfaces []Index
	Fields     []Field
	Methods    []Method
	Attributes []Attribute
}

// Field is a field_info record.
type Field struct {
	AccessFlags     AccessFlags
	NameIndex       Index
	DescriptorIndex Index
	Attributes      []Attribute
}

// Method is a method_info record. It has the same shape as Field.
type Method struct {
	AccessFlags     AccessFlags
	NameIndex       Index
	DescriptorIndex Index
	Attributes      []Attribute
}

// ParseFile reads and decodes the class file at path.
func ParseFile(path string) (*JavaClass, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cls, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return cls, nil
}

// Parse reads r to the end and decodes the content.
func Parse(r io.Reader) (*JavaClass, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// WriteFile encodes c and writes it to path.
func (c *JavaClass) WriteFile(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve runs the attribute resolution pass over every attribute reachable from the
// fields, the methods and the class itself. Attributes that cannot be resolved stay opaque.
func (c *JavaClass) Resolve() {
	pool := c.pool()
	for i := range c.Fields {
		resolveAll(c.Fields[i].Attributes, pool)
	}
	for i := range c.Methods {
		resolveAll(c.Methods[i].Attributes, pool)
	}
	resolveAll(c.Attributes, pool)
}

// pool returns the constant pool, or an empty one for a tree built without a pool.
func (c *JavaClass) pool() *ConstantPool {
	if c.ConstantPool == nil {
		return NewConstantPool()
	}
	return c.ConstantPool
}

// Name returns the binary name of this class, e.g. "java/lang/String".
func (c *JavaClass) Name() (string, error) {
	return c.pool().ClassName(c.ThisClass)
}

// SuperName returns the binary name of the superclass, or "" when there is none.
func (c *JavaClass) SuperName() (string, error) {
	if c.SuperClass == NoIndex {
		return "", nil
	}
	return c.pool().ClassName(c.SuperClass)
}

// AttributeName returns the name of a.
func (c *JavaClass) AttributeName(a Attribute) (string, error) {
	return c.pool().Utf8(a.NameIndex)
}

// Code returns the first resolved Code attribute of m.
func (m Method) Code() (CodeInfo, bool) {
	for _, a := range m.Attributes {
		if code, ok := a.Info.(CodeInfo); ok {
			return code, true
		}
	}
	return CodeInfo{}, false
}
