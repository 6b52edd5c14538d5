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

// Package printer renders a decoded class for humans. Constant pool references are
// dereferenced recursively, so an entry reads as its meaning rather than a bare index.
package printer

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/palantir/jclass/pkg/classfile"
)

// maxDepth bounds dereferencing so that self-referencing pools still print.
const maxDepth = 8

// maxOpaqueBytes is the number of payload bytes shown for an opaque attribute.
const maxOpaqueBytes = 32

// Describe renders the constant at idx, following references. Missing entries render as (NONE).
func Describe(pool *classfile.ConstantPool, idx classfile.Index) string {
	return describe(pool, idx, 0)
}

func describe(pool *classfile.ConstantPool, idx classfile.Index, depth int) string {
	if depth > maxDepth {
		return "..."
	}
	e, err := pool.Get(idx)
	if err != nil {
		return "(NONE)"
	}
	ref := func(i classfile.Index) string {
		return describe(pool, i, depth+1)
	}
	switch v := e.(type) {
	case classfile.ConstantUtf8:
		return fmt.Sprintf("'%s'", v.Value)
	case classfile.ConstantInteger:
		return fmt.Sprintf("(int %d)", v.Value)
	case classfile.ConstantFloat:
		return fmt.Sprintf("(float %v)", v.Value)
	case classfile.ConstantLong:
		return fmt.Sprintf("(long %d)", v.Value)
	case classfile.ConstantDouble:
		return fmt.Sprintf("(double %v)", v.Value)
	case classfile.ConstantClass:
		return fmt.Sprintf("(class %s)", ref(v.NameIndex))
	case classfile.ConstantString:
		return fmt.Sprintf("(string %s)", ref(v.StringIndex))
	case classfile.ConstantFieldRef:
		return fmt.Sprintf("(fieldref %s %s)", ref(v.ClassIndex), ref(v.NameAndTypeIndex))
	case classfile.ConstantMethodRef:
		return fmt.Sprintf("(methodref %s %s)", ref(v.ClassIndex), ref(v.NameAndTypeIndex))
	case classfile.ConstantInterfaceMethodRef:
		return fmt.Sprintf("(interfacemethodref %s %s)", ref(v.ClassIndex), ref(v.NameAndTypeIndex))
	case classfile.ConstantNameAndType:
		return fmt.Sprintf("(name %s %s)", ref(v.NameIndex), ref(v.DescriptorIndex))
	case classfile.ConstantMethodHandle:
		return fmt.Sprintf("(kind %s %s)", v.ReferenceKind, ref(v.ReferenceIndex))
	case classfile.ConstantMethodType:
		return fmt.Sprintf("(methodtype %s)", ref(v.DescriptorIndex))
	case classfile.ConstantInvokeDynamic:
		return fmt.Sprintf("(invokedyn attr %d %s)", v.BootstrapMethodAttrIndex, ref(v.NameAndTypeIndex))
	default:
		return fmt.Sprintf("(%s)", e.Tag())
	}
}

// Fprint writes the whole class to w.
func Fprint(w io.Writer, c *classfile.JavaClass) error {
	p := &printer{w: w, pool: c.ConstantPool}
	if p.pool == nil {
		p.pool = classfile.NewConstantPool()
	}
	p.print(c)
	return p.err
}

type printer struct {
	w    io.Writer
	pool *classfile.ConstantPool
	err  error
}

func (p *printer) printf(indent int, format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, strings.Repeat("  ", indent)+format+"\n", args...)
}

func (p *printer) heading(format string, args ...interface{}) {
	p.printf(0, "%s", color.CyanString(format, args...))
}

func (p *printer) print(c *classfile.JavaClass) {
	p.printf(0, "magic: 0x%08x", c.Magic)
	p.printf(0, "version: %d.%d", c.MajorVersion, c.MinorVersion)

	p.heading("constant pool (%d entries, count %d):", p.pool.Len(), p.pool.Count())
	for _, idx := range p.pool.Indices() {
		p.printf(1, "%04d %s", uint16(idx), Describe(p.pool, idx))
	}

	p.printf(0, "access flags: %s", c.AccessFlags.Describe(classfile.ClassContext))
	p.printf(0, "this class: %s", Describe(p.pool, c.ThisClass))
	p.printf(0, "super class: %s", Describe(p.pool, c.SuperClass))

	p.heading("interfaces (%d):", len(c.Interfaces))
	for _, idx := range c.Interfaces {
		p.printf(1, "%s", Describe(p.pool, idx))
	}

	p.heading("fields (%d):", len(c.Fields))
	for _, f := range c.Fields {
		p.member(f.AccessFlags, classfile.FieldContext, f.NameIndex, f.DescriptorIndex, f.Attributes)
	}

	p.heading("methods (%d):", len(c.Methods))
	for _, m := range c.Methods {
		p.member(m.AccessFlags, classfile.MethodContext, m.NameIndex, m.DescriptorIndex, m.Attributes)
	}

	p.heading("attributes (%d):", len(c.Attributes))
	p.attributes(1, c.Attributes)
}

func (p *printer) member(flags classfile.AccessFlags, ctx classfile.Context, name, descriptor classfile.Index, attributes []classfile.Attribute) {
	p.printf(1, "%s %s %s", Describe(p.pool, name), Describe(p.pool, descriptor), flags.Describe(ctx))
	p.attributes(2, attributes)
}

func (p *printer) attributes(indent int, attributes []classfile.Attribute) {
	for _, a := range attributes {
		name := Describe(p.pool, a.NameIndex)
		switch info := a.Info.(type) {
		case classfile.ConstantValueInfo:
			p.printf(indent, "%s: %s", name, Describe(p.pool, info.Index))
		case classfile.ExceptionsInfo:
			var thrown []string
			for _, idx := range info.ExceptionIndexTable {
				thrown = append(thrown, Describe(p.pool, idx))
			}
			p.printf(indent, "%s: [%s]", name, strings.Join(thrown, ", "))
		case classfile.CodeInfo:
			p.printf(indent, "%s: max stack %d, max locals %d, code length %d", name, info.MaxStack, info.MaxLocals, len(info.Code))
			p.printf(indent+1, "code: %s", hex.EncodeToString(info.Code))
			for _, e := range info.ExceptionTable {
				catch := "any"
				if e.CatchType != classfile.NoIndex {
					catch = Describe(p.pool, e.CatchType)
				}
				p.printf(indent+1, "handler %d-%d -> %d catch %s", e.Start, e.End, e.Handler, catch)
			}
			p.attributes(indent+1, info.Attributes)
		case classfile.OpaqueInfo:
			shown := info.Bytes
			suffix := ""
			if len(shown) > maxOpaqueBytes {
				shown, suffix = shown[:maxOpaqueBytes], "..."
			}
			p.printf(indent, "%s: %d bytes %s%s", name, len(info.Bytes), hex.EncodeToString(shown), suffix)
		default:
			p.printf(indent, "%s: (no info)", name)
		}
	}
}
