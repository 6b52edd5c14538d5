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
	"fmt"
	"strings"
)

// Index is a 1-based reference into the constant pool. NoIndex marks an absent reference.
type Index uint16

// NoIndex is the reserved "no reference" value.
const NoIndex Index = 0

func (i Index) String() string {
	return fmt.Sprintf("#%d", uint16(i))
}

// ReferenceKind is the kind of a method handle constant.
type ReferenceKind uint8

const (
	RefGetField ReferenceKind = iota + 1
	RefGetStatic
	RefPutField
	RefPutStatic
	RefInvokeVirtual
	RefInvokeStatic
	RefInvokeSpecial
	RefNewInvokeSpecial
	RefInvokeInterface
)

var referenceKindNames = map[ReferenceKind]string{
	RefGetField:         "GetField",
	RefGetStatic:        "GetStatic",
	RefPutField:         "PutField",
	RefPutStatic:        "PutStatic",
	RefInvokeVirtual:    "InvokeVirtual",
	RefInvokeStatic:     "InvokeStatic",
	RefInvokeSpecial:    "InvokeSpecial",
	RefNewInvokeSpecial: "NewInvokeSpecial",
	RefInvokeInterface:  "InvokeInterface",
}

// Valid reports whether k is one of the nine defined kinds.
func (k ReferenceKind) Valid() bool {
	return k >= RefGetField && k <= RefInvokeInterface
}

func (k ReferenceKind) String() string {
	if name, ok := referenceKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ReferenceKind(%d)", uint8(k))
}

// AccessFlags is the access and property bitmask of a class, field or method.
//
// Several bits carry different meanings depending on the record they decorate, e.g.
// 0x0020 is SUPER on a class and SYNCHRONIZED on a method. The codec does not
// distinguish them; use Describe with the matching Context to render the right names.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000

	// KnownAccessFlags is the union of every defined bit.
	KnownAccessFlags AccessFlags = 0x7FFF
)

// Context selects which meaning overloaded access flag bits are given when rendered.
type Context int

const (
	ClassContext Context = iota
	FieldContext
	MethodContext
)

type flagName struct {
	flag AccessFlags
	name string
}

var commonFlagNames = []flagName{
	{AccPublic, "PUBLIC"},
	{AccPrivate, "PRIVATE"},
	{AccProtected, "PROTECTED"},
	{AccStatic, "STATIC"},
	{AccFinal, "FINAL"},
}

var contextFlagNames = map[Context][]flagName{
	ClassContext:  {{AccSuper, "SUPER"}, {0x0040, "0x0040"}, {0x0080, "0x0080"}},
	FieldContext:  {{0x0020, "0x0020"}, {AccVolatile, "VOLATILE"}, {AccTransient, "TRANSIENT"}},
	MethodContext: {{AccSynchronized, "SYNCHRONIZED"}, {AccBridge, "BRIDGE"}, {AccVarargs, "VARARGS"}},
}

var tailFlagNames = []flagName{
	{AccNative, "NATIVE"},
	{AccInterface, "INTERFACE"},
	{AccAbstract, "ABSTRACT"},
	{AccStrict, "STRICT"},
	{AccSynthetic, "SYNTHETIC"},
	{AccAnnotation, "ANNOTATION"},
	{AccEnum, "ENUM"},
}

// Has reports whether every bit of flag is set.
func (f AccessFlags) Has(flag AccessFlags) bool {
	return f&flag == flag
}

// Valid reports whether f only uses defined bits.
func (f AccessFlags) Valid() bool {
	return f&^KnownAccessFlags == 0
}

// Names renders the set bits as upper-case names for the given record context.
func (f AccessFlags) Names(ctx Context) []string {
	var names []string
	appendSet := func(list []flagName) {
		for _, fn := range list {
			if f.Has(fn.flag) {
				names = append(names, fn.name)
			}
		}
	}
	appendSet(commonFlagNames)
	appendSet(contextFlagNames[ctx])
	appendSet(tailFlagNames)
	if rest := f &^ KnownAccessFlags; rest != 0 {
		names = append(names, fmt.Sprintf("0x%04x", uint16(rest)))
	}
	return names
}

// Describe renders f for ctx as names joined by " | ".
func (f AccessFlags) Describe(ctx Context) string {
	names := f.Names(ctx)
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, " | ")
}
