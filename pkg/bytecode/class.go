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

package bytecode

import (
	"crypto/md5"
	"fmt"
	"hash"
	"strings"

	"github.com/palantir/jclass/pkg/classfile"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"github.com/zxh0/jvm.go/instructions"
)

// Digest selects the hash function used for class hashes.
type Digest string

const (
	MD5    Digest = "md5"
	Blake3 Digest = "blake3"
)

// ParseDigest returns the digest named s, ignoring case.
func ParseDigest(s string) (Digest, error) {
	switch d := Digest(strings.ToLower(s)); d {
	case MD5, Blake3:
		return d, nil
	default:
		return "", errors.Errorf("unsupported digest %q: supported digests are md5 and blake3", s)
	}
}

func (d Digest) newHash() (hash.Hash, error) {
	switch d {
	case MD5, "":
		return md5.New(), nil
	case Blake3:
		return blake3.New(), nil
	default:
		return nil, errors.Errorf("unsupported digest %q", string(d))
	}
}

// ClassHash identifies a class both exactly and by the shape of its bytecode.
type ClassHash struct {
	ClassSize               int64  `json:"classSize"`
	CompleteHash            string `json:"completeHash"`
	BytecodeInstructionHash string `json:"bytecodeInstructionHash"`
}

// HashClassBytes hashes a complete class file. The instruction hash covers the type of
// every instruction in every method's Code attribute, in order, so it is stable across
// changes to constants and operands.
func HashClassBytes(data []byte, digest Digest) (ClassHash, error) {
	complete, err := digest.newHash()
	if err != nil {
		return ClassHash{}, err
	}
	complete.Write(data)

	cls, err := classfile.Decode(data)
	if err != nil {
		return ClassHash{}, errors.Wrap(err, "decoding class")
	}
	instructionHash, err := HashClassInstructions(cls, digest)
	if err != nil {
		return ClassHash{}, err
	}
	return ClassHash{
		ClassSize:               int64(len(data)),
		CompleteHash:            fmt.Sprintf("%x", complete.Sum(nil)),
		BytecodeInstructionHash: instructionHash,
	}, nil
}

// HashClassInstructions hashes the instruction types of every resolved Code attribute of cls.
func HashClassInstructions(cls *classfile.JavaClass, digest Digest) (string, error) {
	h, err := digest.newHash()
	if err != nil {
		return "", err
	}
	for i, method := range cls.Methods {
		for _, attribute := range method.Attributes {
			switch t := attribute.Info.(type) {
			default:
				// ignore
			case classfile.CodeInfo:
				if err := hashInstructions(h, t.Code); err != nil {
					return "", errors.Wrapf(err, "method %d", i)
				}
			}
		}
	}
	return fmt.Sprintf("%x-v0", h.Sum(nil)), nil
}

// hashInstructions turns a panic from the instruction decoder into an error.
func hashInstructions(h hash.Hash, code []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("malformed bytecode: %v", r)
		}
	}()
	for _, instruction := range instructions.Decode(code) {
		if _, err := fmt.Fprintf(h, "%T", instruction); err != nil {
			return err
		}
	}
	return nil
}
