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

package bytecode_test

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/palantir/jclass/pkg/bytecode"
	"github.com/palantir/jclass/pkg/classfile/classfiletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func TestHashClassBytes(t *testing.T) {
	data := classfiletest.HelloClass()

	t.Run("md5", func(t *testing.T) {
		hashes, err := bytecode.HashClassBytes(data, bytecode.MD5)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), hashes.ClassSize)
		assert.Equal(t, fmt.Sprintf("%x", md5.Sum(data)), hashes.CompleteHash)
		assert.Regexp(t, `^[0-9a-f]{32}-v0$`, hashes.BytecodeInstructionHash)
	})

	t.Run("blake3", func(t *testing.T) {
		hashes, err := bytecode.HashClassBytes(data, bytecode.Blake3)
		require.NoError(t, err)
		sum := blake3.Sum256(data)
		assert.Equal(t, fmt.Sprintf("%x", sum[:]), hashes.CompleteHash)
		assert.Regexp(t, `^[0-9a-f]{64}-v0$`, hashes.BytecodeInstructionHash)
	})

	t.Run("instruction hash ignores constants", func(t *testing.T) {
		edited := bytes.Replace(data, []byte("Hello.java"), []byte("Other.java"), 1)
		require.NotEqual(t, data, edited)

		original, err := bytecode.HashClassBytes(data, bytecode.MD5)
		require.NoError(t, err)
		changed, err := bytecode.HashClassBytes(edited, bytecode.MD5)
		require.NoError(t, err)
		assert.NotEqual(t, original.CompleteHash, changed.CompleteHash)
		assert.Equal(t, original.BytecodeInstructionHash, changed.BytecodeInstructionHash)
	})

	t.Run("class without code", func(t *testing.T) {
		empty := classfiletest.Minimal(func(b *classfiletest.Builder) {
			b.U16(3).Utf8("Empty").U8(7).U16(1)
		}, 0x0021, 2, 0)
		hashes, err := bytecode.HashClassBytes(empty, bytecode.MD5)
		require.NoError(t, err)
		assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e-v0", hashes.BytecodeInstructionHash)
	})

	t.Run("undecodable class", func(t *testing.T) {
		_, err := bytecode.HashClassBytes(data[:20], bytecode.MD5)
		assert.Error(t, err)
	})
}

func TestHashClass(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "hello.jar")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("com/example/Hello.class")
	require.NoError(t, err)
	_, err = w.Write(classfiletest.HelloClass())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(jarPath, buf.Bytes(), 0644))

	expected, err := bytecode.HashClassBytes(classfiletest.HelloClass(), bytecode.MD5)
	require.NoError(t, err)
	got, err := bytecode.HashClass(jarPath, "com.example.Hello", bytecode.MD5)
	require.NoError(t, err)
	assert.Equal(t, expected, got)

	_, err = bytecode.HashClass(jarPath, "com.example.Missing", bytecode.MD5)
	assert.Error(t, err)

	classPath := filepath.Join(dir, "Hello.class")
	require.NoError(t, os.WriteFile(classPath, classfiletest.HelloClass(), 0644))
	got, err = bytecode.HashClassFile(classPath, bytecode.MD5)
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestParseDigest(t *testing.T) {
	d, err := bytecode.ParseDigest("BLAKE3")
	require.NoError(t, err)
	assert.Equal(t, bytecode.Blake3, d)
	_, err = bytecode.ParseDigest("sha1")
	assert.Error(t, err)
}
