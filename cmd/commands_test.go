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

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/palantir/jclass/pkg/classfile/classfiletest"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mismatchedClass re-encodes with a different Utf8 length at offset 12.
func mismatchedClass() []byte {
	return classfiletest.Minimal(func(b *classfiletest.Builder) {
		b.U16(3)
		b.U8(1).U16(3).Raw('a', 0xFF, 'b')
		b.U8(7).U16(1)
	}, 0x0021, 2, 0)
}

func runCmd(cmd *cobra.Command, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeClass(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestVerifyCmd(t *testing.T) {
	color.NoColor = true

	t.Run("succeeds when every class round-trips", func(t *testing.T) {
		root := t.TempDir()
		writeClass(t, root, "Hello.class", classfiletest.HelloClass())
		out, _, err := runCmd(verifyCmd(), root)
		require.NoError(t, err)
		assert.Contains(t, out, "All 1 class file(s) round-tripped\n")
		assert.Contains(t, out, "1 total files scanned")
	})

	t.Run("fails and reports classes that do not round-trip", func(t *testing.T) {
		root := t.TempDir()
		writeClass(t, root, "Hello.class", classfiletest.HelloClass())
		bad := writeClass(t, root, "Bad.class", mismatchedClass())
		out, errOut, err := runCmd(verifyCmd(), root, "--json")
		require.Error(t, err)
		assert.Equal(t, "Error: 1 class file(s) failed to round-trip\n", errOut)

		lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
		require.Len(t, lines, 2)
		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(lines[0], &result))
		assert.Equal(t, "roundTripMismatch", result["outcome"])
		assert.Equal(t, bad, result["filePath"])
		assert.Equal(t, float64(12), result["firstDifferenceOffset"])

		var summary map[string]interface{}
		require.NoError(t, json.Unmarshal(lines[1], &summary))
		assert.Equal(t, float64(2), summary["filesScanned"])
		assert.Equal(t, float64(1), summary["verified"])
		assert.Equal(t, float64(1), summary["mismatched"])
	})

	t.Run("file path only output", func(t *testing.T) {
		root := t.TempDir()
		bad := writeClass(t, root, "Bad.class", mismatchedClass())
		out, _, err := runCmd(verifyCmd(), root, "--file-path-only")
		require.Error(t, err)
		assert.Equal(t, bad+"\n", out)
	})

	t.Run("errors when json and file-path-only both provided", func(t *testing.T) {
		_, errOut, err := runCmd(verifyCmd(), t.TempDir(), "--json", "--file-path-only")
		require.Error(t, err)
		assert.Equal(t, "Error: --json and --file-path-only cannot be used together\n", errOut)
	})

	t.Run("errors on invalid archive open mode", func(t *testing.T) {
		_, errOut, err := runCmd(verifyCmd(), t.TempDir(), "--archive-open-mode", "mmap")
		require.Error(t, err)
		assert.Equal(t, "Error: unsupported --archive-open-mode: mmap. Supported values are \"standard\" and \"directio\"\n", errOut)
	})

	t.Run("errors on invalid ignore-dir pattern", func(t *testing.T) {
		_, errOut, err := runCmd(verifyCmd(), t.TempDir(), "--ignore-dir", "(")
		require.Error(t, err)
		assert.Contains(t, errOut, `Error: failed to compile ignore-dir pattern "("`)
	})
}

func TestDecodeEncodeCmd(t *testing.T) {
	for _, ext := range []string{".json", ".yaml", ".cbor"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			in := writeClass(t, dir, "Hello.class", classfiletest.HelloClass())
			doc := filepath.Join(dir, "Hello"+ext)
			out := filepath.Join(dir, "Out.class")

			_, _, err := runCmd(decodeCmd(), in, doc)
			require.NoError(t, err)
			_, _, err = runCmd(encodeCmd(), doc, out)
			require.NoError(t, err)

			encoded, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, classfiletest.HelloClass(), encoded)
		})
	}

	t.Run("decode to standard output with explicit format", func(t *testing.T) {
		in := writeClass(t, t.TempDir(), "Hello.class", classfiletest.HelloClass())
		out, _, err := runCmd(decodeCmd(), in, "-", "--format", "json")
		require.NoError(t, err)
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		assert.Equal(t, float64(52), doc["majorVersion"])
	})

	t.Run("decode errors when format cannot be inferred", func(t *testing.T) {
		in := writeClass(t, t.TempDir(), "Hello.class", classfiletest.HelloClass())
		_, _, err := runCmd(decodeCmd(), in, "-")
		require.Error(t, err)
	})

	t.Run("decode errors on malformed class", func(t *testing.T) {
		dir := t.TempDir()
		in := writeClass(t, dir, "Bad.class", []byte{0xCA, 0xFE})
		_, errOut, err := runCmd(decodeCmd(), in, filepath.Join(dir, "Bad.json"))
		require.Error(t, err)
		assert.Contains(t, errOut, "failed to decode")
	})
}

func TestPrintCmd(t *testing.T) {
	color.NoColor = true
	in := writeClass(t, t.TempDir(), "Hello.class", classfiletest.HelloClass())
	out, _, err := runCmd(printCmd(), in)
	require.NoError(t, err)
	assert.Contains(t, out, "super class: (class 'java/lang/Object')\n")
}

func TestRoundTripCmd(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()

	t.Run("identical", func(t *testing.T) {
		in := writeClass(t, dir, "Hello.class", classfiletest.HelloClass())
		out, _, err := runCmd(roundTripCmd(), in)
		require.NoError(t, err)
		assert.Contains(t, out, "round-trips to identical bytes")
	})

	t.Run("mismatch", func(t *testing.T) {
		in := writeClass(t, dir, "Bad.class", mismatchedClass())
		out, errOut, err := runCmd(roundTripCmd(), in)
		require.Error(t, err)
		assert.Empty(t, out)
		assert.Equal(t, "Error: "+in+" re-encodes to different bytes, first difference at offset 12\n", errOut)
	})
}

func TestIdentifyCmd(t *testing.T) {
	dir := t.TempDir()
	in := writeClass(t, dir, "Hello.class", classfiletest.HelloClass())

	t.Run("class file", func(t *testing.T) {
		out, _, err := runCmd(identifyCmd(), in)
		require.NoError(t, err)
		assert.Contains(t, out, "Size of class: ")
		assert.Contains(t, out, "Hash of all bytecode instructions: ")
	})

	t.Run("json with blake3", func(t *testing.T) {
		out, _, err := runCmd(identifyCmd(), in, "--digest", "blake3", "--json")
		require.NoError(t, err)
		var hashes map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &hashes))
		assert.Len(t, hashes["completeHash"], 64)
	})

	t.Run("jar requires class name", func(t *testing.T) {
		_, errOut, err := runCmd(identifyCmd(), filepath.Join(dir, "app.jar"))
		require.Error(t, err)
		assert.Contains(t, errOut, "--class-name is required")
	})

	t.Run("unsupported digest", func(t *testing.T) {
		_, _, err := runCmd(identifyCmd(), in, "--digest", "sha1")
		require.Error(t, err)
	})
}

func TestRootCmdHasCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd().Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"decode", "encode", "identify", "print", "roundtrip", "verify"}, names)
	_, _, err := runCmd(rootCmd(), "--help")
	require.NoError(t, err)
}
