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
	"archive/zip"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// HashClass hashes the class named className (e.g. "com.example.Foo") inside jarFile.
func HashClass(jarFile string, className string, digest Digest) (ClassHash, error) {
	r, err := zip.OpenReader(jarFile)
	if err != nil {
		return ClassHash{}, err
	}
	defer func() {
		_ = r.Close()
	}()

	classLocation := strings.ReplaceAll(className, ".", "/") + ".class"
	c, err := r.Open(classLocation)
	if err != nil {
		return ClassHash{}, errors.Wrapf(err, "opening %s in %s", classLocation, jarFile)
	}
	data, err := io.ReadAll(c)
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ClassHash{}, err
	}
	return HashClassBytes(data, digest)
}

// HashClassFile hashes a standalone class file.
func HashClassFile(path string, digest Digest) (ClassHash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClassHash{}, err
	}
	return HashClassBytes(data, digest)
}
