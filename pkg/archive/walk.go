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

package archive

import (
	"archive/tar"
	"archive/zip"
	"context"
	"io"
	"strings"
)

// WalkZipFiles calls walkFn for every regular file in r, in central directory order.
func WalkZipFiles(ctx context.Context, r *zip.Reader, walkFn FileWalkFn) error {
	for _, zipFile := range r.File {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if zipFile.Mode().IsDir() || strings.HasSuffix(zipFile.Name, "/") {
			continue
		}
		proceed, err := walkZipFile(ctx, zipFile, walkFn)
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
	}
	return nil
}

func walkZipFile(ctx context.Context, zipFile *zip.File, walkFn FileWalkFn) (proceed bool, err error) {
	contents, err := zipFile.Open()
	if err != nil {
		return false, err
	}
	defer func() {
		if cErr := contents.Close(); err == nil && cErr != nil {
			err = cErr
		}
	}()
	return walkFn(ctx, zipFile.Name, int64(zipFile.UncompressedSize64), contents)
}

// WalkTarFiles calls walkFn for every regular file in r, in stream order.
func WalkTarFiles(ctx context.Context, r *tar.Reader, walkFn FileWalkFn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		proceed, err := walkFn(ctx, header.Name, header.Size, r)
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
	}
}
