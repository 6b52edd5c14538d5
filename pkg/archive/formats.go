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
	"strings"
)

const (
	UnsupportedArchive FormatType = iota
	TarArchive
	TarGzArchive
	TarBz2Archive
	TarZstdArchive
	TarLz4Archive
	ZipArchive
)

type FormatType int

var (
	extensions = map[string]FormatType{
		"ear":     ZipArchive,
		"jar":     ZipArchive,
		"jmod":    ZipArchive,
		"par":     ZipArchive,
		"war":     ZipArchive,
		"zip":     ZipArchive,
		"tar":     TarArchive,
		"tar.gz":  TarGzArchive,
		"tgz":     TarGzArchive,
		"tar.bz2": TarBz2Archive,
		"tbz2":    TarBz2Archive,
		"tar.zst": TarZstdArchive,
		"tzst":    TarZstdArchive,
		"tar.lz4": TarLz4Archive,
	}

	formatNames = map[FormatType]string{
		UnsupportedArchive: "unsupported",
		TarArchive:         "tar",
		TarGzArchive:       "tar.gz",
		TarBz2Archive:      "tar.bz2",
		TarZstdArchive:     "tar.zst",
		TarLz4Archive:      "tar.lz4",
		ZipArchive:         "zip",
	}
)

func (f FormatType) String() string {
	return formatNames[f]
}

// ParseArchiveFormatFromFile returns the archive format implied by the extension of filename.
// Extensions are matched case-insensitively.
func ParseArchiveFormatFromFile(filename string) (FormatType, bool) {
	fileSplit := strings.Split(strings.ToLower(filename), ".")
	if len(fileSplit) < 2 {
		return UnsupportedArchive, false
	}

	// only search for a depth of two extension dots
	for i := len(fileSplit) - 1; i >= len(fileSplit)-2 && i > 0; i-- {
		if archive, ok := extensions[strings.Join(fileSplit[i:], ".")]; ok {
			return archive, true
		}
	}
	return UnsupportedArchive, false
}
