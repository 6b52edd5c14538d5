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

package document

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/palantir/jclass/pkg/classfile"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format names a document encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CBOR Format = "cbor"
)

// Formats lists every supported format.
var Formats = []Format{JSON, YAML, CBOR}

var formatExtensions = map[string]Format{
	".json": JSON,
	".yaml": YAML,
	".yml":  YAML,
	".cbor": CBOR,
}

// cborEncMode uses Core Deterministic Encoding, so a given class always produces the same bytes.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("document: CBOR encoder initialization failed: " + err.Error())
	}
}

// ParseFormat returns the format named s, ignoring case.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", errors.Errorf("unsupported document format %q: supported formats are json, yaml and cbor", s)
}

// FormatFromPath infers the format from the extension of path.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := formatExtensions[ext]; ok {
		return f, nil
	}
	return "", errors.Errorf("cannot infer document format from extension %q of %s", ext, path)
}

// Marshal projects c and encodes the document in format.
func Marshal(c *classfile.JavaClass, format Format) ([]byte, error) {
	doc := FromClass(c)
	switch format {
	case JSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case YAML:
		return yaml.Marshal(doc)
	case CBOR:
		return cborEncMode.Marshal(doc)
	default:
		return nil, errors.Errorf("unsupported document format %q", format)
	}
}

// Unmarshal decodes a document in format and rebuilds the class it describes.
func Unmarshal(data []byte, format Format) (*classfile.JavaClass, error) {
	var doc Class
	var err error
	switch format {
	case JSON:
		err = json.Unmarshal(data, &doc)
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	case CBOR:
		err = cbor.Unmarshal(data, &doc)
	default:
		return nil, errors.Errorf("unsupported document format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s document", format)
	}
	return doc.ToClass()
}
