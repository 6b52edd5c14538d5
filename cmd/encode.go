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
	"os"

	"github.com/palantir/jclass/pkg/document"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func encodeCmd() *cobra.Command {
	var flags documentFlags
	cmd := cobra.Command{
		Use:   "encode <document> <class>",
		Args:  cobra.ExactArgs(2),
		Short: "Encodes a JSON, YAML or CBOR document into a class file",
		Long: `Encodes a JSON, YAML or CBOR document, as written by the decode command, into a class file.
Attribute and length prefixes are recomputed from the document contents.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := flags.resolveFormat(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cls, err := document.Unmarshal(data, format)
			if err != nil {
				return errors.Wrapf(err, "failed to read document %s", args[0])
			}
			if err := cls.WriteFile(args[1]); err != nil {
				return errors.Wrapf(err, "failed to encode %s", args[1])
			}
			return nil
		},
	}
	applyDocumentFlags(&cmd, &flags)
	return &cmd
}
