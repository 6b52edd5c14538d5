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

	"github.com/palantir/jclass/pkg/classfile"
	"github.com/palantir/jclass/pkg/document"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func decodeCmd() *cobra.Command {
	var flags documentFlags
	cmd := cobra.Command{
		Use:   "decode <class> <document>",
		Args:  cobra.ExactArgs(2),
		Short: "Decodes a class file into a JSON, YAML or CBOR document",
		Long: `Decodes a class file into a JSON, YAML or CBOR document.
The document describes every constant, member and attribute of the class and
can be turned back into an identical class file with the encode command.
Use "-" as the document path to write to standard output; --format is then required.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := flags.resolveFormat(args[1])
			if err != nil {
				return err
			}
			cls, err := classfile.ParseFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to decode %s", args[0])
			}
			out, err := document.Marshal(cls, format)
			if err != nil {
				return err
			}
			if args[1] == "-" {
				_, err := cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(args[1], out, 0644)
		},
	}
	applyDocumentFlags(&cmd, &flags)
	return &cmd
}
