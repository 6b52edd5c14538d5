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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/palantir/jclass/pkg/bytecode"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func identifyCmd() *cobra.Command {
	var className string
	var digest string
	var outputJSON bool
	cmd := cobra.Command{
		Use:   "identify <jar|class>",
		Args:  cobra.ExactArgs(1),
		Short: "Produces hashes to identify a class file",
		Long: `Produces hashes to identify a class file, either standalone or within a JAR.
The entire class is hashed to allow for matching against the exact version.
The bytecode opcodes making up the methods are hashed, for matching versions
with modifications to constants or debug information.
Use the class-name option to choose which class is analysed within a JAR.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := bytecode.ParseDigest(digest)
			if err != nil {
				return err
			}
			var hashes bytecode.ClassHash
			if strings.HasSuffix(strings.ToLower(args[0]), ".class") {
				hashes, err = bytecode.HashClassFile(args[0], d)
			} else if className == "" {
				return errors.New("--class-name is required when hashing a class inside a JAR")
			} else {
				hashes, err = bytecode.HashClass(args[0], className, d)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if outputJSON {
				jsonBytes, err := json.Marshal(hashes)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(jsonBytes))
				return err
			}
			_, _ = fmt.Fprintf(out, "Size of class: %d\n", hashes.ClassSize)
			_, _ = fmt.Fprintf(out, "Hash of complete class: %s\n", hashes.CompleteHash)
			_, _ = fmt.Fprintf(out, "Hash of all bytecode instructions: %s\n", hashes.BytecodeInstructionHash)
			return nil
		},
	}
	cmd.Flags().StringVar(&className, "class-name", "", `Specify the full class name and package to hash within a JAR, e.g. "com.example.Foo".`)
	cmd.Flags().StringVar(&digest, "digest", string(bytecode.MD5), `The digest to hash with, one of md5 or blake3.`)
	cmd.Flags().BoolVar(&outputJSON, "json", false, "If true, output will be in JSON format")
	return &cmd
}
