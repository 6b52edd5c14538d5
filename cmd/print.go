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
	"github.com/palantir/jclass/pkg/classfile"
	"github.com/palantir/jclass/pkg/printer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func printCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print <class>",
		Args:  cobra.ExactArgs(1),
		Short: "Prints a human readable description of a class file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cls, err := classfile.ParseFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to decode %s", args[0])
			}
			return printer.Fprint(cmd.OutOrStdout(), cls)
		},
	}
}
