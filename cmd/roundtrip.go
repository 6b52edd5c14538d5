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
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/palantir/jclass/pkg/crawl"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func roundTripCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "roundtrip <class>",
		Args:         cobra.ExactArgs(1),
		Short:        "Checks that a class file re-encodes to identical bytes",
		SilenceUsage: true,
		Long: `Checks that a class file re-encodes to identical bytes.
The class is decoded and encoded again, and the two byte sequences are compared.
The command fails if the class cannot be decoded or encoded, or if the bytes differ.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			outcome, offset, err := crawl.RoundTrip(data)
			switch outcome {
			case crawl.RoundTripOK:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("%s round-trips to identical bytes (%d bytes)", args[0], len(data)))
				return nil
			case crawl.RoundTripMismatch:
				return errors.Errorf("%s re-encodes to different bytes, first difference at offset %d", args[0], offset)
			case crawl.DecodeFailed:
				return errors.Wrapf(err, "failed to decode %s", args[0])
			default:
				return errors.Wrapf(err, "failed to encode %s", args[0])
			}
		},
	}
}
