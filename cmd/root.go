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
	"github.com/palantir/pkg/cobracli"
	"github.com/spf13/cobra"
)

var (
	Version = "unspecified"
)

func Execute() int {
	return cobracli.ExecuteWithDefaultParams(rootCmd(), cobracli.VersionFlagParam(Version))
}

func rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jclass",
		Short: "Decode, inspect, re-encode and verify Java class files",
	}
	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(encodeCmd())
	rootCmd.AddCommand(printCmd())
	rootCmd.AddCommand(roundTripCmd())
	rootCmd.AddCommand(identifyCmd())
	rootCmd.AddCommand(verifyCmd())
	return rootCmd
}
