////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles command-line version functionality

package cmd

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Change this value to set the version for this build
const SEMVER = "0.3.0"

// Version prints the version and, when the binary carries build
// information, its dependencies.
func Version() string {
	out := fmt.Sprintf("Heartline Client v%s\n\n", SEMVER)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	var deps strings.Builder
	for _, d := range info.Deps {
		fmt.Fprintf(&deps, "\t%s %s\n", d.Path, d.Version)
	}
	out += fmt.Sprintf("Dependencies:\n\n%s\n", deps.String())
	return out
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and dependency information for the binary",
	Long:  `Print the version and dependency information for the binary`,
	// The version needs no configuration.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(Version())
	},
}
