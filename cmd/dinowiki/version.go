// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd prints the version stamped in by mage build through
// -ldflags "-X main.version=<git describe>". Plain go build reports "dev".
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dinowiki build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dinowiki %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
