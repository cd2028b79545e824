// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LiangCY/dinosaur-wiki/internal/agent"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print well-known dinosaurs worth researching",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		for _, name := range agent.Recommend(count) {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().Int("count", agent.DefaultRecommendations, "number of names (max 20)")

	rootCmd.AddCommand(recommendCmd)
}
