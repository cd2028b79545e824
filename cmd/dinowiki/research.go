// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/LiangCY/dinosaur-wiki/internal/agent"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [names...]",
	Short: "Research dinosaurs and save them through a running backend",
	Long: `Research runs the research workflow for each name: web search, LLM
extraction and validation, then create-or-update through the backend REST API
(see --backend-url). Names come from arguments and from --names-file, a YAML
list. Subjects run one after another; a failure does not stop the batch, but
the command exits non-zero if any subject failed.`,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().String("names-file", "", "YAML file with a list of dinosaur names")
	researchCmd.Flags().StringP("output", "o", "json", "output format: json or yaml")
	researchCmd.Flags().String("backend-url", "", "backend REST API base URL (default http://localhost:3000)")
	researchCmd.Flags().Bool("include-fossils", false, "also search, extract and save fossil finds")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	namesFile, _ := cmd.Flags().GetString("names-file")
	output, _ := cmd.Flags().GetString("output")
	if output != "json" && output != "yaml" {
		return fmt.Errorf("unknown output format %q (want json or yaml)", output)
	}

	names, err := collectNames(args, namesFile)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("provide one or more dinosaur names or --names-file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := cfg.Agent
	if u, _ := cmd.Flags().GetString("backend-url"); u != "" {
		opts.BackendURL = u
	}
	if cmd.Flags().Changed("include-fossils") {
		f, _ := cmd.Flags().GetBool("include-fossils")
		opts.IncludeFossils = &f
	}

	a, err := agent.New(cmd.Context(), opts, agent.Deps{Log: logger})
	if err != nil {
		return err
	}

	results := a.ResearchMany(cmd.Context(), names)
	if err := writeResults(cmd.OutOrStdout(), output, results); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d subject(s) failed", failed, len(results))
	}
	return nil
}

// collectNames merges argument names with the names in path, dropping
// blanks and keeping order.
func collectNames(args []string, path string) ([]string, error) {
	all := append([]string{}, args...)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading names file: %w", err)
		}
		var fromFile []string
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parsing names file %s: %w", path, err)
		}
		all = append(all, fromFile...)
	}

	names := make([]string, 0, len(all))
	for _, n := range all {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

func writeResults(w io.Writer, format string, results []types.ResearchResult) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(results)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
