// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/store"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write records with their fossils and images to a YAML or JSON file",
	Long: `Export reads the configured record store directly and writes every record
matching the filters, with fossils and images. The format follows the file
extension (.json, otherwise YAML). Use "-" for stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create records from a file written by export",
	Long: `Import creates the records in file, with their fossils and images, in the
configured record store. Records whose name is already stored are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().String("search", "", "only records whose name, scientific name or description contains this")
	exportCmd.Flags().String("period", "", "only records from this period")
	exportCmd.Flags().String("diet", "", "only records with this diet")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func formatFor(path string) store.Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return store.FormatJSON
	}
	return store.FormatYAML
}

func openStore(cmd *cobra.Command) (store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cmd.Context(), cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var f types.Filter
	f.Search, _ = cmd.Flags().GetString("search")
	f.Period, _ = cmd.Flags().GetString("period")
	f.Diet, _ = cmd.Flags().GetString("diet")

	path := args[0]
	if path == "-" {
		return store.Export(cmd.Context(), st, f, cmd.OutOrStdout(), store.FormatYAML)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := store.Export(cmd.Context(), st, f, out, formatFor(path)); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logger.Info("records exported", zap.String("path", path))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	path := args[0]
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer in.Close()

	res, err := store.Import(cmd.Context(), st, in, formatFor(path))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d record(s), skipped %d already stored.\n", res.Created, res.Skipped)
	return nil
}
