package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bomdiff/internal/core"
)

var (
	exportQuery string
	exportName1 string
	exportName2 string
	exportDir   string
)

var exportCmd = &cobra.Command{
	Use:   "export <result.json>",
	Short: "Export a saved comparison to Excel",
	Long: `Write the Change, Delete and Add parts of a saved comparison to an xlsx
workbook. The file name is derived from the two BOM names.

Examples:
  bomdiff export result.json --name1 rev-a.xlsx --name2 rev-b.xlsx
  bomdiff export result.json -q U1 -d reports/`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportQuery, "query", "q", "", "Only export parts matching this term")
	exportCmd.Flags().StringVar(&exportName1, "name1", "", "Display name of File 1")
	exportCmd.Flags().StringVar(&exportName2, "name2", "", "Display name of File 2")
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", ".", "Output directory")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	result, err := readResult(args[0])
	if err != nil {
		return err
	}

	path, err := exportResult(result, core.DisplayNames{File1: exportName1, File2: exportName2}, exportQuery, exportDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// exportResult writes the filtered workbook into dir and returns its path.
func exportResult(result *core.ComparisonResult, names core.DisplayNames, term, dir string) (string, error) {
	filtered, err := core.Filter(result, term)
	if err != nil {
		return "", err
	}
	artifact, err := core.Export(filtered, names)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, artifact.FileName)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
