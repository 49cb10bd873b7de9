package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bomdiff/internal/compare"
	"github.com/JonMunkholm/bomdiff/internal/core"
)

var (
	compareBackend string
	compareOutput  string
	compareTimeout time.Duration
)

var compareCmd = &cobra.Command{
	Use:   "compare <file1> <file2>",
	Short: "Compare two BOM workbooks",
	Long: `Send two BOM workbooks (.xlsx or .xls) to the comparison backend and
write the classified result as JSON.

The result can be filtered and exported later without the backend.

Examples:
  bomdiff compare rev-a.xlsx rev-b.xlsx
  bomdiff compare rev-a.xlsx rev-b.xlsx -o result.json
  bomdiff compare a.xlsx b.xlsx --backend http://bom-api:8000`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	backend := os.Getenv("COMPARE_BACKEND_URL")
	if backend == "" {
		backend = "http://localhost:8000"
	}
	compareCmd.Flags().StringVar(&compareBackend, "backend", backend, "Comparison backend base URL")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "", "Write the result to this file instead of stdout")
	compareCmd.Flags().DurationVar(&compareTimeout, "timeout", compare.DefaultTimeout, "Backend request timeout")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	file1, err := readSource(args[0])
	if err != nil {
		return err
	}
	file2, err := readSource(args[1])
	if err != nil {
		return err
	}

	client, err := compare.New(compareBackend, compare.WithTimeout(compareTimeout))
	if err != nil {
		return err
	}

	result, err := client.Compare(cmd.Context(), file1, file2)
	if err != nil {
		return fmt.Errorf("%s (%w)", core.FormatUserError(err), err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if compareOutput != "" {
		f, err := os.Create(compareOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := writeResult(out, result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	s := result.SummaryStats
	fmt.Fprintf(cmd.ErrOrStderr(), "Delete: %d  Add: %d  Change: %d  Unchanged: %d  Unrecognized: %d\n",
		s.RemovedPartsCount, s.NewPartsCount, s.ModifiedPartsCount, s.UnchangedPartsCount, s.UnrecognizedPartsCount)
	return nil
}

func readSource(path string) (core.SourceFile, error) {
	if err := compare.CheckExtension(path); err != nil {
		return core.SourceFile{}, fmt.Errorf("%s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.SourceFile{}, err
	}
	return core.SourceFile{Name: filepath.Base(path), Data: data}, nil
}
