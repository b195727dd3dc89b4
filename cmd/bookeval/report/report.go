package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/aggregate"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/jsonl"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/report"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

var Cmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate graded JSONL files into a per-file score table",
	RunE:  runReport,
}

var (
	resultsDir string
	outputPath string
)

func init() {
	flags := Cmd.Flags()
	flags.StringVar(&resultsDir, "results-dir", "", "Directory containing graded JSONL files")
	flags.StringVar(&outputPath, "output", "results.csv", "Output CSV file")
	Cmd.MarkFlagRequired("results-dir")
}

func runReport(_ *cobra.Command, _ []string) error {
	paths, err := filepath.Glob(filepath.Join(resultsDir, "*.jsonl"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no JSONL files found in %s", resultsDir)
	}
	sort.Strings(paths)

	rows := make([]types.AggregationRow, 0, len(paths))
	for _, path := range paths {
		records, err := jsonl.ReadRecords(path)
		if err != nil {
			return err
		}
		rows = append(rows, aggregate.Aggregate(filepath.Base(path), records))
	}

	if err := report.WriteFile(outputPath, rows); err != nil {
		return err
	}

	fmt.Printf("Results saved to %s\n", outputPath)
	return nil
}
