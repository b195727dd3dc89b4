package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

// Write renders the aggregated report as CSV: one row per processed file,
// one column per type tag observed across all rows (union, sorted), blank
// cells where a file has no countable records for a tag.
func Write(w io.Writer, rows []types.AggregationRow) error {
	tagSet := make(map[string]struct{})
	for _, row := range rows {
		for tag := range row.Scores {
			tagSet[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	cw := csv.NewWriter(w)
	header := append([]string{"FileName"}, tags...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	for _, row := range rows {
		cells := make([]string, 0, len(header))
		cells = append(cells, row.FileName)
		for _, tag := range tags {
			if score, ok := row.Scores[tag]; ok {
				cells = append(cells, fmt.Sprintf("%.2f", score))
			} else {
				cells = append(cells, "")
			}
		}
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("write report row %s: %w", row.FileName, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path, creating parent directories.
func WriteFile(path string, rows []types.AggregationRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := Write(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
