package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/app"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/config"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/report"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/runner"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

var Cmd = &cobra.Command{
	Use:   "eval",
	Short: "Grade answered dataset files with a judge model and aggregate scores",
	RunE:  runEval,
}

var (
	evalInputFiles []string
	evalReportPath string
)

func init() {
	flags := Cmd.Flags()

	flags.StringSliceVar(&evalInputFiles, "input-files", nil, "Answered JSONL files to grade")
	flags.StringVar(&evalReportPath, "report", "", "Optional CSV report path for the aggregated scores")
	flags.String("models-dir", "", "Directory containing one subfolder per judge model")
	flags.String("model-name", "", "Judge model name (single model or remote mode)")
	flags.String("model-path", "", "Judge model path (single model)")
	flags.String("api-base", "", "Remote API base URL, used when no model path is given")
	flags.String("api-key", "", "API key for the judge endpoint")
	flags.String("output-dir", "", "Directory to write graded files to")
	flags.IntSlice("gpu-ids", nil, "GPU device ids available to backend servers")
	flags.Int("port-start", 0, "First port for backend servers; each device adds its id")
	flags.Int("threads", 0, "Record-level request concurrency per backend")
	flags.Int("max-tokens", 0, "Maximum tokens per judge response")
	flags.Float64("temperature", 0, "Sampling temperature for the judge")
	flags.Bool("progress", true, "Show per-file progress bars")

	config.BindFlags(flags)

	Cmd.MarkFlagRequired("input-files")
}

func runEval(_ *cobra.Command, _ []string) error {
	cfg := config.MustGetConfig()

	jobs, err := runner.JobsFromConfig(cfg)
	if err != nil {
		return err
	}
	if len(evalInputFiles) == 0 {
		return fmt.Errorf("no input files given")
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results := runner.New(a).RunEvaluation(a.Context(), jobs, evalInputFiles)

	var rows []types.AggregationRow
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		rows = append(rows, res.Row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].FileName < rows[j].FileName })

	if evalReportPath != "" && len(rows) > 0 {
		if err := report.WriteFile(evalReportPath, rows); err != nil {
			return err
		}
		a.Logger.Sugar().Infof("Report saved to %s", evalReportPath)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file runs failed", failed, len(results))
	}
	return nil
}
