package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/app"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/config"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/runner"
)

var Cmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate answers for dataset files across the configured models",
	RunE:  runGen,
}

var genInputFiles []string

func init() {
	flags := Cmd.Flags()

	flags.StringSliceVar(&genInputFiles, "input-files", nil, "Input JSONL dataset files")
	flags.String("models-dir", "", "Directory containing one subfolder per model")
	flags.String("model-name", "", "Model name (single model or remote mode)")
	flags.String("model-path", "", "Model path (single model)")
	flags.String("api-base", "", "Remote API base URL, used when no model path is given")
	flags.String("api-key", "", "API key for the completion endpoint")
	flags.String("output-dir", "", "Directory to write answered files to")
	flags.IntSlice("gpu-ids", nil, "GPU device ids available to backend servers")
	flags.Int("port-start", 0, "First port for backend servers; each device adds its id")
	flags.Int("threads", 0, "Record-level request concurrency per backend")
	flags.Int("max-tokens", 0, "Maximum tokens per generation")
	flags.Float64("temperature", 0, "Sampling temperature")
	flags.Bool("progress", true, "Show per-file progress bars")

	config.BindFlags(flags)

	Cmd.MarkFlagRequired("input-files")
}

func runGen(_ *cobra.Command, _ []string) error {
	cfg := config.MustGetConfig()

	jobs, err := runner.JobsFromConfig(cfg)
	if err != nil {
		return err
	}
	if len(genInputFiles) == 0 {
		return fmt.Errorf("no input files given")
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results := runner.New(a).RunGeneration(a.Context(), jobs, genInputFiles)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file runs failed", failed, len(results))
	}
	return nil
}
