package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/aggregate"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/app"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/backend"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/config"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/devicepool"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/dispatch"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/eval"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/generate"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/jsonl"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/llmclient"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

// ModelJob is one backend lane: a model to serve and run every input file
// through. An empty Path means remote mode: requests go to the configured
// API base without leasing a device or starting a server.
type ModelJob struct {
	Name string
	Path string
}

// FileResult is the outcome of processing one input file on one lane.
// Row.Scores is populated for evaluation runs only.
type FileResult struct {
	Model      string
	InputFile  string
	OutputFile string
	Row        types.AggregationRow
	Err        error
}

// Runner drives the two-level pipeline: one goroutine per model lane,
// bounded by the device pool, and a bounded record fan-out within each
// lane's session.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	pool     *devicepool.Pool
	backends *backend.Manager
}

func New(a *app.App) *Runner {
	return &Runner{
		cfg:      a.Config(),
		logger:   a.Logger,
		pool:     a.Pool(),
		backends: backend.NewManager(a.Config(), a.Logger),
	}
}

// fileFunc processes one input file against a live endpoint.
type fileFunc func(ctx context.Context, endpoint string, job ModelJob, input string) FileResult

// RunGeneration answers every record of every input file with each model.
func (r *Runner) RunGeneration(ctx context.Context, jobs []ModelJob, inputs []string) []FileResult {
	runID := uuid.NewString()
	r.logger.Info("Starting generation run",
		zap.String("run_id", runID),
		zap.Int("models", len(jobs)),
		zap.Int("files", len(inputs)),
		zap.Int("devices", r.pool.Size()),
	)
	return r.run(ctx, jobs, inputs, r.generateFile)
}

// RunEvaluation grades every record of every input file with each judge
// model and aggregates scores per file.
func (r *Runner) RunEvaluation(ctx context.Context, jobs []ModelJob, inputs []string) []FileResult {
	runID := uuid.NewString()
	r.logger.Info("Starting evaluation run",
		zap.String("run_id", runID),
		zap.Int("models", len(jobs)),
		zap.Int("files", len(inputs)),
		zap.Int("devices", r.pool.Size()),
	)
	return r.run(ctx, jobs, inputs, r.evaluateFile)
}

// run fans model lanes out in parallel. Lanes beyond the device pool's
// capacity block in Acquire, so concurrency is bounded by the pool itself
// rather than a separate worker count. Each lane's results are merged only
// after its files fully complete; an irrecoverable lane failure is
// reported per file and leaves sibling lanes untouched.
func (r *Runner) run(ctx context.Context, jobs []ModelJob, inputs []string, process fileFunc) []FileResult {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []FileResult
	)

	for _, job := range jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()

			var results []FileResult
			err := r.withSession(ctx, job, func(endpoint string) error {
				for _, input := range inputs {
					res := process(ctx, endpoint, job, input)
					if res.Err != nil {
						r.logger.Error("File processing failed",
							zap.String("model", job.Name),
							zap.String("file", input),
							zap.Error(res.Err),
						)
					}
					results = append(results, res)
				}
				return nil
			})
			if err != nil {
				// No endpoint ever existed for this lane; every file
				// assigned to it fails as a unit.
				results = results[:0]
				for _, input := range inputs {
					results = append(results, FileResult{Model: job.Name, InputFile: input, Err: err})
				}
				r.logger.Error("Backend session failed",
					zap.String("model", job.Name),
					zap.Error(err),
				)
			}

			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return all
}

// withSession runs fn against a ready endpoint for the job. In local mode
// it acquires a device lease, starts a backend on it and guarantees the
// stop/release pair on every exit path; the deferred release makes leaking
// a lease impossible even when startup or fn fails.
func (r *Runner) withSession(ctx context.Context, job ModelJob, fn func(endpoint string) error) error {
	if job.Path == "" {
		if r.cfg.APIBase == "" {
			return fmt.Errorf("model %s has no path and no api_base is configured", job.Name)
		}
		return fn(r.cfg.APIBase)
	}

	device, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire device: %w", err)
	}
	defer r.pool.Release(device)

	port := r.cfg.PortStart + int(device)
	inst, err := r.backends.Start(ctx, job.Name, job.Path, device, port)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := r.backends.Stop(inst); stopErr != nil {
			r.logger.Warn("Backend stop reported error",
				zap.String("model", job.Name),
				zap.Error(stopErr),
			)
		}
	}()

	return fn(inst.BaseURL())
}

func (r *Runner) generateFile(ctx context.Context, endpoint string, job ModelJob, input string) FileResult {
	res := FileResult{Model: job.Name, InputFile: input}

	records, err := jsonl.ReadRecords(input)
	if err != nil {
		res.Err = err
		return res
	}

	base := filepath.Base(input)
	client := llmclient.New(endpoint, r.cfg.APIKey, job.Name, r.cfg.MaxTokens, float32(r.cfg.Temperature))
	task := generate.Task(client, generate.SystemPromptFor(base))
	task, wait := r.withProgress(job.Name+" "+base, len(records), task)

	started := time.Now()
	results := dispatch.Run(ctx, records, r.cfg.Threads, task)
	wait()

	out := r.collect(job.Name, input, results, func(rec *types.BatchRecord, err error) {
		rec.LLMAnswer = dispatch.ErrorMarker(err)
	})

	res.OutputFile = filepath.Join(r.cfg.OutputDir, job.Name+"_"+base)
	if err := jsonl.WriteRecords(res.OutputFile, out); err != nil {
		res.Err = err
		return res
	}

	r.logger.Info("Generation complete",
		zap.String("model", job.Name),
		zap.String("file", base),
		zap.Int("records", len(out)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res
}

func (r *Runner) evaluateFile(ctx context.Context, endpoint string, job ModelJob, input string) FileResult {
	res := FileResult{Model: job.Name, InputFile: input}

	records, err := jsonl.ReadRecords(input)
	if err != nil {
		res.Err = err
		return res
	}

	base := filepath.Base(input)
	client := llmclient.New(endpoint, r.cfg.APIKey, job.Name, r.cfg.MaxTokens, float32(r.cfg.Temperature))
	task := eval.Task(client)
	task, wait := r.withProgress(job.Name+" "+base, len(records), task)

	started := time.Now()
	results := dispatch.Run(ctx, records, r.cfg.Threads, task)
	wait()

	out := r.collect(job.Name, input, results, func(rec *types.BatchRecord, err error) {
		rec.EvalFeedback = dispatch.ErrorMarker(err)
	})

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	res.OutputFile = filepath.Join(r.cfg.OutputDir, job.Name+"_"+stem+"_eval.jsonl")
	if err := jsonl.WriteRecords(res.OutputFile, out); err != nil {
		res.Err = err
		return res
	}

	res.Row = aggregate.Aggregate(filepath.Base(res.OutputFile), out)
	if percent, counted := aggregate.Accuracy(out); counted > 0 {
		r.logger.Info("Accuracy",
			zap.String("model", job.Name),
			zap.String("file", base),
			zap.String("accuracy", fmt.Sprintf("%.2f%%", percent)),
			zap.Int("counted", counted),
		)
	}

	r.logger.Info("Evaluation complete",
		zap.String("model", job.Name),
		zap.String("file", base),
		zap.Int("records", len(out)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res
}

// collect turns dispatch results back into an output record list of the
// same order and cardinality, writing an error marker into failed records
// so failures stay visible in the output data.
func (r *Runner) collect(model, input string, results []dispatch.Result, mark func(rec *types.BatchRecord, err error)) []types.BatchRecord {
	out := make([]types.BatchRecord, len(results))
	for i, res := range results {
		rec := res.Record
		if res.Err != nil {
			mark(&rec, res.Err)
			r.logger.Warn("Record dispatch failed",
				zap.String("model", model),
				zap.String("file", filepath.Base(input)),
				zap.Int("index", i),
				zap.Error(res.Err),
			)
		}
		out[i] = rec
	}
	return out
}

// withProgress wraps task with a progress bar when enabled. The returned
// wait func flushes the bar after the dispatch completes.
func (r *Runner) withProgress(name string, total int, task dispatch.Task) (dispatch.Task, func()) {
	if !r.cfg.Progress || total == 0 {
		return task, func() {}
	}

	progress := mpb.New(
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)
	bar := progress.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: 40, C: decor.DidentRight}),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	// The dispatcher recovers task panics, so the increment must run even
	// when task does not return; otherwise the bar never fills and Wait
	// blocks the lane.
	wrapped := func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error) {
		defer bar.Increment()
		return task(ctx, rec)
	}
	return wrapped, progress.Wait
}
