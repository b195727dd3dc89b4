package dispatch

import (
	"context"
	"fmt"

	"github.com/gammazero/workerpool"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

// ErrorPrefix marks a record field whose content is a dispatch failure
// rather than model output.
const ErrorPrefix = "[ERROR]"

// ErrorMarker renders err as a record field value.
func ErrorMarker(err error) string {
	return ErrorPrefix + " " + err.Error()
}

// Task processes one record against an endpoint and returns the record with
// its dispatch-produced fields populated. Retry policies layer on by
// wrapping the Task; the dispatcher itself does not retry.
type Task func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error)

// Result is the per-record outcome: either the populated record or the
// error that prevented it. Failures stay visible in the output instead of
// being swallowed mid-pool.
type Result struct {
	Record types.BatchRecord
	Err    error
}

// Run executes task once per record with at most limit tasks in flight,
// and returns one Result per input record in input order regardless of
// completion order. A failing record never aborts its siblings; its Result
// carries the error and the original record.
func Run(ctx context.Context, records []types.BatchRecord, limit int, task Task) []Result {
	if limit <= 0 {
		limit = 1
	}

	results := make([]Result, len(records))
	wp := workerpool.New(limit)
	for i := range records {
		i := i
		rec := records[i]
		wp.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result{Record: rec, Err: fmt.Errorf("dispatch task panicked: %v", r)}
				}
			}()

			if err := ctx.Err(); err != nil {
				results[i] = Result{Record: rec, Err: err}
				return
			}

			out, err := task(ctx, rec)
			if err != nil {
				results[i] = Result{Record: rec, Err: err}
				return
			}
			results[i] = Result{Record: out}
		})
	}
	wp.StopWait()

	return results
}
