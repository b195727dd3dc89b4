package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

func numberedRecords(n int) []types.BatchRecord {
	records := make([]types.BatchRecord, n)
	for i := range records {
		records[i] = types.BatchRecord{Question: strconv.Itoa(i)}
	}
	return records
}

func TestRun_PreservesOrderAndCardinality(t *testing.T) {
	records := numberedRecords(50)

	// Randomized latency forces out-of-order completion.
	task := func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		rec.LLMAnswer = "answer-" + rec.Question
		return rec, nil
	}

	results := Run(context.Background(), records, 8, task)

	if len(results) != len(records) {
		t.Fatalf("got %d results, want %d", len(results), len(records))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("result %d: unexpected error %v", i, res.Err)
		}
		if want := "answer-" + strconv.Itoa(i); res.Record.LLMAnswer != want {
			t.Fatalf("result %d holds %q, want %q", i, res.Record.LLMAnswer, want)
		}
	}
}

func TestRun_BoundedConcurrency(t *testing.T) {
	const limit = 4
	var inFlight, peak int64

	task := func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return rec, nil
	}

	Run(context.Background(), numberedRecords(32), limit, task)

	if p := atomic.LoadInt64(&peak); p > limit {
		t.Fatalf("observed %d tasks in flight, limit %d", p, limit)
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	errBoom := errors.New("boom")
	task := func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error) {
		i, _ := strconv.Atoi(rec.Question)
		if i%3 == 0 {
			return rec, fmt.Errorf("record %d: %w", i, errBoom)
		}
		rec.LLMAnswer = "ok"
		return rec, nil
	}

	results := Run(context.Background(), numberedRecords(12), 4, task)

	for i, res := range results {
		if i%3 == 0 {
			if !errors.Is(res.Err, errBoom) {
				t.Fatalf("result %d: got err %v, want boom", i, res.Err)
			}
			if res.Record.Question != strconv.Itoa(i) {
				t.Fatalf("result %d lost its record", i)
			}
		} else if res.Err != nil {
			t.Fatalf("result %d failed alongside its sibling: %v", i, res.Err)
		}
	}
}

func TestRun_RecoversTaskPanic(t *testing.T) {
	task := func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error) {
		if rec.Question == "1" {
			panic("task exploded")
		}
		return rec, nil
	}

	results := Run(context.Background(), numberedRecords(3), 2, task)

	if results[1].Err == nil || !strings.Contains(results[1].Err.Error(), "task exploded") {
		t.Fatalf("panic not surfaced as error: %v", results[1].Err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("panic leaked into sibling results: %v %v", results[0].Err, results[2].Err)
	}
}

func TestRun_CanceledContextFailsRecordsNotStarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error) {
		return rec, nil
	}

	results := Run(ctx, numberedRecords(5), 2, task)
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("result %d: got err %v, want canceled", i, res.Err)
		}
	}
}
