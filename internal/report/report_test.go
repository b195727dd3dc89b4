package report

import (
	"bytes"
	"encoding/csv"
	"reflect"
	"testing"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

func TestWrite_UnionColumnsWithBlanks(t *testing.T) {
	rows := []types.AggregationRow{
		{FileName: "a_eval.jsonl", Scores: map[string]float64{"judge": 100.0, "open": 4.0}},
		{FileName: "b_eval.jsonl", Scores: map[string]float64{"fill": 3.5, "judge": 66.6666666}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, rows); err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}

	wantHeader := []string{"FileName", "fill", "judge", "open"}
	if !reflect.DeepEqual(parsed[0], wantHeader) {
		t.Fatalf("header = %v, want %v", parsed[0], wantHeader)
	}
	if !reflect.DeepEqual(parsed[1], []string{"a_eval.jsonl", "", "100.00", "4.00"}) {
		t.Fatalf("row a = %v", parsed[1])
	}
	if !reflect.DeepEqual(parsed[2], []string{"b_eval.jsonl", "3.50", "66.67", ""}) {
		t.Fatalf("row b = %v", parsed[2])
	}
}

func TestWrite_NoRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(parsed) != 1 || parsed[0][0] != "FileName" {
		t.Fatalf("empty report = %v, want bare header", parsed)
	}
}
