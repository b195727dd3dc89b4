package types

import (
	"encoding/json"
	"strings"
)

// Question type tags as they appear in the dataset files.
const (
	TypeJudge        = "judge"
	TypeSingleChoice = "single-choice"
	TypeMultiChoice  = "multi-choice"
	TypeFill         = "fill"
	TypeOpen         = "open"

	// TypeUnlabeled is the aggregation bucket for records whose type
	// field is empty. They are still graded with the binary protocol.
	TypeUnlabeled = "unlabeled"
)

// BatchRecord is one dataset item. The json tags are the wire contract of
// the input/output JSONL files; fields the pipeline does not rewrite must
// round-trip unchanged, including fields we do not know about (Extra).
type BatchRecord struct {
	Question     string   `json:"question"`
	Answer       string   `json:"answer,omitempty"`
	Choices      []string `json:"choices,omitempty"`
	Type         string   `json:"type,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
	LLMAnswer    string   `json:"llm_answer,omitempty"`
	EvalFeedback string   `json:"eval_feedback,omitempty"`
	EvalResult   *bool    `json:"eval_result,omitempty"`
	EvalRating   *int     `json:"eval_rating,omitempty"`

	// Extra holds input fields this pipeline does not model, preserved
	// verbatim so they reappear in the output record.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownRecordFields = map[string]struct{}{
	"question":      {},
	"answer":        {},
	"choices":       {},
	"type":          {},
	"explanation":   {},
	"llm_answer":    {},
	"eval_feedback": {},
	"eval_result":   {},
	"eval_rating":   {},
}

func (r *BatchRecord) UnmarshalJSON(data []byte) error {
	type alias BatchRecord
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range knownRecordFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		a.Extra = raw
	}

	*r = BatchRecord(a)
	return nil
}

func (r BatchRecord) MarshalJSON() ([]byte, error) {
	type alias BatchRecord
	data, err := json.Marshal(alias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// TypeTag returns the record's type tag normalized for protocol and
// bucket selection.
func (r BatchRecord) TypeTag() string {
	return strings.ToLower(strings.TrimSpace(r.Type))
}

// AggregationRow is the per-file summary: one aggregated score per type tag
// observed in the file.
type AggregationRow struct {
	FileName string
	Scores   map[string]float64
}

// IsRatingType reports whether records tagged with tag are graded with the
// 1-5 rating protocol instead of the binary correctness protocol.
func IsRatingType(tag string) bool {
	return tag == TypeFill || tag == TypeOpen
}
