package eval

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/dispatch"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/llmclient"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

// Protocol selects how a generated answer is graded.
type Protocol int

const (
	// ProtocolBinary yields a true/false correctness verdict.
	ProtocolBinary Protocol = iota
	// ProtocolRating yields an integer quality score 1-5.
	ProtocolRating
)

// ProtocolFor maps a type tag to its grading protocol. Unrecognized and
// empty tags deliberately fall back to the binary protocol instead of
// erroring; that permissive default matches the dataset conventions.
func ProtocolFor(tag string) Protocol {
	if types.IsRatingType(tag) {
		return ProtocolRating
	}
	return ProtocolBinary
}

// The two accepted phrasings meaning "correct" in a judge verdict.
const (
	verdictCorrect     = "the answer is correct"
	verdictApproximate = "the answer is approximated but should be correct"
)

// ScoreBinary parses a free-text judge verdict into a correctness boolean.
// Matching is a case-insensitive substring check; anything that contains
// neither accepted phrasing is a false verdict, including responses that
// say no answer was found.
func ScoreBinary(response string) bool {
	r := strings.ToLower(response)
	return strings.Contains(r, verdictCorrect) || strings.Contains(r, verdictApproximate)
}

var ratingPattern = regexp.MustCompile(`(?i)Rating\s*:\s*([1-5])`)

// ExtractRating pulls the 1-5 rating following the "Rating:" marker out of
// a free-text judge response. It returns nil when no rating is present;
// the aggregator treats nil as "no contribution", not as zero.
func ExtractRating(response string) *int {
	m := ratingPattern.FindStringSubmatch(response)
	if m == nil {
		return nil
	}
	rating, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &rating
}

// Evaluate grades one record's generated answer against the judge endpoint,
// populating eval_feedback plus eval_result or eval_rating depending on the
// record's protocol. The raw judge response is kept verbatim for audit.
func Evaluate(ctx context.Context, client *llmclient.Client, rec types.BatchRecord) (types.BatchRecord, error) {
	proto := ProtocolFor(rec.TypeTag())

	var system string
	if proto == ProtocolRating {
		system = ratingSystemPrompt
	} else {
		system = checkSystemPrompt
	}

	messages := []llmclient.Message{
		llmclient.System(system),
		llmclient.User(buildUserPrompt(rec, proto)),
	}

	response, err := client.Complete(ctx, messages)
	if err != nil {
		return rec, err
	}

	rec.EvalFeedback = response
	if proto == ProtocolRating {
		rec.EvalRating = ExtractRating(response)
	} else {
		verdict := ScoreBinary(response)
		rec.EvalResult = &verdict
	}
	return rec, nil
}

// Task adapts Evaluate to the dispatcher.
func Task(client *llmclient.Client) dispatch.Task {
	return func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error) {
		return Evaluate(ctx, client, rec)
	}
}
