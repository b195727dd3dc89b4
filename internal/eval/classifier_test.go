package eval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/llmclient"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

func TestScoreBinary(t *testing.T) {
	cases := []struct {
		response string
		want     bool
	}{
		{"The answer is correct.", true},
		{"The answer is approximated but should be correct. Correct Answer: 42 | Answer extracted: 41.9.", true},
		{"The answer is incorrect. Correct Answer: 42 | Answer extracted: 7.", false},
		{"The reply doesn't contain an answer.", false},
		{"THE ANSWER IS CORRECT", true},
		{"", false},
	}
	for _, c := range cases {
		if got := ScoreBinary(c.response); got != c.want {
			t.Errorf("ScoreBinary(%q) = %v, want %v", c.response, got, c.want)
		}
	}
}

func TestExtractRating(t *testing.T) {
	cases := []struct {
		response string
		want     int // 0 means nil
	}{
		{"Rating: 4. Explanation: close.", 4},
		{"rating : 3 because of omissions", 3},
		{"RATING:5", 5},
		{"The reply is partially correct.", 0},
		{"Rating: 9. Off the scale.", 0},
		{"", 0},
	}
	for _, c := range cases {
		got := ExtractRating(c.response)
		if c.want == 0 {
			if got != nil {
				t.Errorf("ExtractRating(%q) = %d, want nil", c.response, *got)
			}
			continue
		}
		if got == nil || *got != c.want {
			t.Errorf("ExtractRating(%q) = %v, want %d", c.response, got, c.want)
		}
	}
}

func TestProtocolFor(t *testing.T) {
	binary := []string{types.TypeJudge, types.TypeSingleChoice, types.TypeMultiChoice, "", "essay", "unknown-tag"}
	for _, tag := range binary {
		if ProtocolFor(tag) != ProtocolBinary {
			t.Errorf("ProtocolFor(%q) != binary", tag)
		}
	}
	for _, tag := range []string{types.TypeFill, types.TypeOpen} {
		if ProtocolFor(tag) != ProtocolRating {
			t.Errorf("ProtocolFor(%q) != rating", tag)
		}
	}
}

// completionServer fakes an OpenAI-compatible chat endpoint; reply decides
// the assistant text from the incoming system and user messages.
func completionServer(t *testing.T, reply func(system, user string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		var system, user string
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				system = m.Content
			case "user":
				user = m.Content
			}
		}

		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]string{
					"role":    "assistant",
					"content": reply(system, user),
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEvaluate_BinaryProtocol(t *testing.T) {
	var gotSystem, gotUser string
	srv := completionServer(t, func(system, user string) string {
		gotSystem, gotUser = system, user
		return "The answer is correct."
	})
	defer srv.Close()

	client := llmclient.New(srv.URL, "", "judge-model", 256, 0.7)
	rec := types.BatchRecord{
		Question:  "What is 2+2?",
		Answer:    "4",
		LLMAnswer: "The result is 4.",
		Type:      types.TypeSingleChoice,
		Choices:   []string{"A. 3", "B. 4"},
	}

	out, err := Evaluate(context.Background(), client, rec)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.EvalResult == nil || !*out.EvalResult {
		t.Fatalf("eval_result = %v, want true", out.EvalResult)
	}
	if out.EvalRating != nil {
		t.Fatalf("binary protocol set eval_rating %d", *out.EvalRating)
	}
	if out.EvalFeedback != "The answer is correct." {
		t.Fatalf("eval_feedback not kept verbatim: %q", out.EvalFeedback)
	}
	if !strings.Contains(gotSystem, "verify the answer") {
		t.Fatalf("judge system prompt not sent: %q", gotSystem)
	}
	if !strings.Contains(gotUser, "Options:\nA. 3\nB. 4") {
		t.Fatalf("choices not appended to the problem: %q", gotUser)
	}
	if strings.Contains(gotUser, "Ground truth explanation") {
		t.Fatalf("binary prompt leaked the explanation: %q", gotUser)
	}
}

func TestEvaluate_RatingProtocol(t *testing.T) {
	var gotSystem, gotUser string
	srv := completionServer(t, func(system, user string) string {
		gotSystem, gotUser = system, user
		return "Rating: 4. Explanation: close to the ground truth."
	})
	defer srv.Close()

	client := llmclient.New(srv.URL, "", "judge-model", 256, 0.7)
	rec := types.BatchRecord{
		Question:    "Explain supply and demand.",
		Answer:      "Prices balance supply with demand.",
		Explanation: "Equilibrium arises where curves intersect.",
		LLMAnswer:   "Supply and demand set prices.",
		Type:        types.TypeOpen,
	}

	out, err := Evaluate(context.Background(), client, rec)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.EvalRating == nil || *out.EvalRating != 4 {
		t.Fatalf("eval_rating = %v, want 4", out.EvalRating)
	}
	if out.EvalResult != nil {
		t.Fatalf("rating protocol set eval_result %v", *out.EvalResult)
	}
	if !strings.Contains(gotSystem, "Assign a rating from 1 to 5") {
		t.Fatalf("rating system prompt not sent: %q", gotSystem)
	}
	if !strings.Contains(gotUser, "Ground truth explanation: Equilibrium arises") {
		t.Fatalf("explanation missing from rating prompt: %q", gotUser)
	}
}

func TestEvaluate_UnrecognizedTagFallsBackToBinary(t *testing.T) {
	srv := completionServer(t, func(system, user string) string {
		return "The reply doesn't contain an answer."
	})
	defer srv.Close()

	client := llmclient.New(srv.URL, "", "judge-model", 256, 0.7)
	out, err := Evaluate(context.Background(), client, types.BatchRecord{
		Question:  "Q",
		Answer:    "A",
		LLMAnswer: "?",
		Type:      "mystery-type",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.EvalResult == nil || *out.EvalResult {
		t.Fatalf("fallback verdict = %v, want false", out.EvalResult)
	}
}

func TestEvaluate_NoRatingFound(t *testing.T) {
	srv := completionServer(t, func(system, user string) string {
		return "I cannot assess this reply."
	})
	defer srv.Close()

	client := llmclient.New(srv.URL, "", "judge-model", 256, 0.7)
	out, err := Evaluate(context.Background(), client, types.BatchRecord{
		Question:  "Q",
		Answer:    "A",
		LLMAnswer: "?",
		Type:      types.TypeFill,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.EvalRating != nil {
		t.Fatalf("eval_rating = %d, want absent", *out.EvalRating)
	}
	if out.EvalFeedback != "I cannot assess this reply." {
		t.Fatalf("feedback not retained: %q", out.EvalFeedback)
	}
}
