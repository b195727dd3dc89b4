package generate

import (
	"context"
	"strings"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/dispatch"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/llmclient"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

// Per-domain system prompts, keyed by the dataset file-name prefix
// (e.g. "econ-microeconomics.jsonl" -> "econ").
var systemPrompts = map[string]string{
	"anthropology": "You are an Expert Anthropologist. Your task is to provide a thorough and accurate response.",
	"econ":         "You are an Expert Economist. Your task is to provide a thorough and accurate response.",
	"law":          "You are an Expert Lawyer. Your task is to provide a thorough and accurate response.",
	"phi":          "You are an Expert Philosopher. Your task is to provide a thorough and accurate response.",
}

const defaultSystemPrompt = "You are an Expert in your field. Your task is to provide a thorough and accurate response."

const instructionPrefix = "Ensure that your answer is precise and complete, covering all important aspects of the question:\n"

// SystemPromptFor selects the domain system prompt from the input file
// name. Unknown domains get the generic expert prompt.
func SystemPromptFor(fileName string) string {
	domain := strings.ToLower(strings.SplitN(fileName, "-", 2)[0])
	if prompt, ok := systemPrompts[domain]; ok {
		return prompt
	}
	return defaultSystemPrompt
}

// BuildPrompt assembles the generation prompt for one record. Choice lists
// are appended as an options block whenever present, regardless of type tag.
func BuildPrompt(rec types.BatchRecord) string {
	question := rec.Question
	if len(rec.Choices) > 0 {
		question += "\nOptions:\n" + strings.Join(rec.Choices, "\n")
	}
	return instructionPrefix + question
}

// Generate asks the completion endpoint to answer one record's question and
// writes the raw response into llm_answer.
func Generate(ctx context.Context, client *llmclient.Client, system string, rec types.BatchRecord) (types.BatchRecord, error) {
	messages := []llmclient.Message{
		llmclient.System(system),
		llmclient.User(BuildPrompt(rec)),
	}

	response, err := client.Complete(ctx, messages)
	if err != nil {
		return rec, err
	}

	rec.LLMAnswer = response
	return rec, nil
}

// Task adapts Generate to the dispatcher with a fixed system prompt.
func Task(client *llmclient.Client, system string) dispatch.Task {
	return func(ctx context.Context, rec types.BatchRecord) (types.BatchRecord, error) {
		return Generate(ctx, client, system, rec)
	}
}
