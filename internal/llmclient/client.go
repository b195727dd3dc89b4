package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the endpoint answers with no choices.
var ErrEmptyResponse = errors.New("llmclient: completion response has no choices")

// Message is one role-tagged chat message.
type Message = openai.ChatCompletionMessage

func System(content string) Message {
	return Message{Role: openai.ChatMessageRoleSystem, Content: content}
}

func User(content string) Message {
	return Message{Role: openai.ChatMessageRoleUser, Content: content}
}

// Client wraps a chat-completion endpoint (a local vLLM server or a remote
// OpenAI-compatible API) with the sampling parameters of one run.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New builds a client for the given base URL. baseURL is the server root
// (e.g. "http://127.0.0.1:8000"); the OpenAI path prefix is appended unless
// already present. An empty baseURL means the default OpenAI API.
func New(baseURL, apiKey, model string, maxTokens int, temperature float32) *Client {
	if apiKey == "" {
		// vLLM ignores the key but the client requires a bearer token.
		apiKey = "EMPTY"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		base := strings.TrimSuffix(baseURL, "/")
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		cfg.BaseURL = base
	}

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Complete sends one chat-completion request and returns the generated text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// Model returns the model identifier requests are issued under.
func (c *Client) Model() string {
	return c.model
}
