package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	// DefaultModel is the default Solar model for digest generation.
	// Solar-Pro3 is a reasoning model; see extract.go for the leak recovery.
	DefaultModel = "solar-pro3"
	// DefaultBaseURL is the Upstage OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.upstage.ai/v1/solar"
	// DefaultReasoningEffort is passed to reasoning-capable models only.
	DefaultReasoningEffort = "low"
)

// minCallDelay is enforced after every completion call, success or failure,
// to stay under the provider's rate limit.
const minCallDelay = 1 * time.Second

// ChatRequest carries one chat completion request.
type ChatRequest struct {
	UserPrompt      string  // User message
	SystemPrompt    string  // Optional system message
	Temperature     float64 // Sampling temperature
	MaxTokens       int64   // Maximum response tokens
	Model           string  // Optional per-call model override
	ReasoningEffort string  // Reasoning level for Solar-Pro3; defaults to "low"
}

// Chatter is the single-call surface the pipeline stages depend on.
// *Client satisfies it; tests substitute fakes.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Client is the one chokepoint for all calls to the Solar text-generation
// service. It owns rate-limit pacing and response-extraction heuristics.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a Solar client against the Upstage endpoint.
// Empty baseURL and model fall back to the package defaults.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("upstage API key is required. Set UPSTAGE_API_KEY in the environment or .env.local")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	api := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	)

	return &Client{api: &api, model: model}, nil
}

// Model returns the default model this client sends requests to.
func (c *Client) Model() string {
	return c.model
}

// Chat sends one chat completion request and returns the assistant text.
// Network and API errors propagate to the caller; Chat itself never retries.
// When the model leaks its answer into the reasoning trace instead of the
// content field, the trailing Korean block is recovered from the trace.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(req.MaxTokens),
	}
	// Only reasoning models accept reasoning_effort.
	if strings.Contains(model, "pro3") {
		effort := req.ReasoningEffort
		if effort == "" {
			effort = DefaultReasoningEffort
		}
		params.ReasoningEffort = shared.ReasoningEffort(effort)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	time.Sleep(minCallDelay)
	if err != nil {
		return "", fmt.Errorf("solar chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in solar response")
	}

	msg := resp.Choices[0].Message
	content := msg.Content
	if content == "" {
		if trace := reasoningTrace(msg); trace != "" {
			content = ExtractKoreanTail(trace)
		}
	}
	return content, nil
}

// reasoningTrace pulls the nonstandard "reasoning" field Upstage attaches to
// the completion message for Solar-Pro3.
func reasoningTrace(msg openai.ChatCompletionMessage) string {
	field, ok := msg.JSON.ExtraFields["reasoning"]
	if !ok {
		return ""
	}
	var trace string
	if err := json.Unmarshal([]byte(field.Raw()), &trace); err != nil {
		return ""
	}
	return trace
}
