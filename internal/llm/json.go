package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hunkim/botmadang-digest/internal/logger"
)

// retryDelay is the pause between JSON parse retries.
const retryDelay = 1 * time.Second

// ResponseFormatError reports that the model never produced parseable JSON
// within the allowed retries. LastResponse holds a truncated prefix of the
// final raw response for diagnosis.
type ResponseFormatError struct {
	Attempts     int
	LastResponse string
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("no parseable JSON after %d attempts: %s", e.Attempts, e.LastResponse)
}

var (
	codeBlockPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	objectPattern    = regexp.MustCompile(`(\{[\s\S]*\})`)
	arrayPattern     = regexp.MustCompile(`(\[[\s\S]*\])`)
)

// ChatJSON calls Chat up to maxRetries times and parses each response through
// the fallback chain in extractJSON. Generation output format is not
// contractually guaranteed even when the prompt demands JSON, so parse
// failures are retried with a fresh generation; chat transport errors
// propagate immediately without retry. After exhausting retries the failure
// surfaces as a *ResponseFormatError.
func ChatJSON(ctx context.Context, c Chatter, req ChatRequest, maxRetries int) (json.RawMessage, error) {
	var lastText string

	for attempt := 1; attempt <= maxRetries; attempt++ {
		text, err := c.Chat(ctx, req)
		if err != nil {
			return nil, err
		}

		raw, perr := extractJSON(text)
		if perr == nil {
			return raw, nil
		}

		lastText = text
		logger.Warn("JSON parse failed, retrying", "attempt", attempt, "max_retries", maxRetries)
		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	return nil, &ResponseFormatError{
		Attempts:     maxRetries,
		LastResponse: truncate(lastText, 200),
	}
}

// ChatJSON is the method form of the package function.
func (c *Client) ChatJSON(ctx context.Context, req ChatRequest, maxRetries int) (json.RawMessage, error) {
	return ChatJSON(ctx, c, req, maxRetries)
}

// extractJSON pulls a JSON value out of model output. Fallback order:
// the whole string, a fenced code block, the first {...} span, the first
// [...] span. The first candidate that parses wins.
func extractJSON(text string) (json.RawMessage, error) {
	candidates := []string{strings.TrimSpace(text)}

	if m := codeBlockPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := objectPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := arrayPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, fmt.Errorf("could not parse JSON from response: %s", truncate(text, 200))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
