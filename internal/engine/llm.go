package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CallLLM sends a prompt using the configured temperature and max_tokens.
func CallLLM(ctx context.Context, prompt string) (string, error) {
	metrics.LLMCalls.Add(1)
	resp, err := cfg.LLMClient.Complete(ctx, "", prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return stripFences(resp), nil
}

// CallLLMToJSON sends a prompt and unmarshals the fenced JSON response into T.
// Low temperature and a small token cap keep scoring calls cheap and stable.
func CallLLMToJSON[T any](ctx context.Context, prompt string, maxTokens int) (T, error) {
	var out T
	metrics.LLMCalls.Add(1)
	raw, err := cfg.LLMClient.Complete(ctx, "", prompt,
		llm.WithChatTemperature(0.0),
		llm.WithChatMaxTokens(maxTokens),
	)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return out, err
	}
	raw = stripFences(raw)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("llm: parse failed on %q: %w", Truncate(raw, 200), err)
	}
	return out, nil
}
