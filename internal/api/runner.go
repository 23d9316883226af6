package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Generator is the prompt-in/text-out boundary the panel nodes consume.
// Streaming is used for output destined for live display (moderator,
// expert, collaborator, synthesis); non-streaming for output that feeds
// further processing (historian, librarian summaries, decisions).
type Generator interface {
	// Generate runs a system+user prompt and returns the full text response.
	Generate(ctx context.Context, system, user string) (string, error)
	// GenerateStreaming runs a system+user prompt, invoking onDelta for
	// each text fragment as it arrives, and returns the full response.
	// onDelta may be nil.
	GenerateStreaming(ctx context.Context, system, user string, onDelta func(string)) (string, error)
}

// Runner provides text-in/text-out Claude API calls. It implements
// Generator over a Client.
type Runner struct {
	client    *Client
	maxTokens int64
	retry     RetryPolicy
}

// NewRunner creates a new API runner.
func NewRunner(client *Client) *Runner {
	return &Runner{
		client:    client,
		maxTokens: 8192,
		retry:     DefaultRetryPolicy(),
	}
}

// SetRetryPolicy overrides the retry policy for transient API failures.
func (r *Runner) SetRetryPolicy(p RetryPolicy) {
	r.retry = p
}

// Generate executes a prompt with a system message and returns the text response.
func (r *Runner) Generate(ctx context.Context, system, user string) (string, error) {
	var out string
	err := withRetry(ctx, r.retry, func() error {
		resp, err := r.client.sdk().Messages.New(ctx, r.params(system, user))
		if err != nil {
			return fmt.Errorf("API call failed: %w", err)
		}
		r.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var result strings.Builder
		for _, block := range resp.Content {
			if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
				result.WriteString(variant.Text)
			}
		}
		out = result.String()
		return nil
	})
	return out, err
}

// GenerateStreaming executes a prompt, forwarding text deltas to onDelta
// as they arrive, and returns the accumulated response.
func (r *Runner) GenerateStreaming(ctx context.Context, system, user string, onDelta func(string)) (string, error) {
	var out string
	err := withRetry(ctx, r.retry, func() error {
		stream := r.client.sdk().Messages.NewStreaming(ctx, r.params(system, user))

		var message anthropic.Message
		var result strings.Builder
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				return fmt.Errorf("accumulate stream event: %w", err)
			}
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
					result.WriteString(delta.Text)
					if onDelta != nil {
						onDelta(delta.Text)
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("stream failed: %w", err)
		}

		r.client.Tracker().Add(message.Usage.InputTokens, message.Usage.OutputTokens)
		out = result.String()
		return nil
	})
	return out, err
}

func (r *Runner) params(system, user string) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:     r.client.Model(),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		p.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return p
}

// GenerateJSON executes a prompt through gen and parses the JSON
// response into target. Models often wrap JSON in prose; the first
// balanced JSON payload found in the response is used.
func GenerateJSON(ctx context.Context, gen Generator, system, user string, target interface{}) error {
	response, err := gen.Generate(ctx, system, user)
	if err != nil {
		return err
	}
	return ParseJSONResponse(response, target)
}

// ParseJSONResponse extracts and unmarshals the JSON payload in an LLM
// text response.
func ParseJSONResponse(response string, target interface{}) error {
	jsonStart := strings.Index(response, "{")
	if jsonStart == -1 {
		jsonStart = strings.Index(response, "[")
	}
	jsonEnd := strings.LastIndex(response, "}")
	if jsonEnd == -1 {
		jsonEnd = strings.LastIndex(response, "]")
	}

	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return fmt.Errorf("no valid JSON found in response: %s", truncate(response, 200))
	}

	jsonStr := response[jsonStart : jsonEnd+1]
	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(jsonStr, 200))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
