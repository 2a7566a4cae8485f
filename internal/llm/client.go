// Package llm is the chat completion provider boundary. Agents build a
// Request and hand it to a Client; each vendor SDK lives behind its own
// Client implementation selected once by Family.
package llm

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is the vendor-neutral message representation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
	TotalTokens  int32 `json:"total_tokens"`
}

// Add returns the field-wise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		TotalTokens:  u.TotalTokens + o.TotalTokens,
	}
}

// Request is one completion call. Seed is nil when the caller wants
// stochastic sampling.
type Request struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Temperature float32
	Seed        *int64
	MaxTokens   int32
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client performs a single chat completion round trip.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
