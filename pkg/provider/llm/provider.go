// Package llm defines the Provider interface for the text-completion backends
// that grade sales calls.
//
// A provider wraps a remote or local model API (e.g., OpenAI GPT-4o, Anthropic
// Claude, or a local Ollama instance) and exposes a single blocking completion
// call. The analysis pipeline makes no schema assumption about the returned
// text — salvaging structure out of it is the parser's job, not the
// provider's.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
// Counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to grade one call.
// A zero-value request is invalid; at minimum UserPrompt must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional high-priority instruction injected before
	// the user prompt. Providers without native system-prompt support should
	// prepend it as a "system"-role message.
	SystemPrompt string

	// UserPrompt is the full grading prompt: scorecard, rubric, transcript,
	// and output-format instructions.
	UserPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Grading runs use
	// low values for reproducibility.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply to a [CompletionRequest].
type CompletionResponse struct {
	// Content is the full text of the reply. The pipeline treats it as an
	// arbitrary string; it is usually JSON wrapped in prose or a code fence.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any text-completion backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Complete must return as soon as possible after ctx is cancelled; the
// caller attaches a per-invocation deadline and treats expiry as a transport
// failure.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// A non-nil error indicates a transport or availability failure; it never
	// reflects the semantic quality of the returned text.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
