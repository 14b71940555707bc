package types

// GenerationConfig carries the user-level settings a generation consults at
// start time. It is passed in explicitly rather than read from global state.
type GenerationConfig struct {
	// UseStreamingTools selects the structured tool-call generation path for
	// models that support it. The plain text streaming path is used otherwise.
	UseStreamingTools bool
}

// TokenUsage tracks token counts reported by the model transport.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// RewriteSectionInput is the cumulative payload of the rewrite tool call.
// ReplacementText grows across successive events; consumers must extract
// only the unseen suffix.
type RewriteSectionInput struct {
	ReplacementText string `json:"replacement_text"`
}

// FailureMessageInput is the payload of the failure tool call: a user-facing
// explanation of why the model declined to rewrite the selection.
type FailureMessageInput struct {
	Message string `json:"message"`
}

// ModelConfig describes one model endpoint.
type ModelConfig struct {
	Name                   string  `toml:"name"`
	URL                    string  `toml:"url"`
	APIKey                 string  `toml:"api_key"`
	Temperature            float64 `toml:"temperature"`
	MaxTokens              int     `toml:"max_tokens"`
	SupportsStreamingTools bool    `toml:"supports_streaming_tools"`
	SupportsToolChoice     bool    `toml:"supports_tool_choice"`
	TimeoutMs              int     `toml:"timeout_ms"`
	CompressRequests       bool    `toml:"compress_requests"`
}
