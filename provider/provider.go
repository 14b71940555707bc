// Package provider abstracts the model transports the engine generates
// text through.
package provider

import (
	"context"
	"errors"

	"codegen/types"
)

// ErrStreamClosed reports a model stream that ended before it signaled
// completion.
var ErrStreamClosed = errors.New("provider: model stream closed unexpectedly")

// Tool names the structured generation path dispatches on.
const (
	RewriteSectionToolName = "rewrite_section"
	FailureMessageToolName = "failure_message"
)

// TextStream yields completion text incrementally. Next returns io.EOF
// after the final chunk.
type TextStream interface {
	Next(ctx context.Context) (string, error)
}

// StreamFunc adapts a function to a TextStream.
type StreamFunc func(ctx context.Context) (string, error)

func (f StreamFunc) Next(ctx context.Context) (string, error) {
	return f(ctx)
}

// EventKind classifies structured stream events.
type EventKind int

const (
	EventStartMessage EventKind = iota
	EventText
	EventToolUse
	EventUsageUpdate
	EventStop
)

// ToolCallPayload is the decoded input of a tool call. Exactly one field
// is non-nil; the transport decodes the raw input by tool name so
// consumers never touch raw JSON.
type ToolCallPayload struct {
	Rewrite *types.RewriteSectionInput
	Failure *types.FailureMessageInput
}

// ToolCall is one (possibly partial) tool invocation from the model.
type ToolCall struct {
	Name    string
	Payload ToolCallPayload
}

// StreamEvent is one event of a structured model stream. The populated
// fields depend on Kind.
type StreamEvent struct {
	Kind       EventKind
	MessageID  string          // EventStartMessage
	Text       string          // EventText
	Tool       *ToolCall       // EventToolUse
	Usage      types.TokenUsage // EventUsageUpdate
	StopReason string          // EventStop
}

// EventStream yields structured stream events. Next returns io.EOF after
// the final event.
type EventStream interface {
	Next(ctx context.Context) (StreamEvent, error)
}

// ModelCapabilities describes what a model's transport supports.
type ModelCapabilities struct {
	StreamingTools bool
	ToolChoice     bool
}

// Request is a generation request.
type Request struct {
	Prompt string
}

// Model is one model endpoint.
type Model interface {
	Name() string
	Capabilities() ModelCapabilities

	// StreamText starts a plain text generation.
	StreamText(ctx context.Context, req *Request) (TextStream, error)

	// StreamEvents starts a structured generation with tool calls.
	StreamEvents(ctx context.Context, req *Request) (EventStream, error)
}

// ProcessReporter is implemented by models backed by a local child
// process. A non-nil ExitError explains an unexpected stream closure.
type ProcessReporter interface {
	ExitError() error
}

// ModelRegistry supplies the models used for alternative generations. It
// is consulted on every start, so registry changes take effect on the
// next generation.
type ModelRegistry interface {
	AlternativeModels() []Model
}

// StaticRegistry is a fixed-model ModelRegistry.
type StaticRegistry struct {
	Models []Model
}

func (r *StaticRegistry) AlternativeModels() []Model {
	return r.Models
}
