// Package llm is an OpenAI-compatible streaming HTTP client implementing
// provider.Model for both the plain completion endpoint and the
// structured event endpoint.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"codegen/logger"
	"codegen/provider"
	"codegen/types"
)

// CompletionRequest matches the OpenAI completion API format.
type CompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
	Tools       []Tool   `json:"tools,omitempty"`
	ToolChoice  string   `json:"tool_choice,omitempty"`
}

// Tool declares a callable tool in a structured request.
type Tool struct {
	Name string `json:"name"`
}

// streamChunk is one SSE payload from the plain completion endpoint.
type streamChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Index        int    `json:"index"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// eventChunk is one SSE payload from the structured endpoint.
type eventChunk struct {
	Type      string            `json:"type"`
	MessageID string            `json:"message_id,omitempty"`
	Text      string            `json:"text,omitempty"`
	ToolName  string            `json:"tool_name,omitempty"`
	ToolInput json.RawMessage   `json:"tool_input,omitempty"`
	Usage     *types.TokenUsage `json:"usage,omitempty"`
	Reason    string            `json:"stop_reason,omitempty"`
}

// Client is an OpenAI-compatible API client for one model endpoint.
type Client struct {
	HTTPClient *http.Client

	cfg types.ModelConfig
}

func NewClient(cfg types.ModelConfig) *Client {
	httpClient := &http.Client{}
	if cfg.TimeoutMs > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return &Client{HTTPClient: httpClient, cfg: cfg}
}

func (c *Client) Name() string {
	return c.cfg.Name
}

func (c *Client) Capabilities() provider.ModelCapabilities {
	return provider.ModelCapabilities{
		StreamingTools: c.cfg.SupportsStreamingTools,
		ToolChoice:     c.cfg.SupportsToolChoice,
	}
}

// StreamText starts a plain streaming completion.
func (c *Client) StreamText(ctx context.Context, req *provider.Request) (provider.TextStream, error) {
	body, err := c.openStream(ctx, "/v1/completions", &CompletionRequest{
		Model:       c.cfg.Name,
		Prompt:      req.Prompt,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan string, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer body.Close()
		errs <- c.readTextStream(ctx, body, chunks)
	}()
	return &chanStream{chunks: chunks, errs: errs}, nil
}

// StreamEvents starts a structured completion with the rewrite and
// failure tools declared.
func (c *Client) StreamEvents(ctx context.Context, req *provider.Request) (provider.EventStream, error) {
	body, err := c.openStream(ctx, "/v1/responses", &CompletionRequest{
		Model:       c.cfg.Name,
		Prompt:      req.Prompt,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      true,
		Tools: []Tool{
			{Name: provider.RewriteSectionToolName},
			{Name: provider.FailureMessageToolName},
		},
		ToolChoice: "auto",
	})
	if err != nil {
		return nil, err
	}

	events := make(chan provider.StreamEvent, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer body.Close()
		errs <- c.readEventStream(ctx, body, events)
	}()
	return &chanEventStream{events: events, errs: errs}, nil
}

// openStream sends the request and returns the response body positioned
// at the start of the SSE stream.
func (c *Client) openStream(ctx context.Context, path string, req *CompletionRequest) (io.ReadCloser, error) {
	var reqBody bytes.Buffer
	encoder := json.NewEncoder(&reqBody)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	payload := reqBody.Bytes()
	compressed := c.cfg.CompressRequests
	if compressed {
		var buf bytes.Buffer
		// Quality 1 favors latency over ratio.
		w := brotli.NewWriterLevel(&buf, 1)
		if _, err := w.Write(payload); err != nil {
			return nil, fmt.Errorf("failed to compress request: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close brotli writer: %w", err)
		}
		payload = buf.Bytes()
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.URL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	if compressed {
		httpReq.Header.Set("Content-Encoding", "br")
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// readTextStream decodes SSE completion chunks into text. A stream that
// ends without the DONE sentinel reports provider.ErrStreamClosed. Sends
// race against ctx so a cancelled consumer never strands the reader.
func (c *Client) readTextStream(ctx context.Context, body io.Reader, chunks chan<- string) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := sseData(scanner.Text())
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return nil
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Debug("llm stream: failed to parse chunk: %v", err)
			continue
		}
		if len(chunk.Choices) > 0 {
			if text := chunk.Choices[0].Text; text != "" {
				select {
				case chunks <- text:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if chunk.Choices[0].FinishReason != "" {
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("llm stream: %w", err)
	}
	return provider.ErrStreamClosed
}

// readEventStream decodes SSE event chunks, decoding tool inputs by tool
// name so consumers never see raw JSON.
func (c *Client) readEventStream(ctx context.Context, body io.Reader, events chan<- provider.StreamEvent) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := sseData(scanner.Text())
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return nil
		}
		var chunk eventChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Debug("llm stream: failed to parse event: %v", err)
			continue
		}
		ev, err := chunk.toEvent()
		if err != nil {
			logger.Debug("llm stream: %v", err)
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
		if ev.Kind == provider.EventStop {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("llm stream: %w", err)
	}
	return provider.ErrStreamClosed
}

func (ec *eventChunk) toEvent() (provider.StreamEvent, error) {
	switch ec.Type {
	case "message_start":
		return provider.StreamEvent{Kind: provider.EventStartMessage, MessageID: ec.MessageID}, nil
	case "text":
		return provider.StreamEvent{Kind: provider.EventText, Text: ec.Text}, nil
	case "tool_use":
		call := &provider.ToolCall{Name: ec.ToolName}
		switch ec.ToolName {
		case provider.RewriteSectionToolName:
			var input types.RewriteSectionInput
			if err := json.Unmarshal(ec.ToolInput, &input); err != nil {
				return provider.StreamEvent{}, fmt.Errorf("failed to decode rewrite input: %w", err)
			}
			call.Payload.Rewrite = &input
		case provider.FailureMessageToolName:
			var input types.FailureMessageInput
			if err := json.Unmarshal(ec.ToolInput, &input); err != nil {
				return provider.StreamEvent{}, fmt.Errorf("failed to decode failure input: %w", err)
			}
			call.Payload.Failure = &input
		default:
			return provider.StreamEvent{}, fmt.Errorf("unknown tool %q", ec.ToolName)
		}
		return provider.StreamEvent{Kind: provider.EventToolUse, Tool: call}, nil
	case "usage":
		ev := provider.StreamEvent{Kind: provider.EventUsageUpdate}
		if ec.Usage != nil {
			ev.Usage = *ec.Usage
		}
		return ev, nil
	case "stop":
		return provider.StreamEvent{Kind: provider.EventStop, StopReason: ec.Reason}, nil
	default:
		return provider.StreamEvent{}, fmt.Errorf("unknown event type %q", ec.Type)
	}
}

// sseData extracts the payload of one SSE data line.
func sseData(line string) (string, bool) {
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}
	if !strings.HasPrefix(line, "data: ") {
		return "", false
	}
	return strings.TrimPrefix(line, "data: "), true
}

// chanStream adapts the reader goroutine's channels to a TextStream.
type chanStream struct {
	chunks <-chan string
	errs   <-chan error
	err    error
	done   bool
}

func (s *chanStream) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", s.finalErr()
	}
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			s.done = true
			return "", s.finalErr()
		}
		return chunk, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *chanStream) finalErr() error {
	if s.err == nil {
		s.err = <-s.errs
		if s.err == nil {
			s.err = io.EOF
		}
	}
	return s.err
}

// chanEventStream adapts the reader goroutine's channels to an
// EventStream.
type chanEventStream struct {
	events <-chan provider.StreamEvent
	errs   <-chan error
	err    error
	done   bool
}

func (s *chanEventStream) Next(ctx context.Context) (provider.StreamEvent, error) {
	if s.done {
		return provider.StreamEvent{}, s.finalErr()
	}
	select {
	case ev, ok := <-s.events:
		if !ok {
			s.done = true
			return provider.StreamEvent{}, s.finalErr()
		}
		return ev, nil
	case <-ctx.Done():
		return provider.StreamEvent{}, ctx.Err()
	}
}

func (s *chanEventStream) finalErr() error {
	if s.err == nil {
		s.err = <-s.errs
		if s.err == nil {
			s.err = io.EOF
		}
	}
	return s.err
}
