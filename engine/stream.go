package engine

import (
	"context"
	"io"
	"strings"

	"codegen/provider"
	"codegen/text"
	"codegen/types"
)

// sanitizedStream filters a completion stream through a text.Sanitizer,
// dropping code fences and cursor markers before the differ sees them.
type sanitizedStream struct {
	inner provider.TextStream
	s     *text.Sanitizer
	done  bool
}

func newSanitizedStream(inner provider.TextStream) *sanitizedStream {
	return &sanitizedStream{inner: inner, s: text.NewSanitizer()}
}

func (ss *sanitizedStream) Next(ctx context.Context) (string, error) {
	if ss.done {
		return "", io.EOF
	}
	for {
		chunk, err := ss.inner.Next(ctx)
		if err == io.EOF {
			ss.done = true
			if tail := ss.s.Finish(); tail != "" {
				return tail, nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		if out := ss.s.Push(chunk); out != "" {
			return out, nil
		}
	}
}

func emptyTextStream() provider.TextStream {
	return provider.StreamFunc(func(context.Context) (string, error) {
		return "", io.EOF
	})
}

// toolTextStream adapts a structured event stream to a plain text stream
// of rewrite deltas. The rewrite tool reports its replacement text
// cumulatively, so only the unseen suffix of each payload is yielded.
// Plain text events are collected as auxiliary output and never reach the
// edit pipeline.
type toolTextStream struct {
	events    provider.EventStream
	first     *string
	charsRead int

	messageID string
	failure   string
	aux       strings.Builder
	usage     types.TokenUsage
}

// scanToRewrite consumes events until the first rewrite delta. io.EOF
// means the stream ended without the model attempting a rewrite.
func (t *toolTextStream) scanToRewrite(ctx context.Context) (string, error) {
	for {
		ev, err := t.events.Next(ctx)
		if err != nil {
			return "", err
		}
		if s, ok, err := t.handle(ev); err != nil {
			return "", err
		} else if ok {
			return s, nil
		}
	}
}

func (t *toolTextStream) Next(ctx context.Context) (string, error) {
	if t.first != nil {
		s := *t.first
		t.first = nil
		return s, nil
	}
	for {
		ev, err := t.events.Next(ctx)
		if err != nil {
			return "", err
		}
		if s, ok, err := t.handle(ev); err != nil {
			return "", err
		} else if ok && s != "" {
			return s, nil
		}
	}
}

// handle processes one event; ok reports a rewrite delta in s.
func (t *toolTextStream) handle(ev provider.StreamEvent) (s string, ok bool, err error) {
	switch ev.Kind {
	case provider.EventStartMessage:
		t.messageID = ev.MessageID
	case provider.EventText:
		t.aux.WriteString(ev.Text)
	case provider.EventUsageUpdate:
		t.usage = ev.Usage
	case provider.EventToolUse:
		if ev.Tool == nil {
			break
		}
		if failure := ev.Tool.Payload.Failure; failure != nil {
			t.failure = failure.Message
			break
		}
		if rewrite := ev.Tool.Payload.Rewrite; rewrite != nil {
			return t.delta(rewrite.ReplacementText), true, nil
		}
	case provider.EventStop:
		return "", false, io.EOF
	}
	return "", false, nil
}

// delta returns the unseen suffix of the cumulative replacement text.
func (t *toolTextStream) delta(cumulative string) string {
	if len(cumulative) <= t.charsRead {
		return ""
	}
	d := cumulative[t.charsRead:]
	t.charsRead = len(cumulative)
	return d
}
