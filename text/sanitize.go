package text

import "strings"

const (
	codeBlockDelimiter = "```"
	cursorSpan         = "<|CURSOR|>"
)

// Sanitizer strips model output artifacts from a completion stream: a
// leading code fence line, the matching trailing fence, and every cursor
// marker. Text that could still turn into one of those tokens is held back
// until the next chunk completes or disproves it, so the emitted text is
// identical no matter how the input was chunked.
type Sanitizer struct {
	buffer              string
	done                bool
	firstLine           bool
	lineEnd             bool
	startsWithCodeBlock bool
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{firstLine: true}
}

// Push feeds one upstream chunk and returns the text that is now safe to
// emit, which may be empty.
func (s *Sanitizer) Push(chunk string) string {
	s.buffer += chunk
	return s.drain()
}

// Finish signals end of input and returns any remaining text.
func (s *Sanitizer) Finish() string {
	s.done = true
	return s.drain()
}

func (s *Sanitizer) drain() string {
	var out strings.Builder
	consumed := 0
	if s.buffer != "" {
		lines := strings.Split(s.buffer, "\n")
		for ix, line := range lines {
			if ix > 0 {
				s.firstLine = false
			}
			last := ix == len(lines)-1

			if s.firstLine {
				trimmed := strings.TrimSpace(line)
				if !last {
					if strings.HasPrefix(trimmed, codeBlockDelimiter) {
						consumed += len(line) + 1
						s.startsWithCodeBlock = true
						continue
					}
				} else if trimmed == "" || startsWithPartial(trimmed, codeBlockDelimiter) {
					break
				}
			}

			withoutCursor := strings.ReplaceAll(line, cursorSpan, "")
			if !last {
				if s.lineEnd {
					out.WriteByte('\n')
				}
				out.WriteString(withoutCursor)
				s.lineEnd = true
				consumed += len(line) + 1
			} else if s.done {
				// Drop a trailing fence only if the stream opened with one.
				if !s.startsWithCodeBlock || !strings.HasSuffix(strings.TrimSpace(withoutCursor), codeBlockDelimiter) {
					if s.lineEnd {
						out.WriteByte('\n')
					}
					out.WriteString(withoutCursor)
				}
				consumed += len(line)
			} else {
				trimmed := strings.TrimSpace(line)
				if trimmed == "" || endsWithPartial(trimmed, cursorSpan) || endsWithPartial(trimmed, codeBlockDelimiter) {
					// Could be the start of a token split across chunks.
					break
				}
				if s.lineEnd {
					out.WriteByte('\n')
					s.lineEnd = false
				}
				out.WriteString(withoutCursor)
				consumed += len(line)
			}
		}
	}
	s.buffer = s.buffer[consumed:]
	return out.String()
}

// startsWithPartial reports whether s starts with a proper prefix of token.
func startsWithPartial(s, token string) bool {
	for i := 1; i < len(token); i++ {
		if strings.HasPrefix(s, token[:i]) {
			return true
		}
	}
	return false
}

// endsWithPartial reports whether s ends with a proper prefix of token.
func endsWithPartial(s, token string) bool {
	for i := 1; i < len(token); i++ {
		if strings.HasSuffix(s, token[:i]) {
			return true
		}
	}
	return false
}
