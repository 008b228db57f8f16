// Package reasoning separates inline <think> blocks from assistant output.
package reasoning

import "strings"

const (
	OpenTag  = "<think>"
	CloseTag = "</think>"
)

// Split returns the visible content and the concatenated reasoning of a
// complete message. An unterminated block runs to the end of the text.
func Split(text string) (content, reasoning string) {
	var s Splitter
	content, reasoning = s.Feed(text)
	c, r := s.Flush()
	return content + c, reasoning + r
}

// Splitter does the same over a stream of deltas. Tags split across chunk
// boundaries are held back until the next Feed.
type Splitter struct {
	inside  bool
	pending string
}

func (s *Splitter) Feed(chunk string) (content, reasoning string) {
	text := s.pending + chunk
	s.pending = ""

	var out, think strings.Builder
	for text != "" {
		tag, dst := OpenTag, &out
		if s.inside {
			tag, dst = CloseTag, &think
		}

		if i := strings.Index(text, tag); i >= 0 {
			dst.WriteString(text[:i])
			text = text[i+len(tag):]
			s.inside = !s.inside
			continue
		}

		keep := partialSuffix(text, tag)
		dst.WriteString(text[:len(text)-keep])
		s.pending = text[len(text)-keep:]
		break
	}
	return out.String(), think.String()
}

// Flush releases any held-back partial tag as plain text.
func (s *Splitter) Flush() (content, reasoning string) {
	rest := s.pending
	s.pending = ""
	if s.inside {
		return "", rest
	}
	return rest, ""
}

// partialSuffix is the length of the longest suffix of text that is a proper
// prefix of tag.
func partialSuffix(text, tag string) int {
	for n := min(len(tag)-1, len(text)); n > 0; n-- {
		if strings.HasPrefix(tag, text[len(text)-n:]) {
			return n
		}
	}
	return 0
}
