package rag

import (
	"strings"
	"unicode"
)

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 64
)

// SplitText splits text into overlapping chunks of at most size runes,
// preferring to break at sentence boundaries. Sentences longer than size
// fall back to a fixed sliding window.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}

	var chunks []string
	var cur []rune

	flush := func() {
		trimmed := strings.TrimSpace(string(cur))
		if trimmed == "" {
			cur = nil
			return
		}
		chunks = append(chunks, trimmed)
		if overlap > 0 && len(cur) > overlap {
			cur = append([]rune(nil), cur[len(cur)-overlap:]...)
		} else {
			cur = nil
		}
	}

	for _, sentence := range splitSentences(text) {
		r := []rune(sentence)

		if len(r) > size {
			// Oversized sentence: emit what we have, then window it.
			if trimmed := strings.TrimSpace(string(cur)); trimmed != "" {
				chunks = append(chunks, trimmed)
			}
			cur = nil
			for i := 0; i < len(r); {
				end := i + size
				if end > len(r) {
					end = len(r)
				}
				chunks = append(chunks, strings.TrimSpace(string(r[i:end])))
				i += size - overlap
				if i >= len(r) {
					break
				}
			}
			continue
		}

		if len(cur) > 0 && len(cur)+1+len(r) > size {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, r...)
	}

	// The tail may hold only the overlap carried from the last flush.
	if trimmed := strings.TrimSpace(string(cur)); trimmed != "" {
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], trimmed) {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	var cur []rune
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			if s := strings.TrimSpace(string(cur)); s != "" {
				out = append(out, s)
			}
			cur = nil
			continue
		}
		cur = append(cur, r)
		if isSentenceEnd(r) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(string(cur)); s != "" {
				out = append(out, s)
			}
			cur = nil
		}
	}
	if s := strings.TrimSpace(string(cur)); s != "" {
		out = append(out, s)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
