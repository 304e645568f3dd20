package retrieval

import (
	"regexp"
	"strings"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// ChunkText splits text into paragraphs and cuts paragraphs longer than size
// into windows of size characters overlapping by overlap characters.
func ChunkText(text string, size, overlap int) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, splitLong(p, size, overlap)...)
	}
	return out
}

// splitLong works on runes so multi-byte characters are never cut.
func splitLong(s string, size, overlap int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}

	var res []string
	for i := 0; i < len(runes); i += size - overlap {
		end := min(i+size, len(runes))
		if part := strings.TrimSpace(string(runes[i:end])); part != "" {
			res = append(res, part)
		}
		if end == len(runes) {
			break
		}
	}
	return res
}
