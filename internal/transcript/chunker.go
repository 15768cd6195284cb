package transcript

import (
	"regexp"
	"strings"
)

// sentencePattern matches one sentence including its terminator. Text after
// the last terminator is handled separately as a trailing fragment.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+["')\]]*`)

// splitSentences splits text into trimmed sentences. A trailing fragment
// without a terminator is kept as its own sentence so no text is lost.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	locs := sentencePattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	sentences := make([]string, 0, len(locs)+1)
	last := 0
	for _, loc := range locs {
		s := strings.TrimSpace(text[loc[0]:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// chunkText splits text into sentence-bounded windows of at most chunkSize
// characters with roughly overlap characters shared between consecutive
// windows. A sentence is never split: a single sentence longer than
// chunkSize becomes a chunk on its own. The last window may be shorter
// than chunkSize.
func chunkText(text string, chunkSize, overlap int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		// Grow the window until the next sentence would overflow it.
		size := 0
		end := i
		for end < len(sentences) {
			add := len(sentences[end])
			if end > i {
				add++ // joining space
			}
			if size+add > chunkSize && end > i {
				break
			}
			size += add
			end++
		}

		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}

		// Step back whole sentences from the window end until the carried
		// text covers the configured overlap. The window must still advance,
		// so at least one leading sentence is always left behind.
		next := end
		carried := 0
		for next > i+1 && carried < overlap {
			next--
			carried += len(sentences[next]) + 1
		}
		i = next
	}
	return chunks
}
