package transcript

import (
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "basic sentences",
			text: "Cats are mammals. Dogs are mammals too.",
			want: []string{"Cats are mammals.", "Dogs are mammals too."},
		},
		{
			name: "mixed terminators",
			text: "Really? Yes! Good.",
			want: []string{"Really?", "Yes!", "Good."},
		},
		{
			name: "trailing fragment without terminator",
			text: "First sentence. trailing words",
			want: []string{"First sentence.", "trailing words"},
		},
		{
			name: "no terminator at all",
			text: "just a fragment",
			want: []string{"just a fragment"},
		},
		{
			name: "empty input",
			text: "   \n  ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("splitSentences() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkText_SingleChunkWhenSmall(t *testing.T) {
	text := "Cats are mammals. Dogs are mammals too."

	chunks := chunkText(text, 800, 100)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != text {
		t.Errorf("chunk = %q, want %q", chunks[0], text)
	}
}

func TestChunkText_NeverSplitsSentences(t *testing.T) {
	sentences := []string{
		"The first lesson covers variables.",
		"The second lesson covers functions.",
		"The third lesson covers structs.",
		"The fourth lesson covers interfaces.",
		"The fifth lesson covers errors.",
	}
	text := strings.Join(sentences, " ")

	chunks := chunkText(text, 80, 30)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 80 && !containsWholeSentence(chunk, sentences) {
			t.Errorf("chunk %d exceeds size without a single oversized sentence: %q", i, chunk)
		}
		// Every chunk must be a join of consecutive whole input sentences.
		for _, part := range splitSentences(chunk) {
			if !contains(sentences, part) {
				t.Errorf("chunk %d contains a split sentence: %q", i, part)
			}
		}
	}
}

func TestChunkText_OverlapCarriesTrailingSentences(t *testing.T) {
	sentences := []string{
		"Alpha is the first topic.",
		"Beta is the second topic.",
		"Gamma is the third topic.",
		"Delta is the fourth topic.",
	}
	text := strings.Join(sentences, " ")

	chunks := chunkText(text, 60, 25)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d: %q", len(chunks), chunks)
	}
	for i := 1; i < len(chunks); i++ {
		prev := splitSentences(chunks[i-1])
		cur := splitSentences(chunks[i])
		if prev[len(prev)-1] != cur[0] {
			t.Errorf("chunk %d does not start with the previous chunk's last sentence:\nprev=%q\ncur=%q",
				i, chunks[i-1], chunks[i])
		}
	}
}

func TestChunkText_ReconstructsOriginal(t *testing.T) {
	sentences := []string{
		"One ends here.",
		"Two ends here.",
		"Three ends here.",
		"Four ends here.",
		"Five ends here.",
		"Six ends here.",
	}
	text := strings.Join(sentences, " ")

	chunks := chunkText(text, 45, 15)

	// Drop each chunk's leading sentences that repeat the previous chunk's
	// tail, then re-join: the result must be the original text.
	var rebuilt []string
	for i, chunk := range chunks {
		parts := splitSentences(chunk)
		if i > 0 {
			for len(parts) > 0 && contains(rebuilt, parts[0]) {
				parts = parts[1:]
			}
		}
		rebuilt = append(rebuilt, parts...)
	}
	if got := strings.Join(rebuilt, " "); got != text {
		t.Errorf("reconstructed text mismatch:\ngot  %q\nwant %q", got, text)
	}
}

func TestChunkText_OversizedSentenceBecomesOwnChunk(t *testing.T) {
	long := strings.Repeat("word ", 40) + "end."
	text := "Short one. " + long + " Short two."

	chunks := chunkText(text, 50, 10)

	found := false
	for _, c := range chunks {
		if strings.Contains(c, "end.") && strings.Contains(c, "word word") {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized sentence was not kept whole: %q", chunks)
	}
}

func TestChunkText_Empty(t *testing.T) {
	if chunks := chunkText("", 800, 100); chunks != nil {
		t.Errorf("expected no chunks for empty text, got %q", chunks)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsWholeSentence(chunk string, sentences []string) bool {
	for _, s := range sentences {
		if chunk == s {
			return true
		}
	}
	return false
}
