package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"),
		schema.UserMessage("hello world"),
	}
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	if got := EstimateMessages(msgs); got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_TrimContext_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	chunks := []string{"RAG combines retrieval with generation.", "Chroma is a vector database."}
	got := TrimContext("Question: what is RAG?", chunks, DefaultMaxContextTokens)
	if len(got) != 2 {
		t.Errorf("want 2 chunks, got %d", len(got))
	}
}

func Test_TrimContext_DropsFarthest(t *testing.T) {
	t.Parallel()
	chunks := []string{
		strings.Repeat("a", 40), // nearest, 10 tokens
		strings.Repeat("b", 40), // 10 tokens
		strings.Repeat("c", 40), // farthest, 10 tokens
	}
	// fixed: 4 overhead + Estimate("q")=1 = 5; budget 25 keeps two chunks.
	got := TrimContext("q", chunks, 25)
	if len(got) != 2 {
		t.Fatalf("want 2 chunks after trim, got %d", len(got))
	}
	if got[0] != chunks[0] || got[1] != chunks[1] {
		t.Errorf("nearest chunks must be kept in order, got %v", got)
	}
}

func Test_TrimContext_AllDroppedWhenFixedExceedsBudget(t *testing.T) {
	t.Parallel()
	fixed := strings.Repeat("x", 4*7000) // ~7000 tokens
	got := TrimContext(fixed, []string{"a", "b"}, 6000)
	if len(got) != 0 {
		t.Errorf("want 0 chunks, got %d", len(got))
	}
}

func Test_TrimContext_ZeroBudgetDisablesTrimming(t *testing.T) {
	t.Parallel()
	chunks := []string{strings.Repeat("z", 4000)}
	if got := TrimContext("q", chunks, 0); len(got) != 1 {
		t.Errorf("want trimming disabled, got %d chunks", len(got))
	}
}
