// Package budget estimates prompt size in tokens and trims retrieved context
// to fit a model's input window. Because several LLM backends with different
// tokenizers are supported, it uses a conservative character heuristic:
// 1 token ≈ 4 characters of English prose.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default prompt budget in tokens. It fits
	// 8k-context models while leaving room for the answer.
	DefaultMaxContextTokens = 6000

	// messageOverhead approximates the per-message framing most chat APIs add.
	messageOverhead = 4
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimContext drops chunks from the end of the ranked list (farthest first)
// until the fixed prompt text plus the remaining chunks fit within maxTokens.
// The relative order of kept chunks is unchanged. If even an empty context
// exceeds the budget, an empty slice is returned; the fixed text is never cut.
func TrimContext(fixed string, chunks []string, maxTokens int) []string {
	if maxTokens <= 0 || len(chunks) == 0 {
		return chunks
	}

	fixedTokens := messageOverhead + Estimate(fixed)
	total := fixedTokens
	for _, c := range chunks {
		total += Estimate(c)
	}
	for len(chunks) > 0 && total > maxTokens {
		total -= Estimate(chunks[len(chunks)-1])
		chunks = chunks[:len(chunks)-1]
	}
	return chunks
}
