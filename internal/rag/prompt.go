package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// promptTemplate is the fixed instruction wrapped around the retrieved
// context and the user's question.
const promptTemplate = `You are a helpful assistant.
Use the provided context to answer the question.
If the answer is not in the context, say you don't know.

Context:
{context}

Question:
{question}
`

// contextSeparator joins chunk texts inside the Context section.
const contextSeparator = "\n\n"

var chatTemplate = prompt.FromMessages(schema.FString, schema.UserMessage(promptTemplate))

// AssemblePrompt renders the question-answering prompt. Chunk texts appear in
// the order given (nearest first) and the question is inserted verbatim.
func AssemblePrompt(ctx context.Context, docs []Document, question string) (string, error) {
	msgs, err := chatTemplate.Format(ctx, map[string]any{
		"context":  JoinContext(docs),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("rag: failed to render prompt: %w", err)
	}
	if len(msgs) != 1 {
		return "", fmt.Errorf("rag: prompt template produced %d messages, want 1", len(msgs))
	}
	return msgs[0].Content, nil
}

// JoinContext concatenates document contents separated by blank lines.
func JoinContext(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, contextSeparator)
}
