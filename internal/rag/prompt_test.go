package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/vectorindex"
)

func TestBuildPromptTinyBudgetFallsBackToMarker(t *testing.T) {
	matches := []vectorindex.Match{
		{DocumentID: 1, Ordinal: 0, Content: strings.Repeat("vacation ", 40)},
	}

	messages, used := buildPrompt("How many vacation days?", matches, 40)

	require.Len(t, messages, 2)
	assert.Empty(t, used)
	assert.Contains(t, messages[1].Content, NoContextMarker)
	assert.NotContains(t, messages[1].Content, "---", "no empty excerpt fences without excerpts")
}

func TestBuildPromptTruncatesLastRetainedChunk(t *testing.T) {
	matches := []vectorindex.Match{
		{DocumentID: 1, Ordinal: 0, Content: strings.Repeat("a", 100)},
		{DocumentID: 1, Ordinal: 1, Content: strings.Repeat("b", 300)},
	}

	messages, used := buildPrompt("q", matches, 200)

	require.Len(t, used, 2)
	assert.Len(t, []rune(used[1].Content), 100, "the trailing chunk is cut to the remaining budget")
	assert.NotContains(t, messages[1].Content, NoContextMarker)
}
