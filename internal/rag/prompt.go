package rag

import (
	"strings"

	"policyqa/internal/ai"
	"policyqa/internal/vectorindex"
)

// NoContextMarker is placed in the prompt when retrieval found nothing, so
// the model can say it lacks information instead of inventing policy.
const NoContextMarker = "(no relevant policy excerpts were found)"

const systemPrompt = "You are an HR policy assistant. Answer the employee's question using only the " +
	"provided policy excerpts. If the excerpts do not contain the answer, say that the " +
	"policy information is not available. Do not make up facts."

// minChunkRunes is the smallest truncated excerpt still worth keeping.
const minChunkRunes = 80

// buildPrompt assembles the chat messages within a rune budget for the
// context block. Matches must be ordered most similar first; when the budget
// is exceeded, least-similar chunks are dropped and the last retained one is
// truncated. Returns the messages and the matches actually used.
func buildPrompt(question string, matches []vectorindex.Match, budget int) ([]ai.ChatMessage, []vectorindex.Match) {
	var used []vectorindex.Match
	var contextBlock strings.Builder

	if len(matches) == 0 {
		contextBlock.WriteString(NoContextMarker)
	} else {
		remaining := budget
		for _, m := range matches {
			r := []rune(m.Content)
			if len(r) > remaining {
				if remaining < minChunkRunes {
					break
				}
				m.Content = string(r[:remaining])
				r = r[:remaining]
			}
			contextBlock.WriteString("\n---\n")
			contextBlock.WriteString(m.Content)
			used = append(used, m)
			remaining -= len(r)
			if remaining <= 0 {
				break
			}
		}
		if len(used) == 0 {
			// A budget below the smallest keepable excerpt retains
			// nothing; the marker must appear instead of bare fences.
			contextBlock.WriteString(NoContextMarker)
		} else {
			contextBlock.WriteString("\n---")
		}
	}

	userContent := "Policy excerpts:" + contextBlock.String() + "\n\nQuestion: " + question + "\n\nAnswer:"
	messages := []ai.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userContent},
	}
	return messages, used
}
