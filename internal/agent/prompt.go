package agent

import (
	"fmt"
	"strings"

	"github.com/kalambet/bookwise/internal/ollama"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/session"
)

const recommendTemplate = `QUESTION & CONTEXT:
(%s)

INSTRUCTIONS:
You're a smart library chatbot. Your task is to answer the human's QUESTION using only the CONTEXT above.
The CONTEXT contains passages from book descriptions stored in the library catalog.
Recommend books only from the CONTEXT. If the CONTEXT does not contain books matching the QUESTION, say that you could not find a matching book in the catalog instead of inventing one.
Keep the answer short and conversational.`

const historyTemplate = `CONVERSATION SO FAR:
%s

INSTRUCTIONS:
You're a smart library chatbot. Answer the human's latest question using only the conversation above.
If the conversation does not contain the requested information, say so plainly.`

// buildRecommendPrompt folds the retrieved passages and the question into a
// single user message, mirroring the one-template prompt the chat model was
// tuned for.
func buildRecommendPrompt(question string, passages []retrieval.Passage) []ollama.Message {
	var ctx strings.Builder
	ctx.WriteString("Context:\n")
	if len(passages) == 0 {
		ctx.WriteString("(no matching passages found)\n")
	}
	for _, p := range passages {
		ctx.WriteString("- ")
		ctx.WriteString(p.Text)
		ctx.WriteString("\n")
	}
	ctx.WriteString("\nHuman Message: ")
	ctx.WriteString(question)

	return []ollama.Message{
		{Role: "user", Content: fmt.Sprintf(recommendTemplate, ctx.String())},
	}
}

// buildHistoryPrompt renders the transcript as alternating "Human:" / "AI:"
// lines. The latest human turn is already part of the transcript.
func buildHistoryPrompt(turns []session.Turn) []ollama.Message {
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case session.RoleHuman:
			b.WriteString("Human: ")
		case session.RoleAssistant:
			b.WriteString("AI: ")
		default:
			continue
		}
		b.WriteString(t.Content)
		b.WriteString("\n")
	}

	return []ollama.Message{
		{Role: "user", Content: fmt.Sprintf(historyTemplate, b.String())},
	}
}
