package chat

import (
	"fmt"
	"strings"

	"github.com/driftchat/driftchat/internal/ai"
)

// RequestHints carries coarse, request-derived context for the system prompt.
type RequestHints struct {
	City      string
	Country   string
	Latitude  string
	Longitude string
}

const regularPrompt = "You are a friendly assistant! Keep your responses concise and helpful."

const reasoningPrompt = "Think through the problem step by step before answering. Keep the final answer concise."

const titlePrompt = "Generate a short title summarizing the user's first message. " +
	"At most 80 characters. Plain text only: no quotes, no colons, no markdown."

func systemPrompt(model string, hints RequestHints) string {
	var b strings.Builder
	b.WriteString(regularPrompt)
	if model == ai.ModelChatReasoning {
		b.WriteString("\n\n")
		b.WriteString(reasoningPrompt)
	}
	if hints.City != "" || hints.Country != "" || hints.Latitude != "" {
		b.WriteString("\n\nAbout the origin of the user's request:\n")
		if hints.City != "" {
			fmt.Fprintf(&b, "- city: %s\n", hints.City)
		}
		if hints.Country != "" {
			fmt.Fprintf(&b, "- country: %s\n", hints.Country)
		}
		if hints.Latitude != "" && hints.Longitude != "" {
			fmt.Fprintf(&b, "- lat: %s, lon: %s\n", hints.Latitude, hints.Longitude)
		}
	}
	return b.String()
}
