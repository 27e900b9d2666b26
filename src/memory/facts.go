package memory

import (
	"encoding/json"
	"strings"
)

const factExtractionPrompt = `You extract durable personal facts, preferences and plans from a message
so they can be remembered later. Return only JSON of the form
{"facts": ["fact one", "fact two"]}. Each fact is a short standalone sentence
in the language of the input. Return {"facts": []} when nothing is worth keeping.

Input: `

func factPrompt(text string) string {
	return factExtractionPrompt + text
}

// parseFacts accepts {"facts": [...]} or a bare array, optionally inside a
// markdown code fence. Blank entries are dropped.
func parseFacts(output string) []string {
	s := strings.TrimSpace(output)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	var raw []string
	var wrapped struct {
		Facts []string `json:"facts"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil {
		raw = wrapped.Facts
	} else if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}

	facts := make([]string, 0, len(raw))
	for _, f := range raw {
		if f = strings.TrimSpace(f); f != "" {
			facts = append(facts, f)
		}
	}
	return facts
}
