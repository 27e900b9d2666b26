package models

import (
	"context"
	"encoding/json"
	"strings"
)

// DummyLLM answers fact-extraction prompts offline: it splits the text after
// the last "Input:" marker into sentences and returns them as {"facts": [...]}.
type DummyLLM struct{}

func NewDummyLLM() *DummyLLM { return &DummyLLM{} }

func (d *DummyLLM) Generate(_ context.Context, prompt string) (string, error) {
	input := prompt
	if i := strings.LastIndex(prompt, "Input:"); i >= 0 {
		input = prompt[i+len("Input:"):]
	}
	facts := []string{}
	for _, s := range strings.FieldsFunc(input, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if s = strings.TrimSpace(s); s != "" {
			facts = append(facts, s)
		}
	}
	out, err := json.Marshal(map[string][]string{"facts": facts})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
