package chain

import (
	"context"
	"fmt"
	"strings"
)

// PromptTemplate renders a template whose {placeholders} name input keys.
type PromptTemplate struct {
	Template string `json:"template"`
}

// Variables returns the placeholder names of the template, in order of
// first appearance.
func (p *PromptTemplate) Variables() []string {
	var vars []string
	seen := map[string]bool{}
	rest := p.Template
	for {
		start := strings.IndexByte(rest, '{')
		if start == -1 {
			return vars
		}
		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			return vars
		}
		name := rest[start+1 : start+end]
		if name != "" && !seen[name] {
			seen[name] = true
			vars = append(vars, name)
		}
		rest = rest[start+end+1:]
	}
}

// Format substitutes every placeholder with the matching input.
func (p *PromptTemplate) Format(_ context.Context, inputs Values) (string, error) {
	vars := p.Variables()
	pairs := make([]string, 0, 2*len(vars))
	for _, name := range vars {
		text, err := inputs.Text(name)
		if err != nil {
			return "", fmt.Errorf("format prompt: %w", err)
		}
		pairs = append(pairs, "{"+name+"}", text)
	}
	return strings.NewReplacer(pairs...).Replace(p.Template), nil
}
