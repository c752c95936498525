package chain

import (
	"context"
	"fmt"
	"strings"
)

// LLMChain formats a prompt from its inputs and asks a model to complete it.
type LLMChain struct {
	Prompt    Prompter `json:"prompt"`
	LLM       LLM      `json:"llm"`
	OutputKey string   `json:"output_key"`

	// Streaming makes the chain read the completion through LLM.Stream.
	Streaming bool `json:"streaming,omitempty"`
}

// Invoke returns the inputs extended with the completion under OutputKey
// ("text" when empty).
func (c *LLMChain) Invoke(ctx context.Context, inputs Values) (Values, error) {
	prompt, err := c.Prompt.Format(ctx, inputs)
	if err != nil {
		return nil, err
	}

	var text string
	if c.Streaming {
		text, err = c.stream(ctx, prompt)
	} else {
		text, err = c.LLM.Generate(ctx, prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("llm chain: %w", err)
	}

	key := c.OutputKey
	if key == "" {
		key = "text"
	}
	return inputs.Merge(Values{key: text}), nil
}

func (c *LLMChain) stream(ctx context.Context, prompt string) (string, error) {
	chunks, err := c.LLM.Stream(ctx, prompt)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range chunks {
		sb.WriteString(chunk)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
