package chain

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FakeLLM is a deterministic model for demos and tests. It answers with its
// Responses in turn, cycling once they are exhausted, and echoes the prompt
// when it has none.
type FakeLLM struct {
	Responses []string      `json:"responses,omitempty"`
	Delay     time.Duration `json:"delay,omitempty"`

	mu   sync.Mutex
	next int
}

// Generate returns the next response.
func (f *FakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.respond(prompt), nil
}

// Stream sends the next response word by word.
func (f *FakeLLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	words := strings.SplitAfter(f.respond(prompt), " ")
	out := make(chan string)
	go func() {
		defer close(out)
		for _, w := range words {
			select {
			case out <- w:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *FakeLLM) respond(prompt string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Responses) == 0 {
		return "echo: " + prompt
	}
	r := f.Responses[f.next%len(f.Responses)]
	f.next++
	return r
}
