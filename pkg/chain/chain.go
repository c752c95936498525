package chain

import (
	"context"
	"errors"
)

// ErrMissingInput is returned when a component needs a key its inputs lack.
var ErrMissingInput = errors.New("missing input")

// ErrNoResponse is returned by FakeLLM when it has nothing left to say.
var ErrNoResponse = errors.New("no response")

// Runnable is a component that maps inputs to outputs.
type Runnable interface {
	Invoke(ctx context.Context, inputs Values) (Values, error)
}

// LLM is a language model.
type LLM interface {
	// Generate returns the completion of prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Stream returns the completion of prompt in chunks. The channel is
	// closed when the completion ends or ctx is done.
	Stream(ctx context.Context, prompt string) (<-chan string, error)
}

// Prompter renders the prompt sent to a model.
type Prompter interface {
	Format(ctx context.Context, inputs Values) (string, error)
}
