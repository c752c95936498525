package chain

import (
	"context"
	"fmt"
)

// TransformFunc computes new values from the inputs of a TransformChain.
type TransformFunc func(ctx context.Context, inputs Values) (Values, error)

// TransformChain runs a plain function as a chain step.
type TransformChain struct {
	Name      string        `json:"name"`
	Transform TransformFunc `json:"-" chainlens:"inputs"`
}

// Invoke returns the inputs extended with the outputs of Transform.
func (c *TransformChain) Invoke(ctx context.Context, inputs Values) (Values, error) {
	if c.Transform == nil {
		return inputs.Clone(), nil
	}
	out, err := c.Transform(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", c.Name, err)
	}
	return inputs.Merge(out), nil
}
