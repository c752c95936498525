package chain

import "context"

// SequentialChain feeds the outputs of each chain into the next one.
type SequentialChain struct {
	Chains []Runnable `json:"chains"`
}

// Invoke runs the chains in order and returns the last outputs.
func (c *SequentialChain) Invoke(ctx context.Context, inputs Values) (Values, error) {
	values := inputs
	for _, step := range c.Chains {
		out, err := step.Invoke(ctx, values)
		if err != nil {
			return nil, err
		}
		values = out
	}
	return values.Clone(), nil
}
