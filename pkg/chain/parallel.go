package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/chainlens/pkg/callstack"
)

// ParallelChain runs its branches concurrently on the same inputs.
type ParallelChain struct {
	Branches map[string]Runnable `json:"branches"`

	// Limit caps the number of branches running at once. Zero means no limit.
	Limit int `json:"limit,omitempty"`
}

// Invoke returns the inputs extended with one entry per branch holding that
// branch's outputs. The first branch error cancels the others.
func (c *ParallelChain) Invoke(ctx context.Context, inputs Values) (Values, error) {
	g, _ := callstack.WithGroup(ctx)
	if c.Limit > 0 {
		g.SetLimit(c.Limit)
	}

	names := make([]string, 0, len(c.Branches))
	for name := range c.Branches {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	results := make(Values, len(c.Branches))
	for _, name := range names {
		branch := c.Branches[name]
		g.Go(func(ctx context.Context) error {
			out, err := branch.Invoke(ctx, inputs.Clone())
			if err != nil {
				return fmt.Errorf("branch %s: %w", name, err)
			}
			mu.Lock()
			results[name] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs.Merge(results), nil
}
