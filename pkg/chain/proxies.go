package chain

import (
	"context"

	"github.com/aretw0/chainlens/pkg/registry"
	"github.com/aretw0/chainlens/pkg/walker"
)

func init() {
	registry.Register(registry.Default, func(h registry.Handle) Runnable { return runnableProxy{h} },
		map[string][]string{"Invoke": {"inputs"}})
	registry.Register(registry.Default, func(h registry.Handle) LLM { return llmProxy{h} },
		map[string][]string{"Generate": {"prompt"}, "Stream": {"prompt"}})
	registry.Register(registry.Default, func(h registry.Handle) Prompter { return prompterProxy{h} },
		map[string][]string{"Format": {"inputs"}})
}

// Policy selects the components of this package and their methods.
func Policy() walker.Policy {
	return walker.Policy{
		Packages: []string{"github.com/aretw0/chainlens/pkg/chain"},
		Methods: map[string]walker.MethodFilter{
			"Invoke":    walker.Always,
			"Generate":  walker.Always,
			"Stream":    walker.Always,
			"Format":    walker.Always,
			"Transform": walker.Always,
		},
	}
}

type runnableProxy struct{ registry.Handle }

func (p runnableProxy) Invoke(ctx context.Context, inputs Values) (Values, error) {
	return registry.Fn[func(context.Context, Values) (Values, error)](p.Handle, "Invoke")(ctx, inputs)
}

type llmProxy struct{ registry.Handle }

func (p llmProxy) Generate(ctx context.Context, prompt string) (string, error) {
	return registry.Fn[func(context.Context, string) (string, error)](p.Handle, "Generate")(ctx, prompt)
}

func (p llmProxy) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	return registry.Fn[func(context.Context, string) (<-chan string, error)](p.Handle, "Stream")(ctx, prompt)
}

type prompterProxy struct{ registry.Handle }

func (p prompterProxy) Format(ctx context.Context, inputs Values) (string, error) {
	return registry.Fn[func(context.Context, Values) (string, error)](p.Handle, "Format")(ctx, inputs)
}
