package chainlens_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/chainlens"
	"github.com/aretw0/chainlens/pkg/adapters/memory"
	"github.com/aretw0/chainlens/pkg/chain"
)

// ExampleNew instruments a prompt-and-model chain and prints the calls of
// one invocation, in the order they completed.
func ExampleNew() {
	qa := &chain.LLMChain{
		Prompt:    &chain.PromptTemplate{Template: "Capital of {country}?"},
		LLM:       &chain.FakeLLM{Responses: []string{"Paris"}},
		OutputKey: "answer",
	}

	app, err := chainlens.New(qa, chainlens.WithAppID("qa"))
	if err != nil {
		log.Fatal(err)
	}
	root, err := chainlens.Root[chain.Runnable](app)
	if err != nil {
		log.Fatal(err)
	}

	rec, err := app.WithRecord(context.Background(), func(ctx context.Context) error {
		out, err := root.Invoke(ctx, chain.Values{"country": "France"})
		fmt.Println("answer:", out["answer"])
		return err
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, call := range rec.Calls {
		fmt.Println(call.Top())
	}
	// Output:
	// answer: Paris
	// app.Prompt::Format
	// app.LLM::Generate
	// app::Invoke
}

// ExampleWithStore persists every record to a store.
func ExampleWithStore() {
	store := memory.NewStore()
	app, err := chainlens.New(&chain.TransformChain{
		Name: "count",
		Transform: func(_ context.Context, in chain.Values) (chain.Values, error) {
			return chain.Values{"n": len(in)}, nil
		},
	}, chainlens.WithAppID("count"), chainlens.WithStore(store))
	if err != nil {
		log.Fatal(err)
	}
	root, _ := chainlens.Root[chain.Runnable](app)

	ctx := context.Background()
	for range 3 {
		if _, err := root.Invoke(ctx, chain.Values{"x": 1}); err != nil {
			log.Fatal(err)
		}
	}

	ids, _ := store.List(ctx, "count")
	fmt.Println("stored:", len(ids))
	// Output:
	// stored: 3
}
