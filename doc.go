/*
Package chainlens records what happens inside applications built from
composable chains of components.

An App wraps a component graph once, at construction. From then on every
call to an instrumented method made while a root method is running is
captured as a CallRecord: its arguments, result or error, timing, and the
stack of instrumented calls above it. When the root method returns, its
calls become one Record, available to the caller, to lifecycle hooks and to
the configured store.

# Concept

Instrumentation is transparent: interface-typed fields of the graph are
replaced by proxies implementing the same interface, and func fields named
by the policy are replaced by functions of the same type. Correlation
travels with the context.Context every instrumented method takes as first
argument, so calls made on other goroutines are attributed correctly as
long as they receive that context.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/chainlens"
		"github.com/aretw0/chainlens/pkg/chain"
	)

	func main() {
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
			_, err := root.Invoke(ctx, chain.Values{"country": "France"})
			return err
		})
		if err != nil {
			log.Fatal(err)
		}

		for _, call := range rec.Calls {
			fmt.Println(call.Top(), call.Perf.Duration())
		}
	}
*/
package chainlens
