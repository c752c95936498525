package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/chainlens"
	"github.com/aretw0/chainlens/pkg/chain"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/ports"
)

// DemoOptions configures RunDemo.
type DemoOptions struct {
	AppID    string
	Question string
	Store    ports.RecordStore
	Hooks    []domain.Hooks
	Logger   *slog.Logger
}

// DemoChain builds a question answering chain: it normalizes the question,
// then answers and summarizes it in parallel, the answer being streamed.
func DemoChain() *chain.SequentialChain {
	return &chain.SequentialChain{
		Chains: []chain.Runnable{
			&chain.TransformChain{
				Name: "normalize",
				Transform: func(_ context.Context, inputs chain.Values) (chain.Values, error) {
					q, err := inputs.Text("question")
					if err != nil {
						return nil, err
					}
					return chain.Values{"question": strings.TrimSpace(q)}, nil
				},
			},
			&chain.ParallelChain{
				Branches: map[string]chain.Runnable{
					"answer": &chain.LLMChain{
						Prompt:    &chain.PromptTemplate{Template: "Answer briefly: {question}"},
						LLM:       &chain.FakeLLM{Responses: []string{"Chains record every call they make."}},
						OutputKey: "text",
						Streaming: true,
					},
					"summary": &chain.LLMChain{
						Prompt:    &chain.PromptTemplate{Template: "Summarize the topic of: {question}"},
						LLM:       &chain.FakeLLM{Responses: []string{"observability"}},
						OutputKey: "text",
					},
				},
			},
		},
	}
}

// NewDemoApp instruments DemoChain.
func NewDemoApp(opts DemoOptions) (*chainlens.App, error) {
	appOpts := []chainlens.Option{
		chainlens.WithAppID(opts.AppID),
		chainlens.WithTags("demo"),
	}
	if opts.Store != nil {
		appOpts = append(appOpts, chainlens.WithStore(opts.Store))
	}
	if opts.Logger != nil {
		appOpts = append(appOpts, chainlens.WithLogger(opts.Logger))
	}
	for _, h := range opts.Hooks {
		appOpts = append(appOpts, chainlens.WithHooks(h))
	}
	return chainlens.New(DemoChain(), appOpts...)
}

// RunDemo asks app one question and reports the record it produced.
func RunDemo(ctx context.Context, w io.Writer, app *chainlens.App, question string) (*domain.Record, error) {
	root, err := chainlens.Root[chain.Runnable](app)
	if err != nil {
		return nil, err
	}

	rec, err := app.WithRecord(ctx, func(ctx context.Context) error {
		_, err := root.Invoke(ctx, chain.Values{"question": question})
		return err
	})
	if rec == nil {
		return nil, fmt.Errorf("demo produced no record: %w", err)
	}
	if err != nil {
		printSystemMessage(w, "Chain failed: %v", err)
	}

	printSystemMessage(w, "Recorded %s: %d calls in %s.", rec.RecordID, len(rec.Calls), rec.Perf.Duration())
	return rec, nil
}
