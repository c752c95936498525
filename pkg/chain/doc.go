/*
Package chain is a small library of composable components (prompt templates,
language models, transforms and the chains that combine them).

Components only talk to each other through the interfaces in this package
and pass a context.Context as first argument, which is what lets chainlens
record them: every interface has a proxy registered in registry.Default.

	llm := &chain.FakeLLM{Responses: []string{"Paris"}}
	qa := &chain.LLMChain{
		Prompt:    &chain.PromptTemplate{Template: "Capital of {country}?"},
		LLM:       llm,
		OutputKey: "answer",
	}
	out, err := qa.Invoke(ctx, chain.Values{"country": "France"})
*/
package chain
