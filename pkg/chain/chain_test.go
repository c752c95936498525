package chain_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/chainlens/pkg/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptTemplate_Format(t *testing.T) {
	p := &chain.PromptTemplate{Template: "Capital of {country}? Answer in {lang}. ({country})"}
	assert.Equal(t, []string{"country", "lang"}, p.Variables())

	out, err := p.Format(context.Background(), chain.Values{"country": "France", "lang": "en", "extra": 1})
	require.NoError(t, err)
	assert.Equal(t, "Capital of France? Answer in en. (France)", out)

	_, err = p.Format(context.Background(), chain.Values{"country": "France"})
	assert.ErrorIs(t, err, chain.ErrMissingInput)
}

func TestFakeLLM(t *testing.T) {
	llm := &chain.FakeLLM{Responses: []string{"one", "two"}}
	ctx := context.Background()

	for _, want := range []string{"one", "two", "one"} {
		got, err := llm.Generate(ctx, "ignored")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	echo := &chain.FakeLLM{}
	got, err := echo.Generate(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", got)
}

func TestFakeLLM_Stream(t *testing.T) {
	llm := &chain.FakeLLM{Responses: []string{"the quick fox"}}

	ch, err := llm.Stream(context.Background(), "p")
	require.NoError(t, err)

	var chunks []string
	for c := range ch {
		chunks = append(chunks, c)
	}
	assert.Equal(t, []string{"the ", "quick ", "fox"}, chunks)
}

func TestFakeLLM_DelayHonorsContext(t *testing.T) {
	llm := &chain.FakeLLM{Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := llm.Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLLMChain(t *testing.T) {
	for _, streaming := range []bool{false, true} {
		c := &chain.LLMChain{
			Prompt:    &chain.PromptTemplate{Template: "Capital of {country}?"},
			LLM:       &chain.FakeLLM{Responses: []string{"Paris is the capital"}},
			OutputKey: "answer",
			Streaming: streaming,
		}

		out, err := c.Invoke(context.Background(), chain.Values{"country": "France"})
		require.NoError(t, err)
		assert.Equal(t, chain.Values{"country": "France", "answer": "Paris is the capital"}, out)
	}
}

func TestLLMChain_DefaultOutputKeyAndErrors(t *testing.T) {
	c := &chain.LLMChain{Prompt: &chain.PromptTemplate{Template: "{q}"}, LLM: &chain.FakeLLM{}}

	out, err := c.Invoke(context.Background(), chain.Values{"q": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out["text"])

	_, err = c.Invoke(context.Background(), chain.Values{})
	assert.ErrorIs(t, err, chain.ErrMissingInput)
}

func TestTransformAndSequentialChain(t *testing.T) {
	seq := &chain.SequentialChain{Chains: []chain.Runnable{
		&chain.TransformChain{Name: "upper", Transform: func(_ context.Context, in chain.Values) (chain.Values, error) {
			text, err := in.Text("text")
			return chain.Values{"text": strings.ToUpper(text)}, err
		}},
		&chain.TransformChain{Name: "length", Transform: func(_ context.Context, in chain.Values) (chain.Values, error) {
			text, err := in.Text("text")
			return chain.Values{"length": len(text)}, err
		}},
		&chain.TransformChain{Name: "noop"},
	}}

	out, err := seq.Invoke(context.Background(), chain.Values{"text": "abc"})
	require.NoError(t, err)
	assert.Equal(t, chain.Values{"text": "ABC", "length": 3}, out)

	_, err = seq.Invoke(context.Background(), chain.Values{})
	assert.ErrorIs(t, err, chain.ErrMissingInput)
	assert.ErrorContains(t, err, "transform upper")
}

func TestParallelChain(t *testing.T) {
	var running, peak atomic.Int32
	branch := func(key string) chain.Runnable {
		return &chain.TransformChain{Name: key, Transform: func(_ context.Context, in chain.Values) (chain.Values, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return chain.Values{key: true}, nil
		}}
	}

	p := &chain.ParallelChain{
		Branches: map[string]chain.Runnable{"a": branch("a"), "b": branch("b"), "c": branch("c")},
		Limit:    2,
	}
	out, err := p.Invoke(context.Background(), chain.Values{"q": 1})
	require.NoError(t, err)

	assert.Equal(t, 1, out["q"])
	assert.Equal(t, chain.Values{"q": 1, "a": true}, out["a"])
	assert.Equal(t, chain.Values{"q": 1, "c": true}, out["c"])
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestParallelChain_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	p := &chain.ParallelChain{Branches: map[string]chain.Runnable{
		"bad": &chain.TransformChain{Name: "bad", Transform: func(context.Context, chain.Values) (chain.Values, error) {
			return nil, boom
		}},
		"slow": &chain.TransformChain{Name: "slow", Transform: func(ctx context.Context, _ chain.Values) (chain.Values, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	}}

	_, err := p.Invoke(context.Background(), chain.Values{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "branch bad")
}
