// Package llm builds chat model clients from a provider name and its
// resolved credentials. Clients come from langchaingo; the factory only
// decides which one and how it is configured.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mesh-intelligence/folio/internal/telemetry"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// ModelConfig is everything needed to build one model client.
type ModelConfig struct {
	Provider     string
	InternalName string // provider model id; ignored by azure-openai, which uses Deployment
	Key          string
	Endpoint     string
	Deployment   string
}

// Response is the result of a single-shot invocation.
type Response struct {
	Text       string
	StopReason string
}

// Chunk is one piece of a streamed response.
type Chunk struct {
	Text string
}

// ChatModel invokes a language model with a single prompt.
type ChatModel interface {
	// Invoke sends prompt and waits for the whole response.
	Invoke(ctx context.Context, prompt string) (Response, error)
	// Stream sends prompt and yields the response as it arrives. Each range
	// over the returned sequence issues a new call. A failed call yields one
	// final element carrying the error.
	Stream(ctx context.Context, prompt string) iter.Seq2[Chunk, error]
}

// chatModel adapts a langchaingo model to ChatModel.
type chatModel struct {
	provider string
	client   llms.Model
	opts     []llms.CallOption
}

var errStopStream = errors.New("stream consumer stopped")

func messages(prompt string) []llms.MessageContent {
	return []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
}

func (m *chatModel) Invoke(ctx context.Context, prompt string) (Response, error) {
	resp, err := m.client.GenerateContent(ctx, messages(prompt), m.opts...)
	telemetry.LLMInvoked(ctx, m.provider, err == nil)
	if err != nil {
		return Response{}, m.upstream(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%s returned no choices: %w", m.provider, types.ErrUpstream)
	}
	choice := resp.Choices[0]
	return Response{Text: choice.Content, StopReason: choice.StopReason}, nil
}

func (m *chatModel) Stream(ctx context.Context, prompt string) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		stopped := false
		opts := slices.Concat(m.opts, []llms.CallOption{
			llms.WithStreamingFunc(func(_ context.Context, b []byte) error {
				if len(b) == 0 {
					return nil
				}
				if !yield(Chunk{Text: string(b)}, nil) {
					stopped = true
					return errStopStream
				}
				return nil
			}),
		})
		_, err := m.client.GenerateContent(ctx, messages(prompt), opts...)
		telemetry.LLMInvoked(ctx, m.provider, err == nil || stopped)
		if err != nil && !stopped {
			yield(Chunk{}, m.upstream(err))
		}
	}
}

func (m *chatModel) upstream(err error) error {
	return fmt.Errorf("%s: %v: %w", m.provider, err, types.ErrUpstream)
}

// Collect drains a stream into one string.
func Collect(seq iter.Seq2[Chunk, error]) (string, error) {
	var b strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk.Text)
	}
	return b.String(), nil
}
