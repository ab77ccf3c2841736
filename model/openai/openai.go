// Package openai adapts the OpenAI Chat Completions API (including
// streaming) to the generic model.Backend interface, with the standard
// timeout and retry contract applied around every call.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agora-sim/agora/model"
)

// Options configure the OpenAI backend. Fields mirror a deliberately small
// subset of Chat Completion parameters; extend via functional options.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	Timeouts    model.Timeouts
	Retry       model.RetryPolicy
}

// Backend wraps the OpenAI API behind model.Backend.
type Backend struct {
	client *openai.Client
	opts   Options
}

var _ model.Backend = (*Backend)(nil)

// New creates an OpenAI backend using the official client. SDK-internal
// retries are disabled; this package owns the retry policy.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeouts:    model.DefaultTimeouts(),
		Retry:       model.DefaultRetryPolicy(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{
		option.WithHTTPClient(model.NewHTTPClient(opts.Timeouts)),
		option.WithMaxRetries(0),
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Backend{client: &client, opts: opts}
}

// Complete implements model.Backend.
func (b *Backend) Complete(ctx context.Context, messages []model.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.Total)
	defer cancel()

	var text string
	err := b.opts.Retry.Do(ctx, retryable, func(ctx context.Context) error {
		resp, err := b.client.Chat.Completions.New(ctx, b.params(messages))
		if err != nil {
			return fmt.Errorf("openai api error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai: no choices returned")
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// CompleteAll implements model.Backend.
func (b *Backend) CompleteAll(ctx context.Context, batches [][]model.Message) ([]string, error) {
	return model.CompleteAll(ctx, b, batches)
}

// Stream implements model.Backend.
func (b *Backend) Stream(ctx context.Context, messages []model.Message) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		ctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.Total)
		defer cancel()

		// Stall watchdog: every delta pushes the read deadline out.
		ctx, guard := model.WatchReads(ctx, b.opts.Timeouts.Read)
		defer guard.Stop()

		stream := b.client.Chat.Completions.NewStreaming(ctx, b.params(messages))
		var full strings.Builder
		for stream.Next() {
			guard.Touch()
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				full.WriteString(ch.Delta.Content)
				select {
				case <-ctx.Done():
					errCh <- context.Cause(ctx)
					return
				case out <- model.Chunk{Text: ch.Delta.Content}:
				}
			}
		}
		if err := stream.Err(); err != nil {
			if cause := context.Cause(ctx); errors.Is(cause, model.ErrReadTimeout) {
				errCh <- cause
				return
			}
			errCh <- fmt.Errorf("openai streaming error: %w", err)
			return
		}
		out <- model.Chunk{Text: full.String(), Done: true}
	}()
	return out, errCh
}

// Info implements model.Backend.
func (b *Backend) Info() model.Info {
	return model.Info{Name: b.opts.Model, Provider: "openai"}
}

func (b *Backend) params(messages []model.Message) openai.ChatCompletionNewParams {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Messages:            converted,
		Model:               b.opts.Model,
		Temperature:         openai.Float(b.opts.Temperature),
		MaxCompletionTokens: openai.Int(b.opts.MaxTokens),
	}
}

func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.RetryableStatus(apiErr.StatusCode)
	}
	return model.RetryableTransport(err)
}
