// Package anthropic adapts the Anthropic Messages API to the generic
// model.Backend interface, with the standard timeout and retry contract
// applied around every call.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agora-sim/agora/model"
)

// Options configure the Anthropic backend.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	Timeouts    model.Timeouts
	Retry       model.RetryPolicy
}

// Backend wraps the Anthropic Messages API behind model.Backend.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Backend = (*Backend)(nil)

// New creates an Anthropic backend using the official client. SDK-internal
// retries are disabled; this package owns the retry policy.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
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

	client := anthropic.NewClient(clientOpts...)
	return &Backend{client: &client, opts: opts}
}

// Complete implements model.Backend.
func (b *Backend) Complete(ctx context.Context, messages []model.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.Total)
	defer cancel()

	var text string
	err := b.opts.Retry.Do(ctx, retryable, func(ctx context.Context) error {
		resp, err := b.client.Messages.New(ctx, b.params(messages))
		if err != nil {
			return fmt.Errorf("anthropic api error: %w", err)
		}
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.AsText().Text)
			}
		}
		text = sb.String()
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

		stream := b.client.Messages.NewStreaming(ctx, b.params(messages))
		var full strings.Builder
		for stream.Next() {
			guard.Touch()
			var delta string
			switch event := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if d, ok := event.Delta.AsAny().(anthropic.TextDelta); ok {
					delta = d.Text
				}
			}
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			select {
			case <-ctx.Done():
				errCh <- context.Cause(ctx)
				return
			case out <- model.Chunk{Text: delta}:
			}
		}
		if err := stream.Err(); err != nil {
			if cause := context.Cause(ctx); errors.Is(cause, model.ErrReadTimeout) {
				errCh <- cause
				return
			}
			errCh <- fmt.Errorf("anthropic streaming error: %w", err)
			return
		}
		out <- model.Chunk{Text: full.String(), Done: true}
	}()
	return out, errCh
}

// Info implements model.Backend.
func (b *Backend) Info() model.Info {
	return model.Info{Name: string(b.opts.Model), Provider: "anthropic"}
}

func (b *Backend) params(messages []model.Message) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var converted []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	params := anthropic.MessageNewParams{
		Model:       b.opts.Model,
		Messages:    converted,
		MaxTokens:   b.opts.MaxTokens,
		Temperature: anthropic.Float(b.opts.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params
}

func retryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.RetryableStatus(apiErr.StatusCode)
	}
	return model.RetryableTransport(err)
}
