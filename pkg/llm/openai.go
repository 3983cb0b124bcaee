// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/prompt"
)

const (
	DefaultOpenAIBase = "https://api.openai.com/v1"
	retryCount        = 5
)

// OpenAI talks to an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	Model       string
	Temperature float32
	N           int
	// Backoff is the delay before the first retry, it doubles on every next one.
	Backoff time.Duration

	client *openai.Client
	usage  usage
}

func NewOpenAI(base, key, model string, temperature float64, n int) *OpenAI {
	if base == "" {
		base = DefaultOpenAIBase
	}
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = base
	cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	return &OpenAI{
		Model:       model,
		Temperature: float32(temperature),
		N:           n,
		Backoff:     2 * time.Second,
		client:      openai.NewClientWithConfig(cfg),
	}
}

func (h *OpenAI) Generate(ctx context.Context, p *prompt.Prompt) ([]string, error) {
	return h.complete(ctx, p, h.N)
}

func (h *OpenAI) GenerateSingle(ctx context.Context, p *prompt.Prompt) (string, error) {
	replies, err := h.complete(ctx, p, 1)
	if err != nil {
		return "", err
	}
	return replies[0], nil
}

func (h *OpenAI) Usage() Usage {
	return h.usage.get()
}

func (h *OpenAI) complete(ctx context.Context, p *prompt.Prompt, n int) ([]string, error) {
	req := openai.ChatCompletionRequest{
		Model: h.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System()},
			{Role: openai.ChatMessageRoleUser, Content: p.User()},
		},
		Temperature: h.Temperature,
		N:           n,
	}
	backoff := h.Backoff
	for attempt := 0; ; attempt++ {
		resp, err := h.client.CreateChatCompletion(ctx, req)
		retry := err != nil && transient(ctx, err)
		if err == nil {
			var replies []string
			for _, choice := range resp.Choices {
				replies = append(replies, choice.Message.Content)
			}
			if len(replies) != 0 {
				h.usage.add(true, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
				recordReplies(replies)
				return replies, nil
			}
			err = fmt.Errorf("model returned no choices")
			retry = true
		}
		if !retry || attempt+1 >= retryCount {
			h.usage.add(false, 0, 0)
			return nil, err
		}
		log.Logf(0, "model request failed (attempt %v/%v): %v", attempt+1, retryCount, err)
		select {
		case <-ctx.Done():
			h.usage.add(false, 0, 0)
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// transient says if a failed request is worth repeating. Requests that got no HTTP status
// are repeated while ctx is alive.
func transient(ctx context.Context, err error) bool {
	status := 0
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	}
	if status == 0 {
		return ctx.Err() == nil
	}
	return status == http.StatusTooManyRequests || status >= 500
}
