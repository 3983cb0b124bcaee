// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package llm sends generation prompts to language models and returns the candidate programs.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/seqfuzz/seqfuzz/pkg/mgrconfig"
	"github.com/seqfuzz/seqfuzz/pkg/prompt"
	"github.com/seqfuzz/seqfuzz/pkg/stat"
)

type Handler interface {
	// Generate returns up to n_sample candidate replies to p.
	Generate(ctx context.Context, p *prompt.Prompt) ([]string, error)
	// GenerateSingle returns one reply (used for execution plans).
	GenerateSingle(ctx context.Context, p *prompt.Prompt) (string, error)
	Usage() Usage
}

type Usage struct {
	Requests         int
	Failures         int
	PromptTokens     int
	CompletionTokens int
}

func (u Usage) String() string {
	return fmt.Sprintf("requests %v (failed %v), tokens %v prompt / %v completion",
		u.Requests, u.Failures, u.PromptTokens, u.CompletionTokens)
}

var (
	statRequests = stat.New("llm requests", "Requests sent to the model",
		stat.Simple, stat.Rate{}, stat.Prometheus("seqfuzz_llm_requests"))
	statFailures = stat.New("llm failures", "Failed model requests (after retries)",
		stat.Prometheus("seqfuzz_llm_failures"))
	statTokens = stat.New("llm tokens", "Prompt and completion tokens consumed",
		stat.Simple, stat.Prometheus("seqfuzz_llm_tokens"))
	statReplyLen = stat.New("llm reply len", "Length of model replies in bytes",
		stat.Distribution{})
)

type usage struct {
	mu sync.Mutex
	u  Usage
}

func (u *usage) add(ok bool, promptTokens, completionTokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.u.Requests++
	statRequests.Add(1)
	if !ok {
		u.u.Failures++
		statFailures.Add(1)
		return
	}
	u.u.PromptTokens += promptTokens
	u.u.CompletionTokens += completionTokens
	statTokens.Add(promptTokens + completionTokens)
}

func (u *usage) get() Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.u
}

// New creates the handler selected by the config.
func New(ctx context.Context, cfg *mgrconfig.Config) (Handler, error) {
	if cfg.APIKey == "" && cfg.APIBase == "" {
		return nil, fmt.Errorf("no API key in $%v", cfg.APIKeyEnv)
	}
	switch cfg.Handler {
	case mgrconfig.HandlerOpenAI:
		return NewOpenAI(cfg.APIBase, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.NSample), nil
	case mgrconfig.HandlerGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.NSample)
	}
	return nil, fmt.Errorf("unknown handler %q", cfg.Handler)
}

// StripFences returns the contents of the first markdown code block of a reply,
// or the whole reply if it has no code blocks.
func StripFences(reply string) string {
	start := strings.Index(reply, "```")
	if start == -1 {
		return strings.TrimSpace(reply)
	}
	rest := reply[start+3:]
	// Skip the language tag.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	} else {
		return ""
	}
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func recordReplies(replies []string) {
	for _, reply := range replies {
		statReplyLen.Add(len(reply))
	}
}
