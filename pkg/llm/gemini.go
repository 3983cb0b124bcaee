// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/seqfuzz/seqfuzz/pkg/prompt"
	"google.golang.org/api/option"
)

type Gemini struct {
	client *genai.Client
	model  string
	temp   float64
	n      int
	usage  usage
}

func NewGemini(ctx context.Context, key, model string, temperature float64, n int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, temp: temperature, n: n}, nil
}

func (h *Gemini) Close() error {
	return h.client.Close()
}

func (h *Gemini) Generate(ctx context.Context, p *prompt.Prompt) ([]string, error) {
	// The API rejects more than one candidate per request, so samples are requested one by one.
	var replies []string
	for i := 0; i < h.n; i++ {
		reply, err := h.GenerateSingle(ctx, p)
		if err != nil {
			if len(replies) != 0 {
				break
			}
			return nil, err
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

func (h *Gemini) GenerateSingle(ctx context.Context, p *prompt.Prompt) (string, error) {
	model := h.client.GenerativeModel(h.model)
	model.SetTemperature(float32(h.temp))
	model.SetCandidateCount(1)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(p.System())},
	}
	resp, err := model.GenerateContent(ctx, genai.Text(p.User()))
	if err != nil {
		h.usage.add(false, 0, 0)
		return "", err
	}
	reply := new(strings.Builder)
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				reply.WriteString(string(text))
			}
		}
		break
	}
	if reply.Len() == 0 {
		h.usage.add(false, 0, 0)
		return "", fmt.Errorf("model returned no text")
	}
	var promptTokens, completionTokens int
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	h.usage.add(true, promptTokens, completionTokens)
	recordReplies([]string{reply.String()})
	return reply.String(), nil
}

func (h *Gemini) Usage() Usage {
	return h.usage.get()
}
