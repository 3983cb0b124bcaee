// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/seqfuzz/seqfuzz/pkg/prompt"
	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrompt(t *testing.T) *prompt.Prompt {
	target, err := prog.GetTarget("zlib")
	require.NoError(t, err)
	return prompt.New(&prompt.Settings{Target: target}, []*prog.Op{target.OpMap["compress"]})
}

func testServer(t *testing.T, handler func(w http.ResponseWriter, req *openai.ChatCompletionRequest)) *OpenAI {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		req := new(openai.ChatCompletionRequest)
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	h := NewOpenAI(srv.URL+"/v1/", "key", "test-model", 0.5, 3)
	h.Backoff = time.Millisecond
	return h
}

func reply(w http.ResponseWriter, contents ...string) {
	resp := new(openai.ChatCompletionResponse)
	for i, c := range contents {
		resp.Choices = append(resp.Choices, openai.ChatCompletionChoice{
			Index:   i,
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c},
		})
	}
	resp.Usage.PromptTokens = 100
	resp.Usage.CompletionTokens = 10 * len(contents)
	json.NewEncoder(w).Encode(resp)
}

func TestOpenAIGenerate(t *testing.T) {
	h := testServer(t, func(w http.ResponseWriter, req *openai.ChatCompletionRequest) {
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, float32(0.5), req.Temperature)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "compress(src buffer")
		var out []string
		for i := 0; i < req.N; i++ {
			out = append(out, "r0 = compress('a', 100)")
		}
		reply(w, out...)
	})
	replies, err := h.Generate(context.Background(), testPrompt(t))
	require.NoError(t, err)
	assert.Len(t, replies, 3)
	single, err := h.GenerateSingle(context.Background(), testPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "r0 = compress('a', 100)", single)
	assert.Equal(t, Usage{Requests: 2, PromptTokens: 200, CompletionTokens: 40}, h.Usage())
}

func TestOpenAIRetries(t *testing.T) {
	var calls atomic.Int32
	h := testServer(t, func(w http.ResponseWriter, req *openai.ChatCompletionRequest) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			reply(w, "ok")
		}
	})
	single, err := h.GenerateSingle(context.Background(), testPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "ok", single)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOpenAIPermanentError(t *testing.T) {
	var calls atomic.Int32
	h := testServer(t, func(w http.ResponseWriter, req *openai.ChatCompletionRequest) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	})
	_, err := h.Generate(context.Background(), testPrompt(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, h.Usage().Failures)
}

func TestOpenAIGivesUp(t *testing.T) {
	var calls atomic.Int32
	h := testServer(t, func(w http.ResponseWriter, req *openai.ChatCompletionRequest) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := h.Generate(context.Background(), testPrompt(t))
	require.Error(t, err)
	assert.EqualValues(t, retryCount, calls.Load())
}

func TestOpenAIEmptyChoicesRetried(t *testing.T) {
	var calls atomic.Int32
	h := testServer(t, func(w http.ResponseWriter, req *openai.ChatCompletionRequest) {
		if calls.Add(1) == 1 {
			reply(w)
			return
		}
		reply(w, "second")
	})
	single, err := h.GenerateSingle(context.Background(), testPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "second", single)
	assert.Equal(t, Usage{Requests: 1, PromptTokens: 100, CompletionTokens: 10}, h.Usage())
}

func TestTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, transient(ctx, &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.True(t, transient(ctx, &openai.RequestError{HTTPStatusCode: http.StatusInternalServerError}))
	assert.False(t, transient(ctx, &openai.APIError{HTTPStatusCode: http.StatusBadRequest}))
	assert.True(t, transient(ctx, errors.New("connection reset")))
	cancel()
	assert.False(t, transient(ctx, errors.New("connection reset")))
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in  string
		out string
	}{
		{"r0 = crc32(0, nil, 0)\n", "r0 = crc32(0, nil, 0)"},
		{"Here it is:\n```\nr0 = crc32(0, nil, 0)\n```\nDone.", "r0 = crc32(0, nil, 0)"},
		{"```text\nline1\nline2\n```", "line1\nline2"},
		{"```cpp\nunterminated", "unterminated"},
		{"```", ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.out, StripFences(test.in), test.in)
	}
}
