package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgoltzsche/speech-relay/internal/failure"
	"github.com/mgoltzsche/speech-relay/pkg/config"
)

func TestGeminiGenerate(t *testing.T) {
	for _, prompt := range []string{"What is the weather like?", ""} {
		t.Run(prompt, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
				require.Equal(t, "secret", r.Header.Get("X-Goog-Api-Key"))
				require.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req struct {
					Contents []struct {
						Parts []struct {
							Text string `json:"text"`
						} `json:"parts"`
					} `json:"contents"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				require.Len(t, req.Contents, 1)
				require.Len(t, req.Contents[0].Parts, 1)
				require.Equal(t, prompt, req.Contents[0].Parts[0].Text)

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Sunny."}],"role":"model"}}]}`))
			}))
			defer srv.Close()

			g := &Gemini{URL: srv.URL, APIKey: "secret", Model: "gemini-test", Client: srv.Client()}

			text, err := g.Generate(context.Background(), prompt)
			require.NoError(t, err)
			require.Equal(t, "Sunny.", text)
		})
	}
}

func TestGeminiGenerateErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, failure.ErrRateLimited},
		{"bad request", http.StatusBadRequest, `{"error":{"code":400,"message":"invalid model","status":"INVALID_ARGUMENT"}}`, failure.ErrTransport},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, failure.ErrMalformedResponse},
		{"no parts", http.StatusOK, `{"candidates":[{"content":{"parts":[]}}]}`, failure.ErrMalformedResponse},
		{"no text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png"}}]}}]}`, failure.ErrMalformedResponse},
		{"invalid json", http.StatusOK, `{`, failure.ErrMalformedResponse},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			g := &Gemini{URL: srv.URL, APIKey: "secret", Model: "gemini-test", Client: srv.Client()}

			_, err := g.Generate(context.Background(), "hello")
			require.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestGeminiGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := &Gemini{URL: url, APIKey: "secret", Model: "gemini-test"}

	_, err := g.Generate(context.Background(), "hello")
	require.ErrorIs(t, err, failure.ErrTransport)
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content any    `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		require.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi there."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c := &OpenAI{ServerURL: srv.URL, APIKey: "secret", Model: "test-model", HTTPClient: srv.Client()}

	text, err := c.Generate(context.Background(), "Hello")
	require.NoError(t, err)
	require.Equal(t, "Hi there.", text)
}

func TestOpenAIGenerateErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, failure.ErrRateLimited},
		{"server error", http.StatusInternalServerError, `{}`, failure.ErrTransport},
		{"empty choices", http.StatusOK, `{"id":"chatcmpl-1","object":"chat.completion","model":"test-model","choices":[]}`, failure.ErrMalformedResponse},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := &OpenAI{ServerURL: srv.URL, APIKey: "secret", Model: "test-model", HTTPClient: srv.Client()}

			_, err := c.Generate(context.Background(), "Hello")
			require.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestOpenAIGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := &OpenAI{ServerURL: url, APIKey: "secret", Model: "test-model"}

	_, err := c.Generate(context.Background(), "Hello")
	require.ErrorIs(t, err, failure.ErrTransport)
	require.NotErrorIs(t, err, failure.ErrMalformedResponse)
}

func TestNew(t *testing.T) {
	cfg := config.Default().Generator

	svc, err := New(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &Gemini{}, svc)

	cfg.Provider = "openai"
	svc, err = New(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &OpenAI{}, svc)
	require.Nil(t, svc.(*OpenAI).HTTPClient)

	cfg.Provider = "unknown"
	_, err = New(cfg, nil)
	require.Error(t, err)
}
