package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/mgoltzsche/speech-relay/internal/failure"
)

const geminiAPIVersion = "v1beta"

// Gemini generates text using the Google Generative Language API.
type Gemini struct {
	URL    string
	APIKey string
	Model  string
	Client *http.Client

	once  sync.Once
	genai *genai.Client
	err   error
}

// Generate sends the prompt as a single user turn.
// An empty prompt is sent as is.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	g.once.Do(func() {
		g.genai, g.err = genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:     g.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: g.Client,
			HTTPOptions: genai.HTTPOptions{
				BaseURL:    g.URL,
				APIVersion: geminiAPIVersion,
			},
		})
	})

	if g.err != nil {
		return "", fmt.Errorf("init gemini client: %w", g.err)
	}

	resp, err := g.genai.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", geminiError(fmt.Errorf("generate content: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: response has no candidates", failure.ErrMalformedResponse)
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return "", fmt.Errorf("%w: first candidate has no content", failure.ErrMalformedResponse)
	}

	content := candidate.Content
	if len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", fmt.Errorf("%w: first candidate has no parts", failure.ErrMalformedResponse)
	}

	p := content.Parts[0]
	if p.Text == "" && (p.InlineData != nil || p.FileData != nil || p.FunctionCall != nil) {
		return "", fmt.Errorf("%w: first candidate has no text part", failure.ErrMalformedResponse)
	}

	return p.Text, nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiError(apiErr, err)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiError(*apiErrPtr, err)
	}

	if failure.Kind(err) != nil {
		return err
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return failure.Wrap(failure.ErrTransport, err)
	}

	return fmt.Errorf("%w: %w", failure.ErrMalformedResponse, err)
}

func apiError(apiErr genai.APIError, err error) error {
	code := apiErr.Code
	if apiErr.Status == "RESOURCE_EXHAUSTED" {
		code = http.StatusTooManyRequests
	}

	return fmt.Errorf("%w: %w", failure.FromStatus("generative language service", code), err)
}
