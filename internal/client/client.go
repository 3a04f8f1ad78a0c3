// Package client talks to the speech relay server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// Client calls the relay's transcription, generation and speech endpoints.
// It implements the pipeline's Transcriber and Generator as well as tts.Service.
type Client struct {
	URL    string
	Client *http.Client
}

// Transcribe uploads a WAV recording and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	var b bytes.Buffer
	multipartWriter := multipart.NewWriter(&b)

	part, err := multipartWriter.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("creating multipart form file: %w", err)
	}

	_, err = part.Write(wavData)
	if err != nil {
		return "", fmt.Errorf("write data to multipart writer: %w", err)
	}

	err = multipartWriter.Close()
	if err != nil {
		return "", fmt.Errorf("multipart writer close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/transcribe", &b)
	if err != nil {
		return "", fmt.Errorf("new transcription request: %w", err)
	}

	req.Header.Set("Content-Type", multipartWriter.FormDataContentType())

	var result struct {
		Transcription *string `json:"transcription"`
	}

	err = c.doJSON(req, "transcription relay", &result)
	if err != nil {
		return "", err
	}

	if result.Transcription == nil {
		return "", fmt.Errorf("%w: relay response has no transcription field", failure.ErrMalformedResponse)
	}

	return *result.Transcription, nil
}

// Generate asks the relay to generate a response to the transcript.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req, err := c.newTextRequest(ctx, "/generate", prompt)
	if err != nil {
		return "", err
	}

	var result struct {
		Response *string `json:"response"`
	}

	err = c.doJSON(req, "generation relay", &result)
	if err != nil {
		return "", err
	}

	if result.Response == nil {
		return "", fmt.Errorf("%w: relay response has no response field", failure.ErrMalformedResponse)
	}

	return *result.Response, nil
}

// GenerateAudio asks the relay to synthesize the text and returns a WAV file.
func (c *Client) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	req, err := c.newTextRequest(ctx, "/speak", text)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "speech relay")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, fmt.Errorf("read speech response: %w", err))
	}

	return b, nil
}

func (c *Client) newTextRequest(ctx context.Context, path, text string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func (c *Client) doJSON(req *http.Request, service string, result any) error {
	resp, err := c.do(req, service)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	err = json.NewDecoder(resp.Body).Decode(result)
	if err != nil {
		return fmt.Errorf("%w: decode %s response: %w", failure.ErrMalformedResponse, service, err)
	}

	return nil
}

func (c *Client) do(req *http.Request, service string) (*http.Response, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, fmt.Errorf("send %s request: %w", service, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()

		return nil, statusError(service, resp)
	}

	return resp, nil
}

// statusError maps the relay's error status codes back to error kinds.
func statusError(service string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}

	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	var kind error

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		kind = failure.ErrInvalidInput
	case http.StatusTooManyRequests:
		kind = failure.ErrRateLimited
	case http.StatusGatewayTimeout:
		kind = failure.ErrTimeout
	case http.StatusConflict:
		kind = failure.ErrBusy
	default:
		kind = failure.ErrTransport
	}

	if body.Error != "" {
		return fmt.Errorf("%w: %s responded with status code %d: %s", kind, service, resp.StatusCode, body.Error)
	}

	return fmt.Errorf("%w: %s responded with status code %d", kind, service, resp.StatusCode)
}
