package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
)

type response struct {
	Text *string `json:"text"`
}

// Client transcribes audio using an OpenAI-compatible API such as LocalAI or whisper.cpp.
type Client struct {
	URL      string
	Model    string
	Language string
	APIKey   string
	Client   *http.Client
}

func (c *Client) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	var b bytes.Buffer
	multipartWriter := multipart.NewWriter(&b)

	fileName := audio.Sniff(audioData).FileName("input")

	part, err := multipartWriter.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("creating multipart form file: %w", err)
	}

	_, err = part.Write(audioData)
	if err != nil {
		return "", fmt.Errorf("write data to multipart writer: %w", err)
	}

	err = multipartWriter.WriteField("model", c.Model)
	if err != nil {
		return "", fmt.Errorf("write multipart request field: %w", err)
	}

	if c.Language != "" {
		err = multipartWriter.WriteField("language", c.Language)
		if err != nil {
			return "", fmt.Errorf("write multipart request field: %w", err)
		}
	}

	err = multipartWriter.Close()
	if err != nil {
		return "", fmt.Errorf("multipart writer close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/v1/audio/transcriptions", &b)
	if err != nil {
		return "", fmt.Errorf("new transcription request: %w", err)
	}

	req.Header.Set("Content-Type", multipartWriter.FormDataContentType())

	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	return c.send(req)
}

func (c *Client) send(request *http.Request) (string, error) {
	resp, err := httpClient(c.Client).Do(request)
	if err != nil {
		return "", failure.Wrap(failure.ErrTransport, fmt.Errorf("send transcription request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", failure.FromStatus("transcription server", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", failure.Wrap(failure.ErrTransport, fmt.Errorf("read body: %w", err))
	}

	var result response

	err = json.Unmarshal(body, &result)
	if err != nil {
		return "", fmt.Errorf("%w: unmarshal body: %w", failure.ErrMalformedResponse, err)
	}

	if result.Text == nil {
		return "", fmt.Errorf("%w: transcription response has no text field", failure.ErrMalformedResponse)
	}

	return *result.Text, nil
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}

	return c
}
