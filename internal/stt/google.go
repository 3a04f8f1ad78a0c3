package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/go-audio/wav"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// Google transcribes audio using the Google Cloud Speech-to-Text v1 REST API.
type Google struct {
	URL      string
	APIKey   string
	Language string
	// Encoding and SampleRate are sent for uploads that are not WAV files.
	Encoding   string
	SampleRate int
	Client     *http.Client

	once   sync.Once
	speech *speech.Client
	err    error
}

func (g *Google) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	recognition, err := g.recognitionConfig(audioData)
	if err != nil {
		return "", err
	}

	client, err := g.client()
	if err != nil {
		return "", fmt.Errorf("init speech client: %w", err)
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognition,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return "", googleError("speech recognition service", fmt.Errorf("recognize: %w", err))
	}

	transcripts := make([]string, 0, len(resp.GetResults()))

	for i, r := range resp.GetResults() {
		alternatives := r.GetAlternatives()
		if len(alternatives) == 0 {
			return "", fmt.Errorf("%w: recognition result %d has no alternatives", failure.ErrMalformedResponse, i)
		}

		transcripts = append(transcripts, alternatives[0].GetTranscript())
	}

	return strings.Join(transcripts, "\n"), nil
}

func (g *Google) client() (*speech.Client, error) {
	g.once.Do(func() {
		opts := []option.ClientOption{option.WithEndpoint(g.URL)}

		switch {
		case g.Client != nil:
			// A custom client bypasses the transport that would add the API key.
			opts = append(opts, option.WithHTTPClient(withAPIKey(g.Client, g.APIKey)))
		case g.APIKey != "":
			opts = append(opts, option.WithAPIKey(g.APIKey))
		}

		g.speech, g.err = speech.NewRESTClient(context.Background(), opts...)
	})

	return g.speech, g.err
}

func (g *Google) recognitionConfig(audioData []byte) (*speechpb.RecognitionConfig, error) {
	if audio.Sniff(audioData) == audio.FormatWAV {
		d := wav.NewDecoder(bytes.NewReader(audioData))
		d.ReadInfo()

		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%w: read wav header: %w", failure.ErrInvalidInput, err)
		}

		if d.SampleRate == 0 || d.BitDepth != 16 {
			return nil, fmt.Errorf("%w: expected 16-bit PCM wav audio but got %d-bit at %dHz", failure.ErrInvalidInput, d.BitDepth, d.SampleRate)
		}

		return &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(d.SampleRate),
			LanguageCode:    g.Language,
		}, nil
	}

	encoding, ok := speechpb.RecognitionConfig_AudioEncoding_value[g.Encoding]
	if !ok {
		return nil, fmt.Errorf("unsupported speech recognition encoding %q", g.Encoding)
	}

	return &speechpb.RecognitionConfig{
		Encoding:        speechpb.RecognitionConfig_AudioEncoding(encoding),
		SampleRateHertz: int32(g.SampleRate),
		LanguageCode:    g.Language,
	}, nil
}

// googleError maps an error returned by a Google API client to a failure kind.
func googleError(service string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", failure.FromStatus(service, apiErr.Code), err)
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

type apiKeyTransport struct {
	key      string
	delegate http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Goog-Api-Key", t.key)

	return t.delegate.RoundTrip(req)
}

func withAPIKey(c *http.Client, key string) *http.Client {
	if key == "" {
		return c
	}

	transport := c.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	withKey := *c
	withKey.Transport = &apiKeyTransport{key: key, delegate: transport}

	return &withKey
}
