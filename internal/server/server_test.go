package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
	"github.com/mgoltzsche/speech-relay/internal/metrics"
)

type fakeTranscriber struct {
	mutex    sync.Mutex
	received [][]byte
	text     string
	err      error
}

func (t *fakeTranscriber) Transcribe(_ context.Context, audioData []byte) (string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.received = append(t.received, audioData)

	return t.text, t.err
}

func (t *fakeTranscriber) Received() [][]byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.received
}

type fakeGenerator struct {
	mutex   sync.Mutex
	prompts []string
	err     error
}

func (g *fakeGenerator) Prompts() []string {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.prompts
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.prompts = append(g.prompts, prompt)

	if g.err != nil {
		return "", g.err
	}

	return fmt.Sprintf("You said: %q", prompt), nil
}

type fakeSpeech struct{}

func (fakeSpeech) GenerateAudio(context.Context, string) ([]byte, error) {
	return audio.EncodeWAV(audio.Samples{SampleRate: 16000, Channels: [][]float32{{0, 0.1}}})
}

func newTestServer(t *testing.T, routes *Routes) *httptest.Server {
	t.Helper()

	if routes.Metrics == nil {
		routes.Metrics = metrics.New()
	}

	mux := http.NewServeMux()
	routes.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func multipartBody(t *testing.T, field string, data []byte) (io.Reader, string) {
	t.Helper()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	if field != "" {
		part, err := w.CreateFormFile(field, "recording.wav")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("other", "value"))
	}

	require.NoError(t, w.Close())

	return &b, w.FormDataContentType()
}

func testWAV(t *testing.T) []byte {
	t.Helper()

	b, err := audio.EncodeWAV(audio.Samples{SampleRate: 16000, Channels: [][]float32{{0, 1, -1}}})
	require.NoError(t, err)

	return b
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()

	defer resp.Body.Close()

	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return body
}

func TestTranscribe(t *testing.T) {
	for _, path := range []string{"/transcribe", "/api/convert-speech"} {
		t.Run(path, func(t *testing.T) {
			transcriber := &fakeTranscriber{text: "hello world"}
			srv := newTestServer(t, &Routes{Transcriber: transcriber, Generator: &fakeGenerator{}})
			wavData := testWAV(t)

			body, contentType := multipartBody(t, "audio", wavData)
			resp, err := srv.Client().Post(srv.URL+path, contentType, body)
			require.NoError(t, err)

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, map[string]string{"transcription": "hello world"}, decodeJSON(t, resp))
			require.Equal(t, [][]byte{wavData}, transcriber.Received())
		})
	}
}

func TestTranscribeErrors(t *testing.T) {
	for _, tc := range []struct {
		name           string
		field          string
		data           []byte
		transcribeErr  error
		maxUploadBytes int64
		expectedStatus int
	}{
		{
			name:           "missing audio field",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "empty audio",
			field:          "audio",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "upload too large",
			field:          "audio",
			data:           bytes.Repeat([]byte{1}, 4096),
			maxUploadBytes: 1024,
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:           "rate limited",
			field:          "audio",
			data:           []byte("RIFF"),
			transcribeErr:  fmt.Errorf("transcribe: %w", failure.ErrRateLimited),
			expectedStatus: http.StatusTooManyRequests,
		},
		{
			name:           "remote service failure",
			field:          "audio",
			data:           []byte("RIFF"),
			transcribeErr:  failure.FromStatus("speech service", http.StatusForbidden),
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "timeout",
			field:          "audio",
			data:           []byte("RIFF"),
			transcribeErr:  context.DeadlineExceeded,
			expectedStatus: http.StatusGatewayTimeout,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			transcriber := &fakeTranscriber{text: "hello", err: tc.transcribeErr}
			srv := newTestServer(t, &Routes{Transcriber: transcriber, Generator: &fakeGenerator{}, MaxUploadBytes: tc.maxUploadBytes})

			body, contentType := multipartBody(t, tc.field, tc.data)
			resp, err := srv.Client().Post(srv.URL+"/transcribe", contentType, body)
			require.NoError(t, err)

			require.Equal(t, tc.expectedStatus, resp.StatusCode)
			msg := decodeJSON(t, resp)["error"]
			require.NotEmpty(t, msg)
			require.NotContains(t, msg, "status code", "should not leak error details")
		})
	}
}

func TestTranscribeNotMultipart(t *testing.T) {
	srv := newTestServer(t, &Routes{Transcriber: &fakeTranscriber{}, Generator: &fakeGenerator{}})

	resp, err := srv.Client().Post(srv.URL+"/transcribe", "audio/wav", bytes.NewReader(testWAV(t)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerate(t *testing.T) {
	generator := &fakeGenerator{}
	srv := newTestServer(t, &Routes{Transcriber: &fakeTranscriber{}, Generator: generator})

	for _, text := range []string{"What time is it?", ""} {
		resp, err := srv.Client().Post(srv.URL+"/generate", "application/json", strings.NewReader(fmt.Sprintf(`{"text":%q}`, text)))
		require.NoError(t, err)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, map[string]string{"response": fmt.Sprintf("You said: %q", text)}, decodeJSON(t, resp))
	}

	require.Equal(t, []string{"What time is it?", ""}, generator.Prompts())
}

func TestGenerateErrors(t *testing.T) {
	srv := newTestServer(t, &Routes{Transcriber: &fakeTranscriber{}, Generator: &fakeGenerator{err: failure.ErrMalformedResponse}})

	resp, err := srv.Client().Post(srv.URL+"/generate", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = srv.Client().Post(srv.URL+"/generate", "application/json", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, failure.Message(failure.ErrMalformedResponse), decodeJSON(t, resp)["error"])
}

func TestSpeak(t *testing.T) {
	srv := newTestServer(t, &Routes{Transcriber: &fakeTranscriber{}, Generator: &fakeGenerator{}, Speech: fakeSpeech{}})

	resp, err := srv.Client().Post(srv.URL+"/speak", "application/json", strings.NewReader(`{"text":"Hello."}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Len(t, b, audio.EncodedSize(1, 2))
}

func TestSpeakNotConfigured(t *testing.T) {
	srv := newTestServer(t, &Routes{Transcriber: &fakeTranscriber{}, Generator: &fakeGenerator{}})

	resp, err := srv.Client().Post(srv.URL+"/speak", "application/json", strings.NewReader(`{"text":"Hello."}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newTestServer(t, &Routes{Transcriber: &fakeTranscriber{text: "hi"}, Generator: &fakeGenerator{}})

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, map[string]string{"status": "ok"}, decodeJSON(t, resp))

	body, contentType := multipartBody(t, "audio", testWAV(t))
	resp, err = srv.Client().Post(srv.URL+"/transcribe", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(b), `speech_relay_http_requests_total{code="200",route="POST /transcribe"} 1`)
}

func TestTranscribeTimeout(t *testing.T) {
	srv := newTestServer(t, &Routes{
		Transcriber:    &blockingTranscriber{},
		Generator:      &fakeGenerator{},
		RequestTimeout: 50 * time.Millisecond,
	})

	body, contentType := multipartBody(t, "audio", testWAV(t))
	resp, err := srv.Client().Post(srv.URL+"/transcribe", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

type blockingTranscriber struct{}

func (blockingTranscriber) Transcribe(ctx context.Context, _ []byte) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
