package config

import (
	"encoding/json"
	"fmt"
	"time"
)

type Configuration struct {
	STT            STTConfig       `json:"stt"`
	Generator      GeneratorConfig `json:"generator"`
	TTS            TTSConfig       `json:"tts,omitempty"`
	RequestTimeout Duration        `json:"requestTimeout,omitempty"`
	MaxUploadBytes int64           `json:"maxUploadBytes,omitempty"`
	Client         ClientConfig    `json:"client,omitempty"`
}

type STTConfig struct {
	// Provider is either "openai" (OpenAI-compatible API) or "google" (Cloud Speech-to-Text).
	Provider   string `json:"provider"`
	ServerURL  string `json:"serverURL"`
	APIKey     string `json:"apiKey,omitempty"`
	Model      string `json:"model,omitempty"`
	Language   string `json:"language,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

type GeneratorConfig struct {
	// Provider is either "gemini" or "openai".
	Provider    string  `json:"provider"`
	ServerURL   string  `json:"serverURL"`
	APIKey      string  `json:"apiKey,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type TTSConfig struct {
	ServerURL string `json:"serverURL,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
	Model     string `json:"model,omitempty"`
	Voice     string `json:"voice,omitempty"`
}

type ClientConfig struct {
	RelayURL     string `json:"relayURL,omitempty"`
	InputDevice  string `json:"inputDevice,omitempty"`
	OutputDevice string `json:"outputDevice,omitempty"`
	SampleRate   int    `json:"sampleRate,omitempty"`
	Quantization string `json:"quantization,omitempty"`
	Speak        bool   `json:"speak,omitempty"`
	VADEnabled   bool   `json:"vadEnabled,omitempty"`
	VADModelPath string `json:"vadModelPath,omitempty"`
}

func Default() Configuration {
	return Configuration{
		STT: STTConfig{
			Provider:   "google",
			ServerURL:  "https://speech.googleapis.com",
			Model:      "whisper-1",
			Language:   "en-US",
			Encoding:   "WEBM_OPUS",
			SampleRate: 16000,
		},
		Generator: GeneratorConfig{
			Provider:    "gemini",
			ServerURL:   "https://generativelanguage.googleapis.com",
			Model:       "gemini-2.0-flash",
			Temperature: 0.7,
		},
		TTS: TTSConfig{
			Model: "tts-1",
			Voice: "alloy",
		},
		RequestTimeout: Duration(60 * time.Second),
		MaxUploadBytes: 25 << 20,
		Client: ClientConfig{
			RelayURL:     "http://localhost:8080",
			SampleRate:   16000,
			Quantization: "asymmetric",
			VADModelPath: "/var/lib/speech-relay/silero_vad.onnx",
		},
	}
}

// Duration is a time.Duration that is represented as a string such as "30s" within the configuration.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string

	err := json.Unmarshal(b, &s)
	if err != nil {
		return fmt.Errorf("duration must be a string such as \"30s\": %w", err)
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

// Set implements flag.Value.
func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
