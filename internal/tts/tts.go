// Package tts turns generated text into speech.
package tts

import (
	"context"
	"fmt"
	"log/slog"
)

// Service generates speech as WAV file.
type Service interface {
	GenerateAudio(ctx context.Context, text string) ([]byte, error)
}

// Player plays a WAV file.
type Player interface {
	Play(ctx context.Context, wavData []byte) error
}

// Speaker speaks a text sentence by sentence.
// The next sentence is generated while the previous one is played.
type Speaker struct {
	Service Service
	Player  Player
}

type generatedSpeech struct {
	Text     string
	WaveData []byte
	Err      error
}

func (s *Speaker) Speak(ctx context.Context, text string) error {
	sentences := SplitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := s.generateAudio(ctx, sentences)

	for speech := range ch {
		if speech.Err != nil {
			return fmt.Errorf("generate speech for %q: %w", speech.Text, speech.Err)
		}

		slog.Debug("playing sentence", "text", speech.Text)

		err := s.Player.Play(ctx, speech.WaveData)
		if err != nil {
			return fmt.Errorf("play speech: %w", err)
		}
	}

	return ctx.Err()
}

func (s *Speaker) generateAudio(ctx context.Context, sentences []string) <-chan generatedSpeech {
	ch := make(chan generatedSpeech, 1)

	go func() {
		defer close(ch)

		for _, sentence := range sentences {
			b, err := s.Service.GenerateAudio(ctx, sentence)

			select {
			case ch <- generatedSpeech{Text: sentence, WaveData: b, Err: err}:
			case <-ctx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()

	return ch
}
