// Package pipeline runs a single recording through encoding, transcription,
// response generation and speech output, one stage after another.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
	"github.com/mgoltzsche/speech-relay/internal/pubsub"
)

// Pipeline owns at most one in-flight session at a time.
type Pipeline struct {
	Recorder       Recorder
	Transcriber    Transcriber
	Generator      Generator
	Speaker        Speaker
	SpeechDetector SpeechDetector
	SampleRate     int
	Quantization   audio.Quantization
	StageTimeout   time.Duration

	mutex   sync.Mutex
	session *Session
	events  *pubsub.PubSub[Event]
	once    sync.Once
}

// Session is a single recording and the processing of it.
type Session struct {
	ID       string
	pipeline *Pipeline
	mutex    sync.Mutex
	state    State
}

// Subscribe returns a subscription receiving the state changes of all sessions.
func (p *Pipeline) Subscribe(ctx context.Context) pubsub.Subscription[Event] {
	return p.eventBus().Subscribe(ctx)
}

// Close stops all event subscriptions.
func (p *Pipeline) Close() {
	p.eventBus().Stop()
}

func (p *Pipeline) eventBus() *pubsub.PubSub[Event] {
	p.once.Do(func() {
		p.events = pubsub.New[Event]()
	})

	return p.events
}

// Busy reports whether a session is recording or being processed.
func (p *Pipeline) Busy() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.session != nil
}

// Start starts recording.
// It fails with failure.ErrBusy while the previous session has not finished yet.
func (p *Pipeline) Start(ctx context.Context) (*Session, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.session != nil {
		return nil, &Error{SessionID: p.session.ID, Stage: StateIdle, Err: failure.ErrBusy}
	}

	s := &Session{
		ID:       uuid.NewString(),
		pipeline: p,
		state:    StateIdle,
	}

	err := p.Recorder.Start(ctx)
	if err != nil {
		err = &Error{SessionID: s.ID, Stage: StateRecording, Err: failure.Wrap(failure.ErrDevice, err)}
		s.transition(StateFailed, Event{Err: err})

		return nil, err
	}

	p.session = s
	s.transition(StateRecording, Event{})

	return s, nil
}

// State returns the current state of the session.
func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.state
}

// Stop ends the recording and processes it.
// The session ends in StateDone or StateFailed and the pipeline accepts a new session afterwards.
func (s *Session) Stop(ctx context.Context) (Result, error) {
	s.mutex.Lock()
	if s.state != StateRecording {
		state := s.state
		s.mutex.Unlock()

		return Result{}, &Error{SessionID: s.ID, Stage: state, Err: fmt.Errorf("%w: session is not recording", failure.ErrInvalidInput)}
	}
	s.state = StateEncoding
	s.mutex.Unlock()

	result, err := s.process(ctx)

	s.pipeline.release(s)

	if err != nil {
		s.transition(StateFailed, Event{Err: err, Transcript: result.Transcript, Response: result.Response})
		slog.Warn("pipeline run failed", "session", s.ID, "err", err)

		return result, err
	}

	s.transition(StateDone, Event{Transcript: result.Transcript, Response: result.Response})

	return result, nil
}

func (s *Session) process(ctx context.Context) (Result, error) {
	p := s.pipeline
	result := Result{SessionID: s.ID}

	samples, err := p.Recorder.Stop()
	if err != nil {
		return result, s.fail(StateRecording, failure.Wrap(failure.ErrDevice, err))
	}

	var wav []byte

	err = s.runStage(ctx, StateEncoding, Event{}, func(context.Context) error {
		wav, err = p.encode(samples)
		return err
	})
	if err != nil {
		return result, err
	}

	err = s.runStage(ctx, StateTranscribing, Event{}, func(ctx context.Context) error {
		result.Transcript, err = p.Transcriber.Transcribe(ctx, wav)
		return err
	})
	if err != nil {
		return result, err
	}

	err = s.runStage(ctx, StateGenerating, Event{Transcript: result.Transcript}, func(ctx context.Context) error {
		result.Response, err = p.Generator.Generate(ctx, result.Transcript)
		return err
	})
	if err != nil {
		return result, err
	}

	if p.Speaker != nil {
		err = s.runStage(ctx, StateSpeaking, Event{Transcript: result.Transcript, Response: result.Response}, func(ctx context.Context) error {
			return p.Speaker.Speak(ctx, result.Response)
		})
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (p *Pipeline) encode(samples audio.Samples) ([]byte, error) {
	if err := samples.Validate(); err != nil {
		return nil, err
	}

	if p.SampleRate > 0 {
		samples = audio.Resample(samples, p.SampleRate)
	}

	if p.SpeechDetector != nil {
		detected, err := p.SpeechDetector.DetectSpeech(samples)
		if err != nil {
			return nil, fmt.Errorf("detect speech: %w", err)
		}

		if !detected {
			return nil, fmt.Errorf("%w: no speech detected", failure.ErrInvalidInput)
		}
	}

	return audio.Encoder{Quantization: p.Quantization}.Encode(samples)
}

func (s *Session) runStage(ctx context.Context, state State, evt Event, fn func(context.Context) error) error {
	s.transition(state, evt)

	if timeout := s.pipeline.StageTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)

	slog.Debug("pipeline stage finished", "session", s.ID, "stage", state, "duration", time.Since(start))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, failure.ErrTimeout) {
			err = fmt.Errorf("%w: %w", failure.ErrTimeout, err)
		}

		return s.fail(state, err)
	}

	return nil
}

func (s *Session) fail(state State, err error) error {
	return &Error{SessionID: s.ID, Stage: state, Err: err}
}

func (s *Session) transition(state State, evt Event) {
	s.mutex.Lock()
	s.state = state
	s.mutex.Unlock()

	evt.SessionID = s.ID
	evt.State = state

	s.pipeline.eventBus().Publish(evt)
}

func (p *Pipeline) release(s *Session) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.session == s {
		p.session = nil
	}
}
