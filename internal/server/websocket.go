package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
	"github.com/mgoltzsche/speech-relay/internal/pipeline"
	"github.com/mgoltzsche/speech-relay/internal/pubsub"
)

const (
	eventTypeState         = "state"
	eventTypeTranscription = "transcription"
	eventTypeResponse      = "response"
	eventTypeError         = "error"
)

// clientMessage is a control message sent by the browser.
// Audio is sent as binary messages, each containing a WAV encoded chunk.
type clientMessage struct {
	Type string `json:"type"`
}

type serverEvent struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId,omitempty"`
	State         string `json:"state,omitempty"`
	Transcription string `json:"transcription,omitempty"`
	Response      string `json:"response,omitempty"`
	Error         string `json:"error,omitempty"`
}

// serveWebsocket runs one pipeline per websocket connection.
func (s *Routes) serveWebsocket(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		slog.Warn("accept websocket connection", "err", err)
		return
	}
	defer conn.CloseNow()

	conn.SetReadLimit(s.maxUploadBytes())

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	recorder := &pipeline.ChunkRecorder{
		Decoder:  audio.Encoder{Quantization: s.Quantization},
		MaxBytes: s.maxUploadBytes(),
	}
	p := &pipeline.Pipeline{
		Recorder:     recorder,
		Transcriber:  s.Transcriber,
		Generator:    s.Generator,
		SampleRate:   s.SampleRate,
		Quantization: s.Quantization,
		StageTimeout: s.RequestTimeout,
	}
	defer p.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	sub := p.Subscribe(ctx)

	wg.Add(1)

	go func() {
		defer wg.Done()
		s.forwardEvents(ctx, conn, sub)
	}()

	err = s.readMessages(ctx, conn, p, recorder, &wg)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			slog.Warn("websocket connection failed", "err", err)
		}
	}

	cancel()
}

func (s *Routes) readMessages(ctx context.Context, conn *websocket.Conn, p *pipeline.Pipeline, recorder *pipeline.ChunkRecorder, wg *sync.WaitGroup) error {
	var session *pipeline.Session

	tooLarge := false

	for {
		msgType, b, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		switch msgType {
		case websocket.MessageBinary:
			err = recorder.Append(b)
			if err != nil {
				exceeded := errors.Is(err, pipeline.ErrRecordingTooLarge)
				if exceeded && tooLarge {
					continue
				}

				tooLarge = tooLarge || exceeded

				sendError(ctx, conn, fmt.Errorf("append audio chunk: %w", err))
			}
		case websocket.MessageText:
			var msg clientMessage

			err = json.Unmarshal(b, &msg)
			if err != nil {
				sendError(ctx, conn, fmt.Errorf("%w: decode client message: %w", failure.ErrInvalidInput, err))
				continue
			}

			switch msg.Type {
			case "start":
				sess, err := p.Start(ctx)
				if err != nil {
					if errors.Is(err, failure.ErrBusy) {
						sendError(ctx, conn, err)
					}

					continue
				}

				session = sess
				tooLarge = false
			case "stop":
				if session == nil {
					sendError(ctx, conn, fmt.Errorf("%w: stop received while not recording", failure.ErrInvalidInput))
					continue
				}

				sess := session
				session = nil

				wg.Add(1)

				go func() {
					defer wg.Done()

					_, _ = sess.Stop(ctx)
				}()
			default:
				sendError(ctx, conn, fmt.Errorf("%w: unsupported message type %q", failure.ErrInvalidInput, msg.Type))
			}
		}
	}
}

// forwardEvents sends the pipeline's state changes to the client.
func (s *Routes) forwardEvents(ctx context.Context, conn *websocket.Conn, sub pubsub.Subscription[pipeline.Event]) {
	defer sub.Stop()

	for evt := range sub.ResultChan() {
		for _, e := range toServerEvents(evt) {
			err := wsjson.Write(ctx, conn, e)
			if err != nil {
				slog.Debug("failed to send websocket event", "err", err)
				return
			}
		}

		if s.Metrics != nil && (evt.State == pipeline.StateDone || evt.State == pipeline.StateFailed) {
			s.Metrics.RecordPipelineRun(string(evt.State))
		}
	}
}

func toServerEvents(evt pipeline.Event) []serverEvent {
	events := []serverEvent{{
		Type:      eventTypeState,
		SessionID: evt.SessionID,
		State:     string(evt.State),
	}}

	switch evt.State {
	case pipeline.StateGenerating:
		events = append(events, serverEvent{
			Type:          eventTypeTranscription,
			SessionID:     evt.SessionID,
			Transcription: evt.Transcript,
		})
	case pipeline.StateDone:
		events = append(events, serverEvent{
			Type:      eventTypeResponse,
			SessionID: evt.SessionID,
			Response:  evt.Response,
		})
	case pipeline.StateFailed:
		events = append(events, serverEvent{
			Type:      eventTypeError,
			SessionID: evt.SessionID,
			Error:     errorMessage(evt.Err),
		})
	}

	return events
}

func sendError(ctx context.Context, conn *websocket.Conn, err error) {
	slog.Warn("websocket request failed", "err", err)

	err = wsjson.Write(ctx, conn, serverEvent{Type: eventTypeError, Error: errorMessage(err)})
	if err != nil {
		slog.Debug("failed to send websocket error", "err", err)
	}
}

func errorMessage(err error) string {
	if errors.Is(err, pipeline.ErrRecordingTooLarge) {
		return tooLargeMessage
	}

	return failure.Message(err)
}
