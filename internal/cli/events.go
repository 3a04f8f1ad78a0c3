package cli

import (
	"fmt"
	"io"

	"github.com/mgoltzsche/speech-relay/internal/failure"
	"github.com/mgoltzsche/speech-relay/internal/pipeline"
)

// PrintEvents writes the progress of pipeline sessions to w until events is closed.
func PrintEvents(w io.Writer, events <-chan pipeline.Event) {
	for evt := range events {
		switch evt.State {
		case pipeline.StateRecording:
			fmt.Fprintln(w, "Recording... press Enter to stop.")
		case pipeline.StateTranscribing:
			fmt.Fprintln(w, "Transcribing...")
		case pipeline.StateGenerating:
			fmt.Fprintf(w, "You: %s\n", evt.Transcript)
		case pipeline.StateDone:
			fmt.Fprintf(w, "Assistant: %s\n", evt.Response)
		case pipeline.StateFailed:
			fmt.Fprintln(w, failure.Message(evt.Err))
		}
	}
}
