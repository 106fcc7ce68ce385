// internal/conversation/stream.go
package conversation

import (
	"context"
	"encoding/json"
	"net/http"

	"workout-insights/internal/common/llm"
	"workout-insights/internal/models"
)

const (
	ContentTypeJSONLines = "application/json-lines"
	finishReasonStop     = "stop"
)

// FrameProducer yields the frames of one streamed reply. The last frame carries
// finish_reason "stop" and no messages.
type FrameProducer interface {
	Frames(ctx context.Context, emit func(models.ChatCompletion) error) error
}

// SingleFrame replays a finished completion as one data frame and a terminal frame.
type SingleFrame struct {
	Completion models.ChatCompletion
}

func (s SingleFrame) Frames(ctx context.Context, emit func(models.ChatCompletion) error) error {
	if err := emit(s.Completion); err != nil {
		return err
	}
	return emit(terminalFrame(s.Completion.ID, s.Completion.HistoryMetadata))
}

// DeltaFrames relays model deltas as they arrive, one frame per delta.
type DeltaFrames struct {
	Streamer        llm.Streamer
	Request         llm.Request
	ID              string
	HistoryMetadata map[string]interface{}
}

func (d DeltaFrames) Frames(ctx context.Context, emit func(models.ChatCompletion) error) error {
	err := d.Streamer.Stream(ctx, d.Request, func(delta string) error {
		if delta == "" {
			return nil
		}
		return emit(models.ChatCompletion{
			ID:     d.ID,
			Object: "chat.completion.chunk",
			Choices: []models.Choice{{
				Index:    0,
				Messages: []models.ResponseMessage{assistantMessage(d.ID, delta, "")},
			}},
			HistoryMetadata: d.HistoryMetadata,
		})
	})
	if err != nil {
		return err
	}
	return emit(terminalFrame(d.ID, d.HistoryMetadata))
}

func terminalFrame(id string, metadata map[string]interface{}) models.ChatCompletion {
	return models.ChatCompletion{
		ID: id,
		Choices: []models.Choice{{
			Index:        0,
			Messages:     []models.ResponseMessage{},
			FinishReason: finishReasonStop,
		}},
		HistoryMetadata: metadata,
	}
}

// WriteFrames streams p as newline-delimited JSON, flushing after every frame.
// A producer error after the first byte is reported as a final {"error": ...} line.
func WriteFrames(ctx context.Context, w http.ResponseWriter, p FrameProducer) error {
	w.Header().Set("Content-Type", ContentTypeJSONLines)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	err := p.Frames(ctx, func(frame models.ChatCompletion) error {
		if err := enc.Encode(frame); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return ctx.Err()
	})
	if err != nil {
		_ = enc.Encode(map[string]string{"error": err.Error()})
		if flusher != nil {
			flusher.Flush()
		}
	}
	return err
}
