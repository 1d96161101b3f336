package chat

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/xiewu/frigate/internal/camera"
	"github.com/xiewu/frigate/internal/genai"
	"github.com/xiewu/frigate/internal/logger"
)

// simulatedChunkSize is the target fragment length when an adapter has no
// native streaming and the final answer is replayed as chunks.
const simulatedChunkSize = 80

type StreamFrameType string

const (
	FrameContent   StreamFrameType = "content"
	FrameToolCalls StreamFrameType = "tool_calls"
	FrameError     StreamFrameType = "error"
	FrameDone      StreamFrameType = "done"
)

// StreamFrame is one NDJSON frame of a streamed completion. A stream is
// zero or more content/tool_calls frames followed by exactly one terminal
// frame (done or error).
type StreamFrame struct {
	Type           StreamFrameType    `json:"type"`
	Content        string             `json:"content,omitempty"`
	ToolCalls      []ExecutedToolCall `json:"tool_calls,omitempty"`
	Error          string             `json:"error,omitempty"`
	FinishReason   genai.FinishReason `json:"finish_reason,omitempty"`
	ToolIterations int                `json:"tool_iterations,omitempty"`
}

// CompleteStream runs the tool-calling loop and streams the result.
// Providers with native streaming forward content deltas as they arrive;
// for the rest the blocking loop runs and the final answer is simulated as
// word-bounded fragments. Cancelling ctx stops the stream.
func (o *Orchestrator) CompleteStream(ctx context.Context, req Request, scope camera.AccessScope) <-chan StreamFrame {
	frames := make(chan StreamFrame)

	go func() {
		defer close(frames)

		client := o.manager.ToolClient()
		if client == nil {
			logger.Warnf("Chat completion requested but no tools provider is bound.")
			emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameError, Error: notConfiguredMessage})
			return
		}

		if streaming, ok := client.(genai.StreamingProvider); ok {
			o.streamNative(ctx, streaming, req, scope, frames)
			return
		}
		o.streamSimulated(ctx, req, scope, frames)
	}()

	return frames
}

func (o *Orchestrator) streamNative(ctx context.Context, client genai.StreamingProvider, req Request, scope camera.AccessScope, frames chan<- StreamFrame) {
	conversation := o.buildConversation(req, scope)
	definitions := o.dispatcher.Definitions()
	limit := o.iterationCap(req.MaxToolIterations)
	iterations := 0

	for iterations < limit {
		var final *genai.NormalizedResponse
		for ev := range client.ChatWithToolsStream(ctx, conversation, definitions, genai.ToolChoiceAuto) {
			if ev.Response != nil {
				final = ev.Response
				continue
			}
			if ev.Delta != "" && !emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameContent, Content: ev.Delta}) {
				return
			}
		}

		if final == nil || final.FinishReason == genai.FinishError {
			logger.Errorf("GenAI client returned an error")
			emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameError, Error: genericErrorMessage, ToolIterations: iterations})
			return
		}

		conversation = append(conversation, assistantMessage(*final))

		if len(final.ToolCalls) == 0 {
			emitFrame(frames, ctx.Done(), StreamFrame{
				Type:           FrameDone,
				FinishReason:   final.FinishReason,
				ToolIterations: iterations,
			})
			return
		}

		iterations++
		executed, toolMessages := o.executeCalls(ctx, final.ToolCalls, scope)
		conversation = append(conversation, toolMessages...)
		if !emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameToolCalls, ToolCalls: executed, ToolIterations: iterations}) {
			return
		}
	}

	logger.Warnf("Max tool iterations (%d) reached. Returning partial response.", limit)
	if !emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameContent, Content: maxIterationsMessage}) {
		return
	}
	emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameDone, FinishReason: genai.FinishLength, ToolIterations: iterations})
}

// streamSimulated runs the blocking loop and replays the answer in chunks.
func (o *Orchestrator) streamSimulated(ctx context.Context, req Request, scope camera.AccessScope, frames chan<- StreamFrame) {
	resp := o.Complete(ctx, req, scope)

	if resp.FinishReason == genai.FinishError {
		emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameError, Error: resp.Message.Content, ToolIterations: resp.ToolIterations})
		return
	}

	if len(resp.ToolCalls) > 0 {
		if !emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameToolCalls, ToolCalls: resp.ToolCalls, ToolIterations: resp.ToolIterations}) {
			return
		}
	}

	for _, chunk := range chunkContent(resp.Message.Content, simulatedChunkSize) {
		if !emitFrame(frames, ctx.Done(), StreamFrame{Type: FrameContent, Content: chunk}) {
			return
		}
	}

	emitFrame(frames, ctx.Done(), StreamFrame{
		Type:           FrameDone,
		FinishReason:   resp.FinishReason,
		ToolIterations: resp.ToolIterations,
	})
}

// chunkContent splits content into fragments of roughly threshold bytes,
// cutting only at word boundaries and keeping each trailing space with the
// preceding fragment. Concatenating the fragments reproduces content
// exactly.
func chunkContent(content string, threshold int) []string {
	if content == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder
	for _, token := range strings.SplitAfter(content, " ") {
		if current.Len() > 0 && current.Len()+len(token) > threshold {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(token)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func emitFrame(frames chan<- StreamFrame, done <-chan struct{}, frame StreamFrame) bool {
	select {
	case frames <- frame:
		return true
	case <-done:
		return false
	}
}

// WriteNDJSON encodes each frame as one JSON line, flushing after every
// frame when the writer supports it.
func WriteNDJSON(w io.Writer, frames <-chan StreamFrame) error {
	encoder := json.NewEncoder(w)
	for frame := range frames {
		if err := encoder.Encode(frame); err != nil {
			return err
		}
		switch flusher := w.(type) {
		case interface{ Flush() }:
			flusher.Flush()
		case interface{ Flush() error }:
			if err := flusher.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}
