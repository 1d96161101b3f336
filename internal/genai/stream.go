package genai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiewu/frigate/internal/logger"
)

// toolCallAccumulator collects tool-call fragments from a streamed turn.
// Slots are keyed by the provider's per-call stream index, not by id: ids
// arrive once on the first chunk of a call (or never, for providers that
// omit them) while argument text trickles in across many chunks.
type toolCallAccumulator struct {
	order []int
	slots map[int]*toolCallSlot
}

type toolCallSlot struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{slots: make(map[int]*toolCallSlot)}
}

func (a *toolCallAccumulator) add(index int, id, name, argFragment string) {
	slot, ok := a.slots[index]
	if !ok {
		slot = &toolCallSlot{}
		a.slots[index] = slot
		a.order = append(a.order, index)
	}
	if id != "" {
		slot.id = id
	}
	if name != "" {
		slot.name = name
	}
	if argFragment != "" {
		slot.args.WriteString(argFragment)
	}
}

func (a *toolCallAccumulator) empty() bool {
	return len(a.order) == 0
}

// calls finalizes the accumulated slots in stream order. Arguments are
// JSON-parsed only now that each call's stream is complete; a parse
// failure degrades to passing the raw text through as a single string
// argument instead of failing the turn. A stable id is synthesized for
// any slot whose provider never supplied one.
func (a *toolCallAccumulator) calls() []ToolCallRequest {
	if a.empty() {
		return nil
	}

	result := make([]ToolCallRequest, 0, len(a.order))
	for _, index := range a.order {
		slot := a.slots[index]

		raw := slot.args.String()
		arguments := map[string]interface{}{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
				logger.Warnf("Failed to parse streamed tool call arguments for %s: %v", slot.name, err)
				arguments = map[string]interface{}{"raw": raw}
			}
		}

		id := slot.id
		if id == "" {
			id = fmt.Sprintf("call_%d_%d", index, time.Now().UnixNano())
		}

		result = append(result, ToolCallRequest{
			ID:        id,
			Name:      slot.name,
			Arguments: arguments,
		})
	}
	return result
}

// finalizeStream builds the terminal normalized response for a streamed
// turn from the accumulated content and tool calls.
func finalizeStream(content string, reason FinishReason, acc *toolCallAccumulator) NormalizedResponse {
	calls := acc.calls()
	content = strings.TrimSpace(content)
	return NormalizedResponse{
		Content:      content,
		ToolCalls:    calls,
		FinishReason: normalizeFinish(reason, content, calls),
	}
}

// emitEvent sends ev unless the consumer has gone away.
func emitEvent(events chan<- StreamEvent, done <-chan struct{}, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-done:
		return false
	}
}
