package genai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func openAITestConfig(baseURL string) ClientConfig {
	return ClientConfig{
		Name:     "test",
		Provider: ProviderOpenAI,
		APIKey:   "test-key",
		BaseURL:  baseURL + "/v1",
		Model:    "gpt-test",
		Timeout:  5 * time.Second,
	}
}

func TestOpenAIChatWithToolsParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "search_objects", "arguments": "{\"label\":\"person\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`)
	}))
	defer srv.Close()

	client := NewOpenAI(openAITestConfig(srv.URL))
	resp := client.ChatWithTools(context.Background(), []Message{{Role: RoleUser, Content: "who is outside?"}}, nil, ToolChoiceAuto)

	if resp.FinishReason != FinishToolCalls {
		t.Fatalf("expected tool_calls, got %s", resp.FinishReason)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "search_objects" {
		t.Fatalf("unexpected call: %+v", call)
	}
	if call.Arguments["label"] != "person" {
		t.Fatalf("unexpected arguments: %+v", call.Arguments)
	}
}

func TestOpenAIChatWithToolsServerErrorAbsorbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOpenAI(openAITestConfig(srv.URL))
	resp := client.ChatWithTools(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ToolChoiceAuto)

	if resp.FinishReason != FinishError {
		t.Fatalf("expected error finish, got %s", resp.FinishReason)
	}
	if resp.Content != "" || len(resp.ToolCalls) != 0 {
		t.Fatalf("expected empty error response, got %+v", resp)
	}
}

func TestOpenAIChatWithToolsGarbledResponseAbsorbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [`)
	}))
	defer srv.Close()

	client := NewOpenAI(openAITestConfig(srv.URL))
	resp := client.ChatWithTools(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ToolChoiceAuto)

	if resp.FinishReason != FinishError {
		t.Fatalf("expected error finish, got %s", resp.FinishReason)
	}
}

func sseChunks(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func TestOpenAIStreamDeltasAndSplitToolCallArguments(t *testing.T) {
	srv := httptest.NewServer(sseChunks(
		`{"choices":[{"delta":{"content":"Checking "}}]}`,
		`{"choices":[{"delta":{"content":"now."}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"search_objects","arguments":"{\"label\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"person\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	))
	defer srv.Close()

	client := NewOpenAI(openAITestConfig(srv.URL)).(*openAIClient)

	var deltas []string
	var final *NormalizedResponse
	for ev := range client.ChatWithToolsStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ToolChoiceAuto) {
		if ev.Response != nil {
			final = ev.Response
			continue
		}
		deltas = append(deltas, ev.Delta)
	}

	if strings.Join(deltas, "") != "Checking now." {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
	if final == nil {
		t.Fatalf("expected terminal response")
	}
	if final.FinishReason != FinishToolCalls {
		t.Fatalf("expected tool_calls, got %s", final.FinishReason)
	}
	if len(final.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(final.ToolCalls))
	}
	call := final.ToolCalls[0]
	if call.ID != "call_1" || call.Arguments["label"] != "person" {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestOpenAIStreamUnparsableArgumentsDegradeToRaw(t *testing.T) {
	srv := httptest.NewServer(sseChunks(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"search_objects","arguments":"not json"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	))
	defer srv.Close()

	client := NewOpenAI(openAITestConfig(srv.URL)).(*openAIClient)

	var final *NormalizedResponse
	for ev := range client.ChatWithToolsStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ToolChoiceAuto) {
		if ev.Response != nil {
			final = ev.Response
		}
	}

	if final == nil || len(final.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %+v", final)
	}
	if final.ToolCalls[0].Arguments["raw"] != "not json" {
		t.Fatalf("expected raw fallback, got %+v", final.ToolCalls[0].Arguments)
	}
}

func TestOpenAIStreamTransportErrorEmitsErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOpenAI(openAITestConfig(srv.URL)).(*openAIClient)

	var final *NormalizedResponse
	for ev := range client.ChatWithToolsStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ToolChoiceAuto) {
		if ev.Response != nil {
			final = ev.Response
		}
	}

	if final == nil || final.FinishReason != FinishError {
		t.Fatalf("expected error response, got %+v", final)
	}
}

func TestOpenAIContextSizeFromModelsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/models") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"data":[{"id":"gpt-test","max_model_len":32768}]}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewOpenAI(openAITestConfig(srv.URL)).(*openAIClient)
	if got := client.ContextSize(); got != 32768 {
		t.Fatalf("expected 32768, got %d", got)
	}
	// Second call served from cache.
	if got := client.ContextSize(); got != 32768 {
		t.Fatalf("expected cached 32768, got %d", got)
	}
}

func TestOpenAIContextSizeExplicitOptionWins(t *testing.T) {
	cfg := openAITestConfig("http://127.0.0.1:1")
	cfg.ProviderOptions = map[string]interface{}{"context_size": 2048}

	client := NewOpenAI(cfg).(*openAIClient)
	if got := client.ContextSize(); got != 2048 {
		t.Fatalf("expected 2048, got %d", got)
	}
}

func TestOpenAIContextSizeDefaultsByModelFamily(t *testing.T) {
	cfg := openAITestConfig("")
	cfg.BaseURL = ""

	client := NewOpenAI(cfg).(*openAIClient)
	if got := client.ContextSize(); got != 128000 {
		t.Fatalf("expected gpt default 128000, got %d", got)
	}
}
