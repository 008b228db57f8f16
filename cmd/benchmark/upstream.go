package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var (
	catalogBody = []byte(`{"data":[
		{"id":"openai/gpt-4o-mini","name":"GPT-4o mini","pricing":{"prompt":"0.00000015","completion":"0.0000006"},"context_length":128000},
		{"id":"meta-llama/llama-3.1-8b-instruct:free","pricing":{"prompt":"0","completion":"0"},"context_length":131072},
		{"id":"anthropic/claude-3-opus","pricing":{"prompt":"0.000015","completion":"0.000075"}}
	]}`)

	streamDeltas = []string{"Day 1:", " tram 28.", " Day 2:", " Ribeira."}
)

type completion struct {
	Stream         bool `json:"stream"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

// serveUpstream fakes the OpenRouter endpoints the gateway calls.
func serveUpstream(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(catalogBody)
	})
	mux.HandleFunc("POST /api/v1/chat/completions", handleCompletion)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

func handleCompletion(w http.ResponseWriter, r *http.Request) {
	var req completion
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Stream {
		streamCompletion(w)
		return
	}

	content := "Day 1: tram 28. Day 2: Ribeira."
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		content = string(itineraryDoc)
	}

	time.Sleep(10 * time.Millisecond)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "bench-1",
		"object": "chat.completion",
		"model":  "openai/gpt-4o-mini",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 40, "total_tokens": 52},
	})
}

func streamCompletion(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)

	for i, delta := range streamDeltas {
		time.Sleep(50 * time.Millisecond)
		chunk := map[string]any{"choices": []any{map[string]any{"index": 0, "delta": map[string]string{"content": delta}}}}
		if i == len(streamDeltas)-1 {
			chunk["choices"] = []any{map[string]any{"index": 0, "delta": map[string]string{"content": delta}, "finish_reason": "stop"}}
		}
		data, _ := json.Marshal(chunk)
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
