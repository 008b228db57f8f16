package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const prompt = `[{"role": "user", "content": "Plan two days from Lisbon to Porto"}]`

var itineraryDoc = []byte(`{"tripInfo":{"from":"Lisbon","to":"Porto","duration":2},"itinerary":[{"day":1,"movements":[{"activities":["tram 28","pasteis"]}]},{"day":2,"movements":[{"activities":["ribeira"]}]}]}`)

func chatBody(stream, jsonMode bool) []byte {
	var extra []string
	if stream {
		extra = append(extra, `"stream": true`)
	}
	if jsonMode {
		extra = append(extra, `"response_format": {"type": "json_object"}`)
	}
	fields := append([]string{`"model": "openai/gpt-4o-mini"`, `"messages": ` + prompt}, extra...)
	return []byte("{" + strings.Join(fields, ", ") + "}")
}

func newTargeter(target string, stream bool) (vegeta.Targeter, error) {
	var (
		method = http.MethodPost
		path   = "/v1/chat/completions"
		body   []byte
	)

	switch target {
	case "chat":
		body = chatBody(stream, false)
	case "itinerary":
		// headers are only set on unary responses
		body = chatBody(false, true)
	case "models":
		method, path = http.MethodGet, "/v1/models"
	case "validate":
		path, body = "/v1/itineraries/validate", itineraryDoc
	default:
		return nil, fmt.Errorf("unknown target %q", target)
	}

	url := gatewayURL(path)
	return func(t *vegeta.Target) error {
		t.Method = method
		t.URL = url
		t.Body = body
		t.Header = http.Header{
			"Content-Type":  []string{"application/json"},
			"Authorization": []string{"Bearer " + benchKey},
		}
		return nil
	}, nil
}

func chaosWorkers(rate int) int {
	return min(max(rate/10, 5), 50)
}

// disconnectRandomly opens streaming chats and abandons each one after
// 1-200ms until done is closed.
func disconnectRandomly(url string, workers int, done <-chan struct{}) {
	fmt.Printf("chaos: %d workers abandoning streams after 1-200ms\n", workers)

	client := &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: workers}}
	body := string(chatBody(true, false))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				ctx, cancel := context.WithTimeout(context.Background(), time.Duration(rand.Intn(200)+1)*time.Millisecond)
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Authorization", "Bearer "+benchKey)
				if resp, err := client.Do(req); err == nil {
					_ = resp.Body.Close()
				}
				cancel()

				time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
			}
		}()
	}
	wg.Wait()
}
