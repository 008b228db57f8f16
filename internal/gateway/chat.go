package gateway

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/atlas-api/internal/store/model"
	"github.com/nulzo/atlas-api/pkg/api"
	"go.uber.org/zap"
)

// prepare fills the model from settings and prepends the configured system
// prompt unless the caller sent one. The caller's request is not modified.
func (s *service) prepare(ctx context.Context, req *api.ChatRequest) *api.ChatRequest {
	cur := s.currentSettings(ctx)

	out := *req
	if out.Model == "" {
		out.Model = cur.DefaultModel
	}

	hasSystem := slices.ContainsFunc(out.Messages, func(m api.ChatMessage) bool {
		return m.Role == string(api.System)
	})
	if cur.SystemPrompt != "" && !hasSystem {
		msgs := make([]api.ChatMessage, 0, len(out.Messages)+1)
		msgs = append(msgs, api.ChatMessage{Role: string(api.System), Content: api.Content{Text: cur.SystemPrompt}})
		out.Messages = append(msgs, out.Messages...)
	}
	return &out
}

func (s *service) newLog(ctx context.Context, modelID string, streamed bool) *model.RequestLog {
	client := ClientFrom(ctx)
	return &model.RequestLog{
		ID:         uuid.NewString(),
		RequestID:  client.RequestID,
		APIKeyID:   client.KeyID,
		ModelID:    modelID,
		ProviderID: s.provider.Name(),
		IsStreamed: streamed,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
		StatusCode: http.StatusOK,
		CreatedAt:  time.Now().UTC(),
	}
}

func statusOf(err error) int {
	var problem *api.Problem
	if errors.As(err, &problem) {
		return problem.Status
	}
	return http.StatusBadGateway
}

func (s *service) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	upstreamReq := s.prepare(ctx, req)
	log := s.newLog(ctx, upstreamReq.Model, false)

	start := time.Now()
	resp, err := s.provider.Chat(ctx, upstreamReq)
	log.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		log.StatusCode = statusOf(err)
		log.ErrorMessage = err.Error()
		s.ingestor.Log(log)

		var problem *api.Problem
		if errors.As(err, &problem) {
			return nil, problem
		}
		return nil, api.ProviderError("Failed to process chat request", err)
	}

	log.UpstreamID = resp.ID
	if len(resp.Choices) > 0 {
		log.FinishReason = resp.Choices[0].FinishReason
	}
	if resp.Usage != nil {
		log.InputTokens = resp.Usage.PromptTokens
		log.OutputTokens = resp.Usage.CompletionTokens
	}
	s.ingestor.Log(log)

	return resp, nil
}

// StreamChat relays upstream chunks and records one request log when the
// stream ends.
func (s *service) StreamChat(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	upstreamReq := s.prepare(ctx, req)
	upstreamReq.Stream = true
	log := s.newLog(ctx, upstreamReq.Model, true)

	start := time.Now()
	upstream, err := s.provider.Stream(ctx, upstreamReq)
	if err != nil {
		log.StatusCode = statusOf(err)
		log.ErrorMessage = err.Error()
		log.LatencyMS = time.Since(start).Milliseconds()
		s.ingestor.Log(log)

		s.logger.Warn("stream setup failed", zap.String("model", upstreamReq.Model), zap.Error(err))
		return nil, err
	}

	out := make(chan api.StreamResult)

	go func() {
		defer close(out)

		for result := range upstream {
			if result.Err != nil {
				log.StatusCode = statusOf(result.Err)
				log.ErrorMessage = result.Err.Error()
			}

			if r := result.Response; r != nil {
				if r.ID != "" {
					log.UpstreamID = r.ID
				}
				if r.Usage != nil {
					log.InputTokens = r.Usage.PromptTokens
					log.OutputTokens = r.Usage.CompletionTokens
				}
				if len(r.Choices) > 0 && r.Choices[0].FinishReason != "" {
					log.FinishReason = r.Choices[0].FinishReason
				}
			}

			select {
			case out <- result:
			case <-ctx.Done():
				log.ErrorMessage = ctx.Err().Error()
				log.StatusCode = 499
				// let the upstream goroutine observe cancellation and exit
				for range upstream {
				}
				s.finish(log, start)
				return
			}
		}

		s.finish(log, start)
	}()

	return out, nil
}

func (s *service) finish(log *model.RequestLog, start time.Time) {
	log.LatencyMS = time.Since(start).Milliseconds()
	s.ingestor.Log(log)
}
