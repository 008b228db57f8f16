package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/gateway"
	"github.com/nulzo/atlas-api/internal/server/validator"
	"github.com/nulzo/atlas-api/pkg/api"
)

// Headers describing a json_object reply checked as an itinerary.
const (
	HeaderItineraryValid  = "X-Itinerary-Valid"
	HeaderItineraryErrors = "X-Itinerary-Errors"
)

// heartbeat keeps idle SSE connections open through proxies.
var heartbeat = 15 * time.Second

type ChatHandler struct {
	service gateway.Service
}

func NewChatHandler(service gateway.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// CreateCompletion proxies an OpenAI-style chat completion. Replies to
// json_object requests are checked as itinerary documents and the verdict is
// reported in headers; the body is passed through untouched.
//
// POST /v1/chat/completions
func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	if req.Stream {
		h.stream(c, &req)
		return
	}

	resp, err := h.service.Chat(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if req.WantsJSON() && len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		report := h.service.ValidateItinerary([]byte(resp.Choices[0].Message.Content.String()))
		c.Header(HeaderItineraryValid, strconv.FormatBool(report.Valid))
		c.Header(HeaderItineraryErrors, strconv.Itoa(len(report.Errors)))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) stream(c *gin.Context, req *api.ChatRequest) {
	results, err := h.service.StreamChat(c.Request.Context(), req)
	if err != nil {
		// nothing written yet, the error handler still owns the response
		if _, ok := api.AsProblem(err); !ok {
			err = api.ProviderError("Failed to open stream", err)
		}
		_ = c.Error(err)
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ticker.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil

		case res, ok := <-results:
			if !ok {
				_, _ = io.WriteString(w, "data: [DONE]\n\n")
				return false
			}
			if res.Err != nil {
				_ = writeEvent(w, streamError(res.Err))
				return false
			}
			if res.Response == nil {
				return true
			}
			return writeEvent(w, res.Response) == nil
		}
	})
}

// streamError is the final chunk sent when the upstream fails mid-stream.
func streamError(err error) *api.ChatResponse {
	body := &api.ErrorResponse{Message: err.Error(), Code: http.StatusBadGateway}
	if problem, ok := api.AsProblem(err); ok {
		body.Message = problem.Detail
		body.Code = problem.Status
	}
	return &api.ChatResponse{
		Object:  "chat.completion.chunk",
		Choices: []api.Choice{{FinishReason: "error"}},
		Error:   body,
	}
}

func writeEvent(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
