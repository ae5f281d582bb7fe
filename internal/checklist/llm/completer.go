// Package llm is the chat-completion transport used by the checklist
// generator. Any OpenAI-compatible endpoint works (OpenAI, DeepSeek, local
// gateways).
package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	apperrors "visa-checklist/internal/common/errors"
	"visa-checklist/internal/common/logger"

	"github.com/sashabaranov/go-openai"
)

// Completer returns the raw model text for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	// JSONMode asks the endpoint for a JSON object response. Not every
	// compatible endpoint supports it.
	JSONMode bool
}

type OpenAICompleter struct {
	client *openai.Client
	cfg    Config
	logger logger.Logger
}

// NewOpenAICompleter builds a completer. httpClient may be nil, in which case
// the SDK default client is used.
func NewOpenAICompleter(cfg Config, httpClient openai.HTTPDoer, log logger.Logger) *OpenAICompleter {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: logger.Component(log, "llm").With(map[string]interface{}{"model": cfg.Model}),
	}
}

// Complete sends one chat completion. Errors are StandardErrors with code
// LLM_TIMEOUT, LLM_RESPONSE_INVALID (empty answer) or LLM_COMPLETION_FAILED.
func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if c.cfg.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		classified := classify(ctx, err)
		c.logger.Warn("chat completion failed", map[string]interface{}{
			"error":      err.Error(),
			"errorCode":  string(classified.Code),
			"durationMs": time.Since(start).Milliseconds(),
		})
		return "", classified
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", apperrors.NewLLMResponseInvalidError("empty completion")
	}

	c.logger.Debug("chat completion received", map[string]interface{}{
		"finishReason":     string(resp.Choices[0].FinishReason),
		"promptTokens":     resp.Usage.PromptTokens,
		"completionTokens": resp.Usage.CompletionTokens,
		"durationMs":       time.Since(start).Milliseconds(),
	})
	return resp.Choices[0].Message.Content, nil
}

func classify(ctx context.Context, err error) *apperrors.StandardError {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewLLMTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewLLMTimeoutError(err)
	}
	stdErr := apperrors.NewLLMCompletionFailedError(err)
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		stdErr.WithMetadata("httpStatus", apiErr.HTTPStatusCode)
	}
	return stdErr
}

// IsTimeout reports whether err is an LLM timeout.
func IsTimeout(err error) bool {
	return hasCode(err, apperrors.ErrCodeLLMTimeout)
}

// IsInvalidResponse reports whether the model answered with nothing usable.
func IsInvalidResponse(err error) bool {
	return hasCode(err, apperrors.ErrCodeLLMResponseInvalid)
}

func hasCode(err error, code apperrors.ErrorCode) bool {
	stdErr, ok := apperrors.AsStandardError(err)
	return ok && stdErr.Code == code
}
