package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/pkg/httpx"
	"github.com/yungbote/helpdesk-backend/internal/utils"
)

// CompletionClient generates assistant replies. Tool calls come back
// unexecuted; the conversation service decides what to do with them.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
	Enabled() bool
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

type CompletionRequest struct {
	Messages    []ChatMessage
	Tools       []ToolDef
	Temperature float64
}

type CompletionResult struct {
	Content   string
	ToolCalls []ToolCall
}

type openAIClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewOpenAIClient(log *logger.Logger) CompletionClient {
	apiKey := strings.TrimSpace(utils.GetEnv("OPENAI_API_KEY", "", log))
	baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log)
	model := utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", log)
	timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60, log)
	maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 4, log)

	c := &openAIClient{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}
	if !c.Enabled() {
		c.log.Warn("OPENAI_API_KEY missing, replies fall back to knowledge base text")
	}
	return c
}

func (c *openAIClient) Enabled() bool {
	return c.apiKey != ""
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	return e.StatusCode
}

// ---- chat completions wire types ----

type chatToolWire struct {
	Type     string  `json:"type"`
	Function ToolDef `json:"function"`
}

type chatMessageWire struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	ToolCalls []chatToolCallWire `json:"tool_calls,omitempty"`
}

type chatToolCallWire struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []chatMessageWire `json:"messages"`
	Tools       []chatToolWire    `json:"tools,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessageWire `json:"message"`
		FinishReason string          `json:"finish_reason"`
	} `json:"choices"`
}

func (c *openAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("openai client disabled")
	}
	wire := chatCompletionRequest{
		Model:       c.model,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		wire.Messages = append(wire.Messages, chatMessageWire{Role: m.Role, Content: m.Content})
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, chatToolWire{Type: "function", Function: t})
	}

	var resp chatCompletionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", wire, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices")
	}
	choice := resp.Choices[0].Message
	result := &CompletionResult{Content: strings.TrimSpace(choice.Content)}
	for _, tc := range choice.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result, nil
}

func (c *openAIClient) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *openAIClient) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
