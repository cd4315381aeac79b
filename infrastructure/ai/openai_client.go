package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// Config holds the inference client settings
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// ServiceError reports that the inference service could not answer
type ServiceError struct {
	StatusCode int
	Code       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference service unavailable (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("inference service unavailable: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// RateLimited reports a rate-limit or quota failure
func (e *ServiceError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		strings.Contains(strings.ToLower(e.Code), "quota") ||
		strings.Contains(strings.ToLower(e.Code), "rate_limit")
}

// OpenAIClient is the language inference service over the OpenAI chat API
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewOpenAIClient - creates the inference client. Extra request options are
// appended after the configured ones.
func NewOpenAIClient(cfg Config, logger *logrus.Logger, extra ...option.RequestOption) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Rate limits downgrade to deterministic strategies instead of waiting.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	client := openai.NewClient(opts...)
	return &OpenAIClient{
		client:  &client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Complete - sends one structured request and returns the raw answer text
func (c *OpenAIClient) Complete(ctx context.Context, req entities.InferenceRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.WithFields(logrus.Fields{
		"model":  c.model,
		"markup": len(req.Markup),
	}).Debug("Sending inference request")

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.Role),
			openai.UserMessage(BuildPrompt(req)),
		},
		Temperature: openai.Opt[float64](0.1),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ServiceError{Err: errors.New("no choices in response")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt renders the user message for a request
func BuildPrompt(req entities.InferenceRequest) string {
	var b strings.Builder
	b.WriteString(req.Task)
	b.WriteString("\n\nReturn ONLY a JSON object with this shape, no markdown, no code blocks:\n")
	b.WriteString(req.Schema)
	if req.URL != "" {
		b.WriteString("\n\nPage URL: ")
		b.WriteString(req.URL)
	}
	fmt.Fprintf(&b, "\n\nHTML content (first %d characters):\n", len(req.Markup))
	b.WriteString(req.Markup)
	return b.String()
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ServiceError{StatusCode: apiErr.StatusCode, Code: apiErr.Code, Err: err}
	}
	return &ServiceError{Err: err}
}

var _ interfaces.Inference = (*OpenAIClient)(nil)
