package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/aiox-platform/quill/internal/config"
	"github.com/aiox-platform/quill/internal/metrics"
	"github.com/aiox-platform/quill/internal/session"
)

// OpenAI calls any OpenAI-compatible chat completions endpoint. Gemini is
// reached through its OpenAI compatibility base URL.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
	prompts *Prompts
}

// NewOpenAI builds a client from cfg. Extra options are appended after the
// configured ones.
func NewOpenAI(cfg config.GenerationConfig, prompts *Prompts, extra ...option.RequestOption) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation api key missing")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("generation model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		prompts: prompts,
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, text string, kind session.TaskKind, lang string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	system, user := o.prompts.Build(text, kind, lang)

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(string(kind), "error").Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.GenerationsTotal.WithLabelValues(string(kind), "empty").Inc()
		return "", ErrEmptyResponse
	}

	metrics.GenerationsTotal.WithLabelValues(string(kind), "ok").Inc()
	slog.Debug("generation completed", "task", kind, "model", o.model, "duration", time.Since(start))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
