package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

var (
	ErrUnavailable       = errors.New("classification unavailable")
	ErrMalformedResponse = errors.New("malformed classifier response")
)

// Config controls the completion endpoint used for fallback
// classification.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Classifier asks an OpenAI-compatible completion endpoint to classify an
// utterance. Every failure mode fails open to dictation: typing the raw
// words is always safer than dropping input or executing the wrong thing.
type Classifier struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

func New(cfg Config) *Classifier {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	// A retried completion is useless by the time it lands; the resolver
	// falls back to dictation instead.
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Classifier{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		log:    slog.Default().With("component", "classifier"),
	}
}

// Classify sends one low-temperature, JSON-forced completion request. The
// returned envelope is always usable; the error is informational only.
func (c *Classifier) Classify(ctx context.Context, text string, meta ports.ClassifyContext) (domain.ActionEnvelope, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(BuildSystemPrompt(meta)),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0.2),
		MaxTokens:   openai.Int(1024),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		c.log.Warn("falling back to dictation", "err", fmt.Errorf("%w: %v", ErrUnavailable, err))
		return domain.DictationFallback(text), nil
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.log.Warn("falling back to dictation", "err", fmt.Errorf("%w: empty completion", ErrMalformedResponse))
		return domain.DictationFallback(text), nil
	}

	env, err := parseEnvelope(resp.Choices[0].Message.Content, text)
	if err != nil {
		c.log.Warn("falling back to dictation", "err", err)
		return domain.DictationFallback(text), nil
	}

	c.log.Debug("classified", "action", env.ActionType, "confirm", env.RequiresConfirmation)
	return env, nil
}
