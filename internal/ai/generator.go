// Package ai wraps the OpenRouter chat-completions API as the bot's answer
// generator for questions the knowledge base cannot match.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"

	"prop_support_bot/internal/config"
	"prop_support_bot/internal/logging"
)

// DefaultBaseURL targets the OpenRouter OpenAI-compatible endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// InsufficientInfoSentinel is the phrase the model is instructed to emit when
// it cannot answer from the support data. Callers string-match successful
// output against it; it is not an error.
const InsufficientInfoSentinel = "متاسفانه دراین رابطه اطلاعی ندارم"

const systemPrompt = `You are a customer support ai for prop trading firms.
Answer the user's question only based on the support data you were given.
If the answer is not in the data, say "` + InsufficientInfoSentinel + `".
Be kind and use appropriate (not excessive) emojis. Don't use markdown format
in your answer, just raw text and emojis, and don't say hello if the user did
not say hello to you.`

type chatCompleter interface {
	New(ctx context.Context, body openaigo.ChatCompletionNewParams, opts ...option.RequestOption) (*openaigo.ChatCompletion, error)
}

// Generator produces free-text answers via a chat model. Calls may take tens
// of seconds; the configured timeout bounds each one.
type Generator struct {
	completions chatCompleter
	model       string
	timeout     time.Duration
	logger      *logrus.Entry
}

// NewGenerator builds a Generator from the resolved configuration.
func NewGenerator(cfg config.Config, logger *logrus.Entry) (*Generator, error) {
	if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
		return nil, errors.New("openrouter api key is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := openaigo.NewClient(
		option.WithBaseURL(DefaultBaseURL),
		option.WithAPIKey(strings.TrimSpace(cfg.OpenRouterAPIKey)),
	)

	timeout := cfg.GenerateTimeout
	if timeout <= 0 {
		timeout = config.DefaultGenerateTimeout
	}

	model := strings.TrimSpace(cfg.OpenRouterModel)
	if model == "" {
		model = config.DefaultOpenRouterModel
	}

	return &Generator{
		completions: &client.Chat.Completions,
		model:       model,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// Generate asks the model to answer one question. Any upstream fault,
// including timeout expiry, surfaces as an error; the caller substitutes a
// fixed fallback message.
func (g *Generator) Generate(ctx context.Context, question string) (string, error) {
	if g == nil || g.completions == nil {
		return "", errors.New("generator is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	completion, err := g.completions.New(callCtx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(g.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(systemPrompt),
			openaigo.UserMessage(question),
		},
	})
	if err != nil {
		g.logger.WithFields(logging.Fields{
			"event":       "generate_error",
			"duration_ms": time.Since(started).Milliseconds(),
		}).WithError(err).Warn("answer generation failed")
		return "", fmt.Errorf("generate answer: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("generate answer: completion has no choices")
	}

	answer := completion.Choices[0].Message.Content

	g.logger.WithFields(logging.Fields{
		"event":       "generate_ok",
		"duration_ms": time.Since(started).Milliseconds(),
	}).Debug("answer generated")

	return answer, nil
}
