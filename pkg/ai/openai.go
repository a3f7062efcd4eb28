package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "onquest",
		Subsystem: "ai",
		Name:      "reply_duration_seconds",
		Help:      "Duration of AI assistant requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onquest",
		Subsystem: "ai",
		Name:      "reply_failures_total",
		Help:      "Number of AI assistant failures",
	}, []string{"model"})
)

const maxHistoryTurns = 20

// OpenAIConfig defines configuration options for the OpenAI assistant.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAssistant implements Assistant against the OpenAI chat completion API.
type OpenAIAssistant struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAssistant builds a new assistant using the provided configuration.
func NewOpenAIAssistant(cfg OpenAIConfig) (*OpenAIAssistant, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/noah-isme/onquest-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIAssistant{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Reply asks the model for the next assistant message in the conversation.
func (a *OpenAIAssistant) Reply(parent context.Context, input AssistantInput) (AssistantReply, error) {
	ctx, span := a.tracer.Start(parent, "openai.reply", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: assistantSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(a.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AssistantReply{}, fmt.Errorf("openai reply: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AssistantReply{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	reply, err := parseAssistantResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AssistantReply{}, err
	}

	a.logger.Debug().Str("model", a.cfg.Model).Dur("duration", duration).Int("actions", len(reply.Actions)).Msg("assistant replied")
	return reply, nil
}

func assistantSystemPrompt() string {
	return "You are Mr. Pebbles, a friendly travel companion inside a group trip chat. Respond with a JSON object containing " +
		"content (your reply, under 120 words) and an optional actions array of short follow-up suggestions such as " +
		"\"Add to itinerary\" or \"Share location\"."
}

func buildUserPrompt(input AssistantInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Chat\n")
	builder.WriteString(input.ChatName)
	if input.Destination != "" {
		builder.WriteString("\n\n## Destination\n")
		builder.WriteString(input.Destination)
	}

	history := input.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		builder.WriteString("\n\n## Recent messages\n")
		for _, turn := range history {
			builder.WriteString(turn.Author)
			builder.WriteString(": ")
			builder.WriteString(turn.Content)
			builder.WriteString("\n")
		}
	}

	builder.WriteString("\n\n## Request\n")
	builder.WriteString(input.Prompt)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseAssistantResponse(content string) (AssistantReply, error) {
	var reply AssistantReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return AssistantReply{}, fmt.Errorf("parse assistant json: %w", err)
	}

	reply.Content = strings.TrimSpace(reply.Content)
	if reply.Content == "" {
		return AssistantReply{}, fmt.Errorf("assistant returned empty content")
	}

	actions := make([]string, 0, len(reply.Actions))
	for _, action := range reply.Actions {
		if action = strings.TrimSpace(action); action != "" {
			actions = append(actions, action)
		}
	}
	reply.Actions = actions

	return reply, nil
}
