// Package recommend asks a language model for a short list of cars that fit
// the collected answers.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// maxReplyRunes keeps the answer well inside a single chat message.
const maxReplyRunes = 3000

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("recommendation reply is empty")

// Request carries the answers the recommendation is based on.
type Request struct {
	Brand  string
	Model  string
	City   string
	YearTo int
	Budget int64
}

// Recommender produces a human-readable recommendation.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (string, error)
}

// Config configures the OpenAI-backed recommender.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAI implements Recommender with the chat completions API.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates a recommender from cfg.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

const systemPrompt = "Ты консультант по подбору автомобилей в России. " +
	"Отвечай по-русски, коротко, списком из трёх-пяти вариантов с одной строкой пояснения к каждому. " +
	"Не выдумывай цены конкретных объявлений."

// BuildPrompt renders the user message for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Подбери автомобили под запрос клиента.\n")
	fmt.Fprintf(&b, "Марка: %s\n", orDash(req.Brand))
	fmt.Fprintf(&b, "Модель: %s\n", orDash(req.Model))
	fmt.Fprintf(&b, "Город: %s\n", orDash(req.City))
	if req.YearTo > 0 {
		fmt.Fprintf(&b, "Год выпуска не позже: %d\n", req.YearTo)
	}
	if req.Budget > 0 {
		fmt.Fprintf(&b, "Бюджет: до %s ₽\n", humanize.Comma(req.Budget))
	}
	return b.String()
}

// Recommend asks the model for suggestions.
func (o *OpenAI) Recommend(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(req)),
		},
		MaxCompletionTokens: openai.Int(600),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai recommend: status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("openai recommend: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	slog.DebugContext(ctx, "recommendation completed",
		"model", o.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyReply
	}
	return truncate(text, maxReplyRunes), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
