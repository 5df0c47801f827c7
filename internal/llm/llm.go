// Package llm обращается к OpenAI-совместимому API за ответами модели
// и распознаванием голосовых сообщений.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sergeycommit/ai-tg-bot/internal/config"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

var (
	// ErrNotConfigured модель или ключ не заданы.
	ErrNotConfigured = errors.New("llm is not configured")
	// ErrEmptyResponse модель не вернула ни одного варианта ответа.
	ErrEmptyResponse = errors.New("empty llm response")
)

// Client клиент языковой модели и распознавания речи.
type Client struct {
	chat         *openai.Client
	stt          *openai.Client
	model        string
	sttModel     string
	systemPrompt string
	temperature  float32
	maxTokens    int
	timeout      time.Duration
	log          *slog.Logger
}

// New создаёт Client. Без STT_API_KEY распознавание идёт через ключ модели.
func New(cfg config.LLM, log *slog.Logger) *Client {
	chatCfg := openai.DefaultConfig(cfg.APIKey)
	chatCfg.BaseURL = cfg.BaseURL

	sttKey := cfg.STTAPIKey
	if sttKey == "" {
		sttKey = cfg.APIKey
	}
	sttCfg := openai.DefaultConfig(sttKey)
	sttCfg.BaseURL = cfg.STTBaseURL

	return &Client{
		chat:         openai.NewClientWithConfig(chatCfg),
		stt:          openai.NewClientWithConfig(sttCfg),
		model:        cfg.Model,
		sttModel:     cfg.STTModel,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		timeout:      cfg.Timeout,
		log:          log,
	}
}

// Complete возвращает ответ модели на prompt с учётом истории диалога.
func (c *Client) Complete(ctx context.Context, history []models.Message, prompt string) (string, error) {
	const op = "llm.Complete"

	if c.model == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.systemPrompt,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.log.Error("chat completion failed", sl.Op(op), sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}

	c.log.Debug("chat completion",
		slog.String("model", resp.Model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

// Transcribe распознаёт речь из аудио. filename нужен API для определения формата.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	const op = "llm.Transcribe"

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.stt.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.sttModel,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		c.log.Error("transcription failed", sl.Op(op), sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return text, nil
}
