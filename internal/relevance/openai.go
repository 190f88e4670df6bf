package relevance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kovalyov-valentin/crypto-news-scraper/internal/retry"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = "gpt-4o-mini"
	// Длинные статьи режем: для оценки релевантности хватает начала
	maxPromptBodyRunes = 2000
)

const defaultPrompt = `You filter crypto news for a monitoring feed. Decide whether the article is relevant to: %s.

Respond EXACTLY in this format:
RELEVANT: yes|no
SCORE: <number between 0 and 1>

Title: %s
Body: %s`

// Классификатор на OpenAI-совместимом chat completions API
type OpenAIClassifier struct {
	// sdk для openai
	client *openai.Client
	model  string
	// О чем должны быть статьи, подставляется в промпт
	topic   string
	timeout time.Duration
	policy  retry.Policy
	log     zerolog.Logger
}

type OpenAIOptions struct {
	APIKey string
	// Пусто - api.openai.com. Можно указать любой совместимый endpoint
	BaseURL string
	Model   string
	Topic   string
	Timeout time.Duration
	Policy  retry.Policy
}

// Возвращает nil, если ключ не задан: AI путь выключен
func NewOpenAIClassifier(opts OpenAIOptions, log zerolog.Logger) *OpenAIClassifier {
	log.Info().Bool("enabled", opts.APIKey != "").Msg("openai relevance classifier")

	if opts.APIKey == "" {
		return nil
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	topic := opts.Topic
	if topic == "" {
		topic = "cryptocurrency markets, regulation and security incidents"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &OpenAIClassifier{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		topic:   topic,
		timeout: timeout,
		policy:  opts.Policy,
		log:     log.With().Str("component", "openai").Logger(),
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, title, body string) (Judgment, error) {
	// Составляем запрос к openai
	request := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(defaultPrompt, c.topic, title, truncateRunes(body, maxPromptBodyRunes)),
			},
		},
		MaxTokens:   16,
		Temperature: 0,
	}

	var content string
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, request)
		if err != nil {
			return classifyAPIError(err)
		}
		if len(resp.Choices) == 0 {
			return retry.Stop(errors.New("empty choices"))
		}

		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return Judgment{}, &ServiceError{Op: "chat completion", Err: err}
	}

	judgment, err := parseJudgment(content)
	if err != nil {
		return Judgment{}, &ServiceError{Op: "parse reply", Err: err}
	}

	return judgment, nil
}

// Ошибки авторизации и неверные запросы не повторяем
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return retry.Throttle(err)
		case apiErr.HTTPStatusCode >= 500:
			return err
		default:
			return retry.Stop(err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return retry.Throttle(err)
		}
		if reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500 {
			return retry.Stop(err)
		}
	}

	return err
}

// Разбирает ответ вида
//
//	RELEVANT: yes
//	SCORE: 0.8
func parseJudgment(text string) (Judgment, error) {
	var (
		j           Judgment
		hasRelevant bool
		hasScore    bool
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "RELEVANT:"):
			value := strings.ToLower(strings.TrimSpace(line[len("RELEVANT:"):]))
			switch value {
			case "yes", "true", "是":
				j.Relevant = true
			case "no", "false", "否":
				j.Relevant = false
			default:
				return Judgment{}, fmt.Errorf("unexpected relevance value %q", value)
			}
			hasRelevant = true
		case strings.HasPrefix(upper, "SCORE:"):
			score, err := strconv.ParseFloat(strings.TrimSpace(line[len("SCORE:"):]), 64)
			if err != nil {
				return Judgment{}, fmt.Errorf("unexpected score: %w", err)
			}
			j.Score = clamp(score)
			hasScore = true
		}
	}

	if !hasRelevant {
		return Judgment{}, fmt.Errorf("no RELEVANT line in reply %q", text)
	}

	// Модель не прислала оценку: уверенность определяется только ответом
	if !hasScore && j.Relevant {
		j.Score = 1
	}

	return j, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
