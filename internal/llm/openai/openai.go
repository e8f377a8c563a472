package openai

import (
	"context"
	"errors"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/llm"
)

// OpenRouterBaseURL serves the OpenAI chat completions API for many hosted models.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

type Config struct {
	Name        string // defaults to "openai"
	Model       string
	APIKey      string
	BaseURL     string
	System      string
	MaxTokens   int
	Temperature float64
	Headers     map[string]string
}

// Backend talks to any OpenAI-compatible chat completions endpoint.
type Backend struct {
	client oai.Client
	cfg    Config
}

var _ interfaces.Completer = (*Backend)(nil)

func New(cfg Config) *Backend {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// the gateway owns fallback; one attempt per backend
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &Backend{
		client: oai.NewClient(opts...),
		cfg:    cfg,
	}
}

func (b *Backend) Name() string {
	return b.cfg.Name
}

func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, 2)
	if b.cfg.System != "" {
		messages = append(messages, oai.SystemMessage(b.cfg.System))
	}
	messages = append(messages, oai.UserMessage(prompt))

	params := oai.ChatCompletionNewParams{
		Model:       oai.ChatModel(b.cfg.Model),
		Messages:    messages,
		Temperature: oai.Float(b.cfg.Temperature),
	}
	if b.cfg.MaxTokens > 0 {
		params.MaxTokens = oai.Int(int64(b.cfg.MaxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return "", llm.Classify(b.cfg.Name, apiErr.StatusCode, err)
		}
		return "", llm.Classify(b.cfg.Name, 0, err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.NewBackendError(b.cfg.Name, llm.KindMalformed, errors.New("no choices in response"))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.NewBackendError(b.cfg.Name, llm.KindMalformed, errors.New("empty message content"))
	}
	return content, nil
}
