package claude

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/llm"
)

const defaultMaxTokens = 1024

type Config struct {
	Name        string // defaults to "claude"
	Model       string
	APIKey      string
	BaseURL     string
	System      string
	MaxTokens   int
	Temperature float64
}

// Backend calls the Anthropic Messages API.
type Backend struct {
	client anthropic.Client
	cfg    Config
}

var _ interfaces.Completer = (*Backend)(nil)

func New(cfg Config) *Backend {
	if cfg.Name == "" {
		cfg.Name = "claude"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Backend{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

func (b *Backend) Name() string {
	return b.cfg.Name
}

func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.cfg.Model),
		MaxTokens: int64(b.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(b.cfg.Temperature),
	}
	if b.cfg.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: b.cfg.System}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", llm.Classify(b.cfg.Name, apiErr.StatusCode, err)
		}
		return "", llm.Classify(b.cfg.Name, 0, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", llm.NewBackendError(b.cfg.Name, llm.KindMalformed, errors.New("no text content in response"))
	}
	return text, nil
}
