package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIConfig configures an OpenAI or OpenAI-compatible (Groq, Ollama,
// vLLM) endpoint.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string // empty for the official API
	Model           string
	VisionModel     string
	TranscribeModel string
	Timeout         time.Duration
	MaxRetries      int
}

// OpenAIProvider implements Provider with the official openai-go client.
type OpenAIProvider struct {
	client          openai.Client
	model           string
	visionModel     string
	transcribeModel string
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "whisper-1"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIProvider{
		client:          openai.NewClient(opts...),
		model:           cfg.Model,
		visionModel:     cfg.VisionModel,
		transcribeModel: cfg.TranscribeModel,
	}
}

func (p *OpenAIProvider) Name() string { return "OpenAI" }

func (p *OpenAIProvider) Ping(ctx context.Context) error {
	_, err := p.Generate(ctx, Request{System: "Respond with OK.", Prompt: "ping", Options: Options{MaxTokens: 10}})
	return err
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := p.model
	if req.Vision || req.ImageURL != "" {
		model = p.visionModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: buildMessages(req),
	}
	if req.Options.Temperature > 0 {
		params.Temperature = openai.Float(req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Options.MaxTokens))
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: openai.String(req.Schema.Description),
					Schema:      req.Schema.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	start := time.Now()
	chat, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.wrapError("chat completion", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("llm/openai: no choices in response")
	}

	return &Response{
		Content:    chat.Choices[0].Message.Content,
		Model:      chat.Model,
		TokensUsed: int(chat.Usage.TotalTokens),
		Duration:   time.Since(start),
		StopReason: string(chat.Choices[0].FinishReason),
	}, nil
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, filename, contentType string, audio io.Reader) (string, error) {
	tr, err := p.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, contentType),
		Model: openai.AudioModel(p.transcribeModel),
	})
	if err != nil {
		return "", p.wrapError("transcription", err)
	}
	return tr.Text, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.History {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	if req.ImageURL != "" {
		msgs = append(msgs, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: req.ImageURL}),
		}))
	} else {
		msgs = append(msgs, openai.UserMessage(req.Prompt))
	}
	return msgs
}

// wrapError converts SDK errors into *APIError so callers need not import
// the SDK.
func (p *OpenAIProvider) wrapError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   "OpenAI",
			StatusCode: apiErr.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
		}
	}
	return fmt.Errorf("llm/openai: %s: %w", op, err)
}
