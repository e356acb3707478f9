package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/gin-gonic/gin"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	"github.com/vibecodingwiki/core/internal/config"
	"github.com/vibecodingwiki/core/internal/pkg/markdown"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("no AI provider configured")
	ErrEmptyResponse = errors.New("empty response from AI")
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"

	draftMaxTokens = 4096
)

const draftSystemPrompt = `You are a wiki editor writing neutral, factual reference articles
about AI-assisted software development tools and practices. Respond with a single JSON object:
{"title": string, "summary": string (1-2 sentences), "content": string (markdown with ## section
headings), "tags": string[], "related_topics": string[] (wiki page titles)}.
Do not wrap the JSON in code fences.`

// Draft is a generated page proposal.
type Draft struct {
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	Content       string   `json:"content"`
	Tags          []string `json:"tags"`
	RelatedTopics []string `json:"related_topics"`
}

type Service struct {
	cfg config.AIConfig
	log *zap.Logger
}

func NewService(cfg config.AIConfig, log *zap.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// Enabled reports whether any provider key is configured.
func (s *Service) Enabled() bool {
	return s.cfg.OpenAIKey != "" || s.cfg.AnthropicKey != ""
}

// DraftPage asks the configured model for a page draft on a topic. When
// sourceText is non-empty the draft is grounded on it instead of the model's
// own knowledge.
func (s *Service) DraftPage(ctx context.Context, topic, sourceText string) (*Draft, error) {
	prompt := fmt.Sprintf("Write a wiki article about %q.", topic)
	if strings.TrimSpace(sourceText) != "" {
		prompt += "\n\nBase the article strictly on this source material:\n\n" + sourceText
	}

	raw, err := s.complete(ctx, draftSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var draft Draft
	if err := unmarshalModelJSON(raw, &draft); err != nil {
		return nil, err
	}
	if strings.TrimSpace(draft.Title) == "" || strings.TrimSpace(draft.Content) == "" {
		return nil, fmt.Errorf("draft is missing title or content")
	}
	return &draft, nil
}

func (s *Service) complete(ctx context.Context, system, prompt string) (string, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.Provider))
	if provider == "anthropic" || (provider == "" && s.cfg.OpenAIKey == "" && s.cfg.AnthropicKey != "") {
		return s.completeAnthropic(ctx, system, prompt)
	}
	return s.completeOpenAI(ctx, system, prompt)
}

func (s *Service) completeOpenAI(ctx context.Context, system, prompt string) (string, error) {
	if s.cfg.OpenAIKey == "" {
		return "", ErrNotConfigured
	}
	model := strings.TrimSpace(s.cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}

	client := openaiclient.NewClient(
		openaioption.WithAPIKey(s.cfg.OpenAIKey),
		openaioption.WithMaxRetries(1),
	)
	completion, err := client.Chat.Completions.New(ctx, openaiclient.ChatCompletionNewParams{
		Model: openaiclient.ChatModel(model),
		Messages: []openaiclient.ChatCompletionMessageParamUnion{
			openaiclient.SystemMessage(system),
			openaiclient.UserMessage(prompt),
		},
		ResponseFormat: openaiclient.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openaiclient.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return completion.Choices[0].Message.Content, nil
}

func (s *Service) completeAnthropic(ctx context.Context, system, prompt string) (string, error) {
	if s.cfg.AnthropicKey == "" {
		return "", ErrNotConfigured
	}
	model := strings.TrimSpace(s.cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}

	client := anthropicclient.NewClient(
		anthropicoption.WithAPIKey(s.cfg.AnthropicKey),
		anthropicoption.WithMaxRetries(1),
	)
	message, err := client.Messages.New(ctx, anthropicclient.MessageNewParams{
		Model:     anthropicclient.Model(model),
		MaxTokens: draftMaxTokens,
		System: []anthropicclient.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropicclient.MessageParam{
			anthropicclient.NewUserMessage(anthropicclient.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			full.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(full.String()) == "" {
		return "", ErrEmptyResponse
	}
	return full.String(), nil
}

// unmarshalModelJSON tolerates the code fences and prose that models wrap
// around JSON despite instructions.
func unmarshalModelJSON(raw string, v interface{}) error {
	text := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if err := json.Unmarshal([]byte(text), v); err == nil {
			return nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("invalid JSON response from AI")
}

type DraftRequestDTO struct {
	Topic      string `json:"topic" binding:"required"`
	SourceText string `json:"source_text"`
}

type Handler struct {
	svc       *Service
	featureMW gin.HandlerFunc
}

func NewHandler(svc *Service, featureMW gin.HandlerFunc) *Handler {
	return &Handler{svc: svc, featureMW: featureMW}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/ai", authMW)
	g.POST("/draft", h.featureMW, h.draft)
}

// POST /ai/draft
func (h *Handler) draft(c *gin.Context) {
	if !h.svc.Enabled() {
		response.ForbiddenMsg(c, ErrNotConfigured.Error())
		return
	}
	var dto DraftRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	draft, err := h.svc.DraftPage(c.Request.Context(), dto.Topic, dto.SourceText)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	parsed := markdown.MarkdownToSections(draft.Content)
	response.OK(c, gin.H{"draft": draft, "sections": parsed.Sections})
}
