package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/competisearch/internal/domain"
	"github.com/kailas-cloud/competisearch/internal/domain/textnorm"
)

const extractorSystemPrompt = `你是保险产品信息抽取助手。从用户给出的产品介绍文本中抽取以下字段，仅输出 JSON，不要输出其他内容：
{
  "labels": ["产品标签，最多5个"],
  "features": ["产品卖点，最多5个"],
  "summary_coverage": "保障范围摘要",
  "summary_liability": "保险责任摘要",
  "summary_exclusions": "除外责任摘要",
  "summary_provisions": "特约须知摘要",
  "summary_services": "增值服务摘要"
}
原文没有提到的字段留空。`

// extraction is the field set the LLM is asked to produce.
type extraction struct {
	Labels            json.RawMessage   `json:"labels"`
	Features          json.RawMessage   `json:"features"`
	SummaryCoverage   string            `json:"summary_coverage"`
	SummaryLiability  string            `json:"summary_liability"`
	SummaryExclusions string            `json:"summary_exclusions"`
	SummaryProvisions string            `json:"summary_provisions"`
	SummaryServices   string            `json:"summary_services"`
	SummarySectionsZH map[string]string `json:"summary,omitempty"`
}

// zhSummaryMapping maps the Chinese section names some model outputs use to
// the canonical field names.
var zhSummaryMapping = map[string]string{
	"保障范围": "summary_coverage",
	"保险责任": "summary_liability",
	"除外责任": "summary_exclusions",
	"特约须知": "summary_provisions",
	"增值服务": "summary_services",
}

// FieldExtractor synthesizes the product text-field set from free text via
// an OpenAI-compatible chat completion.
type FieldExtractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ExtractorConfig holds the extractor provider settings.
type ExtractorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewFieldExtractor creates an LLM-backed field extractor.
func NewFieldExtractor(cfg *ExtractorConfig) *FieldExtractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldExtractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Extract parses free product text into the canonical field map. List fields
// are re-encoded as JSON arrays so downstream normalization treats extracted
// and catalog-stored values identically.
func (x *FieldExtractor) Extract(ctx context.Context, productInfo string) (map[string]string, error) {
	resp, err := x.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: x.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: productInfo},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: field extraction: %v", domain.ErrDependency, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: field extraction returned no choices", domain.ErrDependency)
	}

	fields, err := ParseExtraction(resp.Choices[0].Message.Content)
	if err != nil {
		x.logger.Warn("field extraction output unparseable, using empty fields",
			zap.Error(err))
		return emptyFields(), nil
	}
	return fields, nil
}

// ParseExtraction decodes a model response into the canonical field map.
// The JSON object may be wrapped in a markdown code fence.
func ParseExtraction(raw string) (map[string]string, error) {
	raw = stripCodeFence(raw)

	var ex extraction
	if err := json.Unmarshal([]byte(raw), &ex); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	out := emptyFields()
	out["labels"] = encodeList(coerceList(ex.Labels))
	out["features"] = encodeList(coerceList(ex.Features))
	out["summary_coverage"] = strings.TrimSpace(ex.SummaryCoverage)
	out["summary_liability"] = strings.TrimSpace(ex.SummaryLiability)
	out["summary_exclusions"] = strings.TrimSpace(ex.SummaryExclusions)
	out["summary_provisions"] = strings.TrimSpace(ex.SummaryProvisions)
	out["summary_services"] = strings.TrimSpace(ex.SummaryServices)

	// Some outputs nest the summaries under Chinese section names.
	for zh, field := range zhSummaryMapping {
		if out[field] == "" {
			if v := strings.TrimSpace(ex.SummarySectionsZH[zh]); v != "" {
				out[field] = v
			}
		}
	}
	return out, nil
}

// coerceList accepts a JSON array of strings, a JSON string holding a list
// representation, or anything textnorm's parser chain can recover.
func coerceList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		out := items[:0]
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				out = append(out, it)
			}
		}
		return out
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if joined := textnorm.ParseListLike(s); joined != "" {
			return strings.Fields(joined)
		}
	}
	return nil
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func emptyFields() map[string]string {
	return map[string]string{
		"labels":             "",
		"features":           "",
		"summary_coverage":   "",
		"summary_liability":  "",
		"summary_exclusions": "",
		"summary_provisions": "",
		"summary_services":   "",
	}
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
