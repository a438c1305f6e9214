package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

// DefaultModel is used when the configuration does not name one.
const DefaultModel = "gemini-2.5-flash"

// Config carries the credentials for the Gemini assistant. The client is
// always constructed from an explicit Config; nothing reads ambient state.
type Config struct {
	APIKey string
	Model  string
}

// ProductInfo is one categorization result: a category from the closed
// vocabulary plus a cleaned display name.
type ProductInfo struct {
	Category    string `json:"category"`
	CleanedName string `json:"cleanedName"`
}

// Client wraps the Gemini API for the three request shapes the service
// needs: column-mapping suggestions, product categorization, and the
// narrative summary.
type Client struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewClient creates a Gemini client from the given configuration.
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("NewClient: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}

	return &Client{client: client, model: model, log: log}, nil
}

// SuggestMapping asks the model to match the semantic fields to the given
// source column names. The model may still hallucinate column names; the
// import pipeline re-checks the result against the file before use.
func (c *Client) SuggestMapping(ctx context.Context, columns []string) (*domain.MappingSchema, error) {
	raw, err := c.generate(ctx, buildMappingPrompt(columns))
	if err != nil {
		return nil, fmt.Errorf("SuggestMapping: %w", err)
	}

	mapping, err := parseMappingResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("SuggestMapping: %w", err)
	}
	return mapping, nil
}

// CategorizeProducts asks the model for a category and cleaned display
// name per product. Categories outside the closed vocabulary are coerced
// to "Other"; a missing cleaned name falls back to title-casing the
// original.
func (c *Client) CategorizeProducts(ctx context.Context, names []string) (map[string]ProductInfo, error) {
	raw, err := c.generate(ctx, buildCategorizationPrompt(names))
	if err != nil {
		return nil, fmt.Errorf("CategorizeProducts: %w", err)
	}

	result, err := parseCategorizationResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("CategorizeProducts: %w", err)
	}
	return result, nil
}

// GenerateInsight turns an aggregate sales summary into the four-part
// narrative. Both model output formats are accepted (structured JSON or
// the delimited plain-text fallback).
func (c *Client) GenerateInsight(ctx context.Context, summary map[string]interface{}) (domain.Insight, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("GenerateInsight: marshal summary: %w", err)
	}

	raw, err := c.generate(ctx, buildInsightPrompt(string(payload)))
	if err != nil {
		return domain.Insight{}, fmt.Errorf("GenerateInsight: %w", err)
	}

	insight, err := ParseInsightText(raw)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("GenerateInsight: %w", err)
	}
	return insight, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return rawText, nil
}
