// Package gemini classifies event batches with the Google Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/datespot/aggregator/internal/categorize"
	"github.com/datespot/aggregator/internal/domain"
)

type generativeModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Classifier implements categorize.Classifier on top of a Gemini
// generative model constrained to JSON output.
type Classifier struct {
	client    *genai.Client
	model     generativeModel
	modelName string
	logger    *slog.Logger
}

// NewClassifier creates a Gemini-backed classifier. The model is pinned to
// low temperature and a JSON response MIME type so replies stay parseable.
func NewClassifier(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	temp := float32(0.1)
	model.Temperature = &temp
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt())},
	}

	logger.Info("gemini classifier initialized", "model", modelName)
	return &Classifier{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Close releases the underlying API client.
func (c *Classifier) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Categorize sends one batch of event summaries and returns the model's
// {date: {event id: category}} assignment. A reply that is not valid JSON
// of that shape yields an error wrapping categorize.ErrMalformedResponse.
func (c *Classifier) Categorize(ctx context.Context, payload map[string]map[string]string) (map[string]map[string]string, error) {
	prompt, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding classification payload: %w", err)
	}

	eventCount := 0
	for _, ids := range payload {
		eventCount += len(ids)
	}
	c.logger.Debug("sending classification request",
		"model", c.modelName, "dates", len(payload), "events", eventCount)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}

	return parseReply(resp)
}

func parseReply(resp *genai.GenerateContentResponse) (map[string]map[string]string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty reply: %w", categorize.ErrMalformedResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("reply has no content: %w", categorize.ErrMalformedResponse)
	}
	text, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("reply part is not text: %w", categorize.ErrMalformedResponse)
	}

	var assignments map[string]map[string]string
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(text))), &assignments); err != nil {
		return nil, fmt.Errorf("decoding reply (%v): %w", err, categorize.ErrMalformedResponse)
	}
	return assignments, nil
}

func systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You assign exactly one category to each event.\n\n")
	sb.WriteString("The input is a JSON object mapping dates to objects of event id to event summary. ")
	sb.WriteString("Reply with a JSON object of the same shape, replacing each summary with one category chosen from this list:\n")
	for _, category := range domain.AllowedCategories {
		sb.WriteString("- ")
		sb.WriteString(category)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRules:\n")
	sb.WriteString("1. Use only categories from the list, spelled exactly as given.\n")
	sb.WriteString("2. Keep every date key and every event id from the input.\n")
	sb.WriteString("3. Reply with the JSON object only, no surrounding text.\n")
	return sb.String()
}
