package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datespot/aggregator/internal/categorize"
	"github.com/datespot/aggregator/internal/domain"
)

type fakeModel struct {
	resp  *genai.GenerateContentResponse
	err   error
	calls int
}

func (f *fakeModel) GenerateContent(_ context.Context, _ ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	return f.resp, f.err
}

func textResponse(body string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(body)}}},
		},
	}
}

func newTestClassifier(model generativeModel) *Classifier {
	return &Classifier{
		model:     model,
		modelName: "gemini-test",
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestCategorize(t *testing.T) {
	model := &fakeModel{resp: textResponse(`{"2024-01-15": {"e1": "Comedy Scene"}}`)}
	c := newTestClassifier(model)

	got, err := c.Categorize(context.Background(), map[string]map[string]string{
		"2024-01-15": {"e1": "Open Mic: weekly standup"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, map[string]map[string]string{"2024-01-15": {"e1": "Comedy Scene"}}, got)
}

func TestCategorizeRequestError(t *testing.T) {
	model := &fakeModel{err: errors.New("quota exceeded")}
	c := newTestClassifier(model)

	_, err := c.Categorize(context.Background(), map[string]map[string]string{"2024-01-15": {"e1": "x"}})

	require.Error(t, err)
	assert.NotErrorIs(t, err, categorize.ErrMalformedResponse)
}

func TestCategorizeMalformedReply(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"nil response", nil},
		{"no candidates", &genai.GenerateContentResponse{}},
		{"no parts", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
		}},
		{"not json", textResponse("sorry, I cannot do that")},
		{"wrong shape", textResponse(`["Comedy Scene"]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(&fakeModel{resp: tt.resp})
			_, err := c.Categorize(context.Background(), map[string]map[string]string{"2024-01-15": {"e1": "x"}})
			assert.ErrorIs(t, err, categorize.ErrMalformedResponse)
		})
	}
}

func TestNewClassifierRequiresAPIKey(t *testing.T) {
	_, err := NewClassifier(context.Background(), "", "gemini-2.0-flash", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestSystemPromptListsEveryCategory(t *testing.T) {
	prompt := systemPrompt()
	for _, category := range domain.AllowedCategories {
		assert.Contains(t, prompt, category)
	}
}
