package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
)

// GeminiModel talks to the Google Gemini API using the official SDK.
type GeminiModel struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiModel creates a Gemini-backed Model.
func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	// Low temperature keeps extraction output close to deterministic.
	model.SetTemperature(0.1)

	return &GeminiModel{client: client, model: model}, nil
}

// Close closes the underlying client connection.
func (m *GeminiModel) Close() {
	if m.client != nil {
		m.client.Close()
	}
}

// Extract submits the document and prompt and returns the raw response
// text. Deadline expiry maps to ErrProcessingTimeout, everything else the
// backend reports maps to ErrModelUnavailable.
func (m *GeminiModel) Extract(ctx context.Context, payload Payload, prompt string) (string, error) {
	resp, err := m.model.GenerateContent(ctx,
		genai.Blob{MIMEType: payload.MIME, Data: payload.Data},
		genai.Text(prompt),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: model call exceeded deadline", invoice.ErrProcessingTimeout)
		}
		return "", fmt.Errorf("%w: %v", invoice.ErrModelUnavailable, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response", invoice.ErrModelUnavailable)
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", fmt.Errorf("%w: response contained no text parts", invoice.ErrModelUnavailable)
	}
	return text, nil
}
