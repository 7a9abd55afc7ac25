package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/talentpath/upskiller/internal/utils"
)

const (
	defaultEmbeddingModel = "gemini-embedding-001"
	retryBaseDelay        = 500 * time.Millisecond
)

// Gemini embeds texts through the Google GenAI embeddings API.
type Gemini struct {
	client     *genai.Client
	modelName  string
	dimension  int
	maxRetries int
	logger     *zap.Logger
}

// NewGemini creates an Embedder configured for the Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model string, dimension, maxRetries int, logger *zap.Logger) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gemini{
		client:     client,
		modelName:  model,
		dimension:  dimension,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// EmbedTexts sends the whole batch in a single EmbedContent call and returns
// one vector per text, in input order. Transient API failures are retried
// with linear backoff up to the configured attempt budget.
func (g *Gemini) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: t}},
		})
	}

	var cfg *genai.EmbedContentConfig
	if g.dimension > 0 {
		cfg = &genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.dimension)),
		}
	}

	var resp *genai.EmbedContentResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = g.client.Models.EmbedContent(ctx, g.modelName, contents, cfg)
		if err == nil {
			break
		}
		if attempt >= g.maxRetries || !isRetryable(err) {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		g.logger.Warn("retrying embedding request",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if werr := utils.WaitFor(ctx, time.Duration(attempt+1)*retryBaseDelay); werr != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini api returned empty embedding at index %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (g *Gemini) ModelName() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func isRetryable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}
