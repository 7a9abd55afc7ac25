package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder turns a batch of texts into vectors in one round trip.
// Implementations must return exactly one vector per input text,
// in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Local produces deterministic hashed embeddings without external services.
// Used for offline runs and tests.
type Local struct {
	Dimension int
}

func (l *Local) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if l.Dimension <= 0 {
		return nil, errors.New("invalid embedding dimension")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = l.embedOne(t)
	}
	return out, nil
}

func (l *Local) embedOne(text string) []float32 {
	vec := make([]float32, l.Dimension)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return vec
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		idx := int(h.Sum32() % uint32(l.Dimension))
		vec[idx] += 1.0
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		n := float32(1.0 / math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] *= n
		}
	}
	return vec
}

func (l *Local) ModelName() string {
	return "local-fnv-hash"
}
