package catalog

import (
	"context"
	"time"
)

// Resource types known to the catalog. Kept in sync with the quota
// configuration; anything else coming back from the store is dropped
// by the selector.
const (
	TypeCourse         = "course"
	TypeProject        = "project"
	TypeCertification  = "certification"
	TypeSpecialization = "specialization"
	TypeDegree         = "degree"
)

// Candidate is one ranked row returned by a similarity search:
// a resource identifier, its type tag and a cosine similarity in [0,1].
type Candidate struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Type       string  `json:"type"`
	Similarity float64 `json:"similarity"`
}

// Resource is a full catalog row, used for ingestion and listing.
type Resource struct {
	ID          string
	Title       string
	Type        string
	Description string
	Embedding   []float32
	UpdatedAt   time.Time
}

// Provider performs ranked similarity search against the resource catalog.
// Results are ordered by similarity descending and already filtered by the
// shared minimum floor; the category tag lets a backend specialize the
// search without the caller knowing how.
type Provider interface {
	Search(ctx context.Context, embedding []float32, minSimilarity float64, category string, limit int) ([]Candidate, error)
}
