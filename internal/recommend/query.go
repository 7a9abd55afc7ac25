package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Category classifies a skill query and drives both the embedding framing
// and the quota policy applied to its results.
type Category string

const (
	CategorySkill   Category = "SKILL"
	CategoryField   Category = "FIELD"
	CategoryDefault Category = "DEFAULT"
)

// providerTag pins cache keys to the backing catalog so that keys computed
// against a different provider never collide with ours.
const providerTag = "pgvector-catalog"

const cacheKeyLength = 16

// ParseCategory maps a free-form category tag to a known Category.
// Anything unrecognized degrades to CategoryDefault.
func ParseCategory(s string) Category {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case CategorySkill:
		return CategorySkill
	case CategoryField:
		return CategoryField
	default:
		return CategoryDefault
	}
}

// SkillQuery is the input to one lookup. Threshold is an optional override;
// zero means the category default applies.
type SkillQuery struct {
	Skill       string
	Description string
	Category    Category
	Threshold   float64
}

// EmbeddingText builds the canonical text sent to the embedder. SKILL
// queries are framed toward course/project/certificate shaped resources,
// FIELD queries toward specialization/degree shaped ones; everything else
// is an unbiased concatenation. Empty fields degrade gracefully.
func EmbeddingText(q SkillQuery) string {
	skill := strings.TrimSpace(q.Skill)
	desc := strings.TrimSpace(q.Description)

	var b strings.Builder
	switch q.Category {
	case CategorySkill:
		b.WriteString("course project certification tutorial for ")
	case CategoryField:
		b.WriteString("specialization degree curriculum in ")
	}
	b.WriteString(skill)
	if desc != "" {
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		b.WriteString(desc)
	}
	return strings.TrimSpace(b.String())
}

// CacheKey derives a deterministic short digest from the embedding text,
// the category, the effective threshold (two decimal places) and the
// provider tag. Queries differing in any component get different keys.
func CacheKey(embeddingText string, category Category, threshold float64) string {
	material := fmt.Sprintf("%s|%s|%.2f|%s", embeddingText, category, threshold, providerTag)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])[:cacheKeyLength]
}

// Normalize produces the embedding text and cache key for a query in one step.
func Normalize(q SkillQuery, effectiveThreshold float64) (embeddingText, cacheKey string) {
	embeddingText = EmbeddingText(q)
	cacheKey = CacheKey(embeddingText, q.Category, effectiveThreshold)
	return embeddingText, cacheKey
}
