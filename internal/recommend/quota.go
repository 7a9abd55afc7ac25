package recommend

import (
	"fmt"
	"sort"

	"github.com/talentpath/upskiller/internal/catalog"
)

const defaultMaxResults = 25

// ResultSet is the final output of one lookup: candidates ordered by
// similarity descending plus the diversity metrics derived from them.
type ResultSet struct {
	Items         []catalog.Candidate `json:"items"`
	TypeDiversity int                 `json:"type_diversity"`
	Types         []string            `json:"types"`
}

func (r ResultSet) clone() ResultSet {
	out := ResultSet{TypeDiversity: r.TypeDiversity}
	if r.Items != nil {
		out.Items = make([]catalog.Candidate, len(r.Items))
		copy(out.Items, r.Items)
	}
	if r.Types != nil {
		out.Types = make([]string, len(r.Types))
		copy(out.Types, r.Types)
	}
	return out
}

// QuotaTable maps a category to per-resource-type retention caps. Resource
// types absent from a category's map are dropped entirely for that category.
type QuotaTable map[Category]map[string]int

// Thresholds holds the category similarity floors and the shared minimum
// floor applied by the catalog before results reach the selector.
type Thresholds struct {
	Skill   float64
	Field   float64
	Default float64
	Floor   float64
}

// For returns the similarity threshold for a category.
func (t Thresholds) For(category Category) float64 {
	switch category {
	case CategorySkill:
		return t.Skill
	case CategoryField:
		return t.Field
	default:
		return t.Default
	}
}

var knownResourceTypes = map[string]bool{
	catalog.TypeCourse:         true,
	catalog.TypeProject:        true,
	catalog.TypeCertification:  true,
	catalog.TypeSpecialization: true,
	catalog.TypeDegree:         true,
}

var knownCategories = map[Category]bool{
	CategorySkill:   true,
	CategoryField:   true,
	CategoryDefault: true,
}

// ValidateQuotas rejects a malformed quota table: unknown categories or
// resource types, negative caps, a missing DEFAULT fallback, or a category
// whose caps are all zero. Called once at startup; a broken table must stop
// the process rather than produce plausible-looking but wrong results.
func ValidateQuotas(quotas QuotaTable) error {
	if len(quotas) == 0 {
		return fmt.Errorf("quota table is empty")
	}
	if _, ok := quotas[CategoryDefault]; !ok {
		return fmt.Errorf("quota table is missing the %s fallback category", CategoryDefault)
	}
	for category, caps := range quotas {
		if !knownCategories[category] {
			return fmt.Errorf("quota table has unknown category %q", category)
		}
		if len(caps) == 0 {
			return fmt.Errorf("quota table for category %s is empty", category)
		}
		total := 0
		for resourceType, limit := range caps {
			if !knownResourceTypes[resourceType] {
				return fmt.Errorf("quota table for category %s has unknown resource type %q", category, resourceType)
			}
			if limit < 0 {
				return fmt.Errorf("quota table for category %s has negative cap %d for %s", category, limit, resourceType)
			}
			total += limit
		}
		if total == 0 {
			return fmt.Errorf("quota table for category %s retains nothing", category)
		}
	}
	return nil
}

// ValidateThresholds rejects threshold values outside (0,1] and a shared
// floor that is not strictly below every category threshold.
func ValidateThresholds(t Thresholds) error {
	for name, v := range map[string]float64{
		"skill":   t.Skill,
		"field":   t.Field,
		"default": t.Default,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s threshold %.2f is outside (0,1]", name, v)
		}
		if t.Floor >= v {
			return fmt.Errorf("shared floor %.2f must be below the %s threshold %.2f", t.Floor, name, v)
		}
	}
	if t.Floor < 0 || t.Floor > 1 {
		return fmt.Errorf("shared floor %.2f is outside [0,1]", t.Floor)
	}
	return nil
}

// Selector turns a raw similarity-ordered candidate list into the final
// type-diverse, bounded result for a category.
type Selector struct {
	quotas     QuotaTable
	thresholds Thresholds
	maxResults int
}

// NewSelector validates the quota table and thresholds up front and returns
// a ready selector. maxResults <= 0 falls back to the default overall cap.
func NewSelector(quotas QuotaTable, thresholds Thresholds, maxResults int) (*Selector, error) {
	if err := ValidateQuotas(quotas); err != nil {
		return nil, err
	}
	if err := ValidateThresholds(thresholds); err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Selector{quotas: quotas, thresholds: thresholds, maxResults: maxResults}, nil
}

// Threshold returns the effective similarity threshold for a query:
// the per-query override when set, the category default otherwise.
func (s *Selector) Threshold(q SkillQuery) float64 {
	if q.Threshold > 0 {
		return q.Threshold
	}
	return s.thresholds.For(q.Category)
}

// Floor returns the shared minimum similarity applied at the catalog.
func (s *Selector) Floor() float64 {
	return s.thresholds.Floor
}

// Select applies the category threshold, partitions candidates by resource
// type, caps each type at its quota, then merges and re-sorts by similarity
// descending before truncating to the overall maximum. threshold <= 0 means
// the category default. An empty outcome is a valid, empty ResultSet.
func (s *Selector) Select(candidates []catalog.Candidate, category Category, threshold float64) ResultSet {
	caps, ok := s.quotas[category]
	if !ok {
		caps = s.quotas[CategoryDefault]
	}
	if threshold <= 0 {
		threshold = s.thresholds.For(category)
	}

	byType := make(map[string][]catalog.Candidate)
	for _, cand := range candidates {
		if cand.Similarity < threshold {
			continue
		}
		if _, allowed := caps[cand.Type]; !allowed {
			continue
		}
		byType[cand.Type] = append(byType[cand.Type], cand)
	}

	var kept []catalog.Candidate
	for resourceType, group := range byType {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Similarity > group[j].Similarity
		})
		if quota := caps[resourceType]; len(group) > quota {
			group = group[:quota]
		}
		kept = append(kept, group...)
	}

	// Quota capping must never invert the final similarity order.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Similarity > kept[j].Similarity
	})
	if len(kept) > s.maxResults {
		kept = kept[:s.maxResults]
	}

	present := make(map[string]bool)
	for _, cand := range kept {
		present[cand.Type] = true
	}
	types := make([]string, 0, len(present))
	for t := range present {
		types = append(types, t)
	}
	sort.Strings(types)

	return ResultSet{Items: kept, TypeDiversity: len(types), Types: types}
}
