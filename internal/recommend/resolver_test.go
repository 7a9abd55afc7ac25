package recommend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/talentpath/upskiller/internal/catalog"
)

type stubProvider struct {
	mu       sync.Mutex
	calls    int
	inFlight int32
	maxSeen  int32

	search func(ctx context.Context, embedding []float32, minSimilarity float64, category string, limit int) ([]catalog.Candidate, error)
}

func (s *stubProvider) Search(ctx context.Context, embedding []float32, minSimilarity float64, category string, limit int) ([]catalog.Candidate, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	current := atomic.AddInt32(&s.inFlight, 1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, current) {
			break
		}
	}
	defer atomic.AddInt32(&s.inFlight, -1)

	if s.search != nil {
		return s.search(ctx, embedding, minSimilarity, category, limit)
	}
	return nil, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubEmbedder struct {
	err   error
	calls int32
}

func (s *stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (s *stubEmbedder) ModelName() string { return "stub" }

func skillCandidates(skill string, count int) []catalog.Candidate {
	out := make([]catalog.Candidate, count)
	for i := 0; i < count; i++ {
		out[i] = catalog.Candidate{
			ID:         fmt.Sprintf("%s-course-%d", skill, i),
			Title:      fmt.Sprintf("%s course %d", skill, i),
			Type:       catalog.TypeCourse,
			Similarity: 0.9 - float64(i)*0.01,
		}
	}
	return out
}

func newTestResolver(t *testing.T, provider catalog.Provider, embedder *stubEmbedder, cache *ResultCache, opts ResolverOptions) *Resolver {
	t.Helper()
	selector, err := NewSelector(testQuotas(), testThresholds(), 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewResolver(provider, embedder, selector, cache, zap.NewNop(), opts)
}

func TestResolveAllPreservesInputOrder(t *testing.T) {
	t.Parallel()

	var seq int32
	provider := &stubProvider{
		search: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]catalog.Candidate, error) {
			// Later dispatches answer faster to shake out completion-order bugs.
			n := atomic.AddInt32(&seq, 1)
			time.Sleep(time.Duration(12-n) * time.Millisecond)
			return skillCandidates(fmt.Sprintf("c%d", n), 1), nil
		},
	}
	resolver := newTestResolver(t, provider, &stubEmbedder{}, nil, ResolverOptions{})

	queries := make([]SkillQuery, 8)
	for i := range queries {
		queries[i] = SkillQuery{Skill: fmt.Sprintf("skill-%d", i), Category: CategorySkill}
	}

	results := resolver.ResolveAll(context.Background(), queries)

	if len(results) != len(queries) {
		t.Fatalf("expected %d results, got %d", len(queries), len(results))
	}
	for i, result := range results {
		if result.Skill != queries[i].Skill {
			t.Fatalf("result %d out of order: got %s", i, result.Skill)
		}
	}
}

func TestResolveAllCachesComputedResults(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		search: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]catalog.Candidate, error) {
			return skillCandidates("python", 3), nil
		},
	}
	cache := NewResultCache(10, time.Minute)
	resolver := newTestResolver(t, provider, &stubEmbedder{}, cache, ResolverOptions{})

	query := SkillQuery{Skill: "Python", Description: "scripting", Category: CategorySkill}

	first := resolver.Resolve(context.Background(), query)
	if first.CacheHit {
		t.Fatalf("first lookup must not be a cache hit")
	}
	if !first.Found || first.Count != 3 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second := resolver.Resolve(context.Background(), query)
	if !second.CacheHit {
		t.Fatalf("second lookup should be served from cache")
	}
	if !reflect.DeepEqual(first.Resources, second.Resources) {
		t.Fatalf("cached result differs from computed result")
	}
	if got := provider.callCount(); got != 1 {
		t.Fatalf("expected a single provider call, got %d", got)
	}
}

func TestResolveAllBypassesDisabledCache(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		search: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]catalog.Candidate, error) {
			return skillCandidates("go", 1), nil
		},
	}
	resolver := newTestResolver(t, provider, &stubEmbedder{}, nil, ResolverOptions{})

	query := SkillQuery{Skill: "Go", Category: CategorySkill}
	resolver.Resolve(context.Background(), query)
	resolver.Resolve(context.Background(), query)

	if got := provider.callCount(); got != 2 {
		t.Fatalf("expected 2 provider calls with cache disabled, got %d", got)
	}
}

func TestResolveAllDegradesFailedQueryOnly(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		search: func(_ context.Context, _ []float32, _ float64, category string, _ int) ([]catalog.Candidate, error) {
			if category == string(CategoryField) {
				return nil, errors.New("catalog unavailable")
			}
			return skillCandidates("ok", 2), nil
		},
	}
	resolver := newTestResolver(t, provider, &stubEmbedder{}, nil, ResolverOptions{})

	results := resolver.ResolveAll(context.Background(), []SkillQuery{
		{Skill: "Python", Category: CategorySkill},
		{Skill: "Data Science", Category: CategoryField},
		{Skill: "Go", Category: CategorySkill},
	})

	if !results[0].Found || !results[2].Found {
		t.Fatalf("healthy queries must not be affected: %+v", results)
	}
	if results[1].Found || !results[1].Degraded {
		t.Fatalf("failed query should degrade to empty: %+v", results[1])
	}
	if results[1].Count != 0 || len(results[1].Resources) != 0 {
		t.Fatalf("degraded result should be empty: %+v", results[1])
	}
}

func TestResolveAllDegradesAllMissesOnEmbeddingFailure(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		search: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]catalog.Candidate, error) {
			return skillCandidates("cached", 1), nil
		},
	}
	cache := NewResultCache(10, time.Minute)
	embedder := &stubEmbedder{}
	resolver := newTestResolver(t, provider, embedder, cache, ResolverOptions{})

	warm := SkillQuery{Skill: "Python", Category: CategorySkill}
	resolver.Resolve(context.Background(), warm)

	embedder.err = errors.New("embedding backend down")

	results := resolver.ResolveAll(context.Background(), []SkillQuery{
		warm,
		{Skill: "Go", Category: CategorySkill},
	})

	if !results[0].CacheHit || !results[0].Found {
		t.Fatalf("cache hit should survive an embedding outage: %+v", results[0])
	}
	if !results[1].Degraded || results[1].Found {
		t.Fatalf("uncached query should degrade: %+v", results[1])
	}
}

func TestResolveAllBatchesEmbeddings(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		search: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]catalog.Candidate, error) {
			return nil, nil
		},
	}
	embedder := &stubEmbedder{}
	resolver := newTestResolver(t, provider, embedder, nil, ResolverOptions{})

	queries := make([]SkillQuery, 12)
	for i := range queries {
		queries[i] = SkillQuery{Skill: fmt.Sprintf("skill-%d", i), Category: CategorySkill}
	}
	resolver.ResolveAll(context.Background(), queries)

	if got := atomic.LoadInt32(&embedder.calls); got != 1 {
		t.Fatalf("expected one batched embedding call, got %d", got)
	}
}

func TestResolveAllBoundsConcurrency(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		search: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]catalog.Candidate, error) {
			time.Sleep(10 * time.Millisecond)
			return nil, nil
		},
	}
	resolver := newTestResolver(t, provider, &stubEmbedder{}, nil, ResolverOptions{Concurrency: 2})

	queries := make([]SkillQuery, 8)
	for i := range queries {
		queries[i] = SkillQuery{Skill: fmt.Sprintf("skill-%d", i), Category: CategorySkill}
	}
	resolver.ResolveAll(context.Background(), queries)

	if seen := atomic.LoadInt32(&provider.maxSeen); seen > 2 {
		t.Fatalf("concurrency limit exceeded: saw %d simultaneous calls", seen)
	}
}

func TestResolveAllEmptyProviderResultIsNotAnError(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		search: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]catalog.Candidate, error) {
			return nil, nil
		},
	}
	resolver := newTestResolver(t, provider, &stubEmbedder{}, nil, ResolverOptions{})

	result := resolver.Resolve(context.Background(), SkillQuery{Skill: "Cobol", Category: CategorySkill})

	if result.Found || result.Degraded {
		t.Fatalf("empty catalog result should be a clean empty result: %+v", result)
	}
	if result.Count != 0 || result.TypeDiversity != 0 {
		t.Fatalf("expected zero counts: %+v", result)
	}
}

func TestResolveAllHonorsDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	provider := &stubProvider{
		search: func(ctx context.Context, _ []float32, _ float64, _ string, _ int) ([]catalog.Candidate, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return skillCandidates("late", 1), nil
			}
		},
	}
	resolver := newTestResolver(t, provider, &stubEmbedder{}, nil, ResolverOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	defer close(release)

	results := resolver.ResolveAll(ctx, []SkillQuery{{Skill: "Python", Category: CategorySkill}})

	if !results[0].Degraded {
		t.Fatalf("expected degraded result past the deadline: %+v", results[0])
	}
}
