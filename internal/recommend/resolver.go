package recommend

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talentpath/upskiller/internal/catalog"
	"github.com/talentpath/upskiller/internal/embedding"
	"github.com/talentpath/upskiller/internal/logger"
)

const (
	defaultConcurrency     = 20
	defaultProviderTimeout = 10 * time.Second
	defaultSearchLimit     = 100
)

// Result is the per-skill outcome handed to the response assembler.
type Result struct {
	Skill         string              `json:"skill"`
	Found         bool                `json:"found"`
	Count         int                 `json:"count"`
	Resources     []catalog.Candidate `json:"resources"`
	TypeDiversity int                 `json:"type_diversity"`
	Types         []string            `json:"types"`
	CacheHit      bool                `json:"cache_hit"`
	Degraded      bool                `json:"degraded,omitempty"`
}

// ResolverOptions bound the resolver's fan-out behaviour. Zero values fall
// back to the defaults above.
type ResolverOptions struct {
	Concurrency     int
	ProviderTimeout time.Duration
	SearchLimit     int
}

// Resolver fans skill queries out to the catalog with bounded concurrency,
// merging cache hits with freshly computed misses. The cache may be nil,
// in which case every lookup goes to the catalog (debug/comparison mode).
type Resolver struct {
	provider catalog.Provider
	embedder embedding.Embedder
	selector *Selector
	cache    *ResultCache
	logger   *zap.Logger

	concurrency     int
	providerTimeout time.Duration
	searchLimit     int
}

// NewResolver wires the resolver's collaborators together.
func NewResolver(provider catalog.Provider, embedder embedding.Embedder, selector *Selector, cache *ResultCache, logger *zap.Logger, opts ResolverOptions) *Resolver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = defaultProviderTimeout
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		provider:        provider,
		embedder:        embedder,
		selector:        selector,
		cache:           cache,
		logger:          logger,
		concurrency:     opts.Concurrency,
		providerTimeout: opts.ProviderTimeout,
		searchLimit:     opts.SearchLimit,
	}
}

type pendingLookup struct {
	index     int
	query     SkillQuery
	key       string
	text      string
	threshold float64
}

// ResolveAll resolves every query and returns results in input order.
// Cache misses share one batched embedding call and are dispatched with
// bounded concurrency. A provider or embedding failure degrades only the
// affected queries to empty results; the batch itself never fails.
func (r *Resolver) ResolveAll(ctx context.Context, queries []SkillQuery) []Result {
	started := time.Now()
	results := make([]Result, len(queries))

	var misses []pendingLookup
	for i, q := range queries {
		threshold := r.selector.Threshold(q)
		text, key := Normalize(q, threshold)

		if r.cache != nil {
			if cached, ok := r.cache.Get(key); ok {
				results[i] = resultFrom(q, cached, true, false)
				continue
			}
		}
		misses = append(misses, pendingLookup{index: i, query: q, key: key, text: text, threshold: threshold})
	}

	if len(misses) == 0 {
		r.logger.Debug("resolved batch from cache alone",
			zap.Int("queries", len(queries)),
			zap.Duration("elapsed", time.Since(started)),
		)
		return results
	}

	texts := make([]string, len(misses))
	for i, m := range misses {
		texts[i] = m.text
	}

	vectors, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil || len(vectors) != len(misses) {
		r.logger.Warn("batch embedding failed, degrading uncached queries",
			zap.Int("queries", len(misses)),
			zap.Error(err),
		)
		for _, m := range misses {
			results[m.index] = degradedResult(m.query)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, m := range misses {
		vector := vectors[i]
		m := m
		g.Go(func() error {
			results[m.index] = r.lookup(gctx, m, vector)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("resolved batch",
		zap.Int("queries", len(queries)),
		zap.Int("cache_hits", len(queries)-len(misses)),
		zap.Int("computed", len(misses)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return results
}

// Resolve is the single-query convenience wrapper around ResolveAll.
func (r *Resolver) Resolve(ctx context.Context, query SkillQuery) Result {
	return r.ResolveAll(ctx, []SkillQuery{query})[0]
}

func (r *Resolver) lookup(ctx context.Context, m pendingLookup, vector []float32) Result {
	if err := ctx.Err(); err != nil {
		return degradedResult(m.query)
	}

	cctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	candidates, err := r.provider.Search(cctx, vector, r.selector.Floor(), string(m.query.Category), r.searchLimit)
	if err != nil {
		r.logger.Warn("catalog search failed, degrading query",
			zap.String("skill", m.query.Skill),
			zap.String("category", string(m.query.Category)),
			zap.Error(err),
		)
		return degradedResult(m.query)
	}

	selected := r.selector.Select(candidates, m.query.Category, m.threshold)
	r.logger.Debug("computed recommendations",
		zap.String("skill", m.query.Skill),
		zap.String("query", logger.TruncateForLog(m.text, 80)),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected.Items)),
		zap.Int("type_diversity", selected.TypeDiversity),
	)
	if r.cache != nil {
		r.cache.Set(m.key, selected)
	}
	return resultFrom(m.query, selected, false, false)
}

func resultFrom(q SkillQuery, rs ResultSet, cacheHit, degraded bool) Result {
	return Result{
		Skill:         q.Skill,
		Found:         len(rs.Items) > 0,
		Count:         len(rs.Items),
		Resources:     rs.Items,
		TypeDiversity: rs.TypeDiversity,
		Types:         rs.Types,
		CacheHit:      cacheHit,
		Degraded:      degraded,
	}
}

func degradedResult(q SkillQuery) Result {
	return Result{Skill: q.Skill, Degraded: true, Types: []string{}}
}
