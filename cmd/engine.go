package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/talentpath/upskiller/internal/catalog"
	"github.com/talentpath/upskiller/internal/embedding"
	"github.com/talentpath/upskiller/internal/logger"
	"github.com/talentpath/upskiller/internal/recommend"
	"github.com/talentpath/upskiller/internal/secrets"
)

// engine bundles the resolver and the collaborators it was built from, so
// commands can start the janitor and tear everything down in one place.
type engine struct {
	resolver *recommend.Resolver
	cache    *recommend.ResultCache
	janitor  *recommend.Janitor
	catalog  *catalog.PgVectorCatalog
}

func (e *engine) Close() {
	if e.catalog != nil {
		_ = e.catalog.Close()
	}
}

// buildEngine turns the validated configuration into a ready resolver.
// A malformed quota table or threshold set is a hard error: serving
// traffic with broken quotas would produce plausible but wrong results.
func buildEngine(ctx context.Context, config *Config, log *zap.Logger) (*engine, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Recommend == nil || config.Recommend.Thresholds == nil || config.Recommend.Cache == nil {
		return nil, errors.New("recommend configuration is incomplete")
	}

	selector, err := recommend.NewSelector(
		quotasFromConfig(config.Recommend.Quotas),
		recommend.Thresholds{
			Skill:   config.Recommend.Thresholds.Skill,
			Field:   config.Recommend.Thresholds.Field,
			Default: config.Recommend.Thresholds.Default,
			Floor:   config.Recommend.Thresholds.Floor,
		},
		config.Recommend.MaxResults,
	)
	if err != nil {
		return nil, fmt.Errorf("building selector: %w", err)
	}

	embedder, err := buildEmbedder(ctx, config, log)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}

	store, err := buildCatalog(config.Catalog)
	if err != nil {
		return nil, fmt.Errorf("building catalog: %w", err)
	}

	var cache *recommend.ResultCache
	var janitor *recommend.Janitor
	if config.Recommend.Cache.Enabled {
		cache = recommend.NewResultCache(config.Recommend.Cache.Capacity, config.Recommend.Cache.TTL)
		janitor = recommend.NewJanitor(cache, config.Recommend.Cache.SweepInterval, log)
	} else {
		log.Warn("result cache is disabled, every lookup goes to the catalog")
	}

	resolver := recommend.NewResolver(store, embedder, selector, cache, log, recommend.ResolverOptions{
		Concurrency:     config.Recommend.Concurrency,
		ProviderTimeout: config.Recommend.ProviderTimeout,
		SearchLimit:     config.Recommend.SearchLimit,
	})

	return &engine{
		resolver: resolver,
		cache:    cache,
		janitor:  janitor,
		catalog:  store,
	}, nil
}

func quotasFromConfig(raw map[string]map[string]int) recommend.QuotaTable {
	quotas := make(recommend.QuotaTable, len(raw))
	for category, caps := range raw {
		// Unknown categories pass through uppercased and are rejected
		// by the selector's validation.
		quotas[recommend.Category(strings.ToUpper(strings.TrimSpace(category)))] = caps
	}
	return quotas
}

func buildEmbedder(ctx context.Context, config *Config, log *zap.Logger) (embedding.Embedder, error) {
	dimension := 0
	if config.Catalog != nil {
		dimension = config.Catalog.Dimension
	}

	provider := ""
	if config.Embedding != nil {
		provider = strings.TrimSpace(strings.ToLower(config.Embedding.Provider))
	}

	switch provider {
	case "", "local":
		return &embedding.Local{Dimension: dimension}, nil
	case "gemini":
		if config.Embedding.Gemini == nil {
			return nil, errors.New("gemini configuration is required when the gemini embedding provider is selected")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: config.Embedding.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set embedding.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		embLogger := logger.WithCommonFields(log, "gemini", config.Embedding.Gemini.Model)

		return embedding.NewGemini(ctx, apiKey, config.Embedding.Gemini.Model, dimension, config.Embedding.Gemini.MaxRetries, embLogger)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

func buildCatalog(config *CatalogConfig) (*catalog.PgVectorCatalog, error) {
	if config == nil {
		return nil, errors.New("catalog configuration is required")
	}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "catalog dsn",
		Value: config.DSN,
		File:  config.DSNFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set catalog.dsn, catalog.dsn-file or UPSKILLER_CATALOG_DSN)", err)
	}

	return catalog.NewPgVectorCatalog(dsn, config.Dimension)
}
