package providers

import (
	"github.com/samber/do/v2"

	"github.com/anineesan/anineesan-server/internal/config"
	"github.com/anineesan/anineesan-server/internal/corpus"
	"github.com/anineesan/anineesan-server/internal/logger"
	"github.com/anineesan/anineesan-server/internal/recommend"
	"github.com/anineesan/anineesan-server/internal/reconcile"
	"github.com/anineesan/anineesan-server/internal/service"
	"github.com/anineesan/anineesan-server/internal/source"
	"github.com/anineesan/anineesan-server/internal/source/mal"
	"github.com/anineesan/anineesan-server/internal/stream"
)

// ProvideRecommender provides the content-based recommender.
func ProvideRecommender(i do.Injector) (*recommend.Recommender, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return recommend.NewRecommender(cfg.Recommend.Neighbors, log.WithComponent("recommend")), nil
}

// ProvideCatalogService provides search, lookup, episode and recommendation operations.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	fanout := do.MustInvoke[*reconcile.Fanout](i)
	resolver := do.MustInvoke[*stream.Resolver](i)
	recommender := do.MustInvoke[*recommend.Recommender](i)

	return service.NewCatalogService(fanout, resolver, recommender, cfg.Fetch.SearchLimit, log.WithComponent("catalog")), nil
}

// ProvideDiscoveryService provides the browse lists.
func ProvideDiscoveryService(i do.Injector) (*service.DiscoveryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	malClient := do.MustInvoke[*mal.Client](i)
	adapters := do.MustInvoke[*Adapters](i)
	fanout := do.MustInvoke[*reconcile.Fanout](i)

	return service.NewDiscoveryService(service.DiscoveryOptions{
		Ranking: malClient,
		Feed:    malClient.Pages(),
		Enrich:  adapters.Secondary,
		Fetcher: fanout,
		Retry:   source.RetryPolicy{Retries: cfg.Fetch.Retries, Backoff: cfg.Fetch.RetryBackoff},
		Logger:  log.WithComponent("discovery"),
	}), nil
}

// ProvideIndexBuilder provides the recommendation index rebuild loop.
func ProvideIndexBuilder(i do.Injector) (*service.IndexBuilder, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	discovery := do.MustInvoke[*service.DiscoveryService](i)
	cache := do.MustInvoke[*corpus.Cache](i)

	return service.NewIndexBuilder(service.IndexBuilderOptions{
		Catalog:     catalog,
		Discovery:   discovery,
		Corpus:      cache,
		SeedQueries: cfg.Recommend.SeedQueries,
		TopLimit:    topIndexLimit,
		Interval:    cfg.Recommend.RebuildInterval,
		Logger:      log.WithComponent("indexer"),
	}), nil
}
