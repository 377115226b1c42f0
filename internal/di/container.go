// Package di wires the catalog daemon's components with samber/do.
package di

import (
	"github.com/samber/do/v2"

	"github.com/anineesan/anineesan-server/internal/config"
	"github.com/anineesan/anineesan-server/internal/corpus"
	"github.com/anineesan/anineesan-server/internal/di/providers"
	"github.com/anineesan/anineesan-server/internal/logger"
	"github.com/anineesan/anineesan-server/internal/service"
	"github.com/anineesan/anineesan-server/internal/supervisor"
)

// NewContainer creates and configures the DI container around an already
// loaded configuration.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideRateLimiter)

	// Upstreams
	do.Provide(injector, providers.ProvideMALClient)
	do.Provide(injector, providers.ProvideAniListClient)
	do.Provide(injector, providers.ProvideScrapeClient)
	do.Provide(injector, providers.ProvideCorpusCache)
	do.Provide(injector, providers.ProvideAdapters)
	do.Provide(injector, providers.ProvideFanout)
	do.Provide(injector, providers.ProvideStreamResolver)

	// Services
	do.Provide(injector, providers.ProvideRecommender)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideDiscoveryService)

	// Background loops
	do.Provide(injector, providers.ProvideIndexBuilder)
	do.Provide(injector, providers.ProvideCorpusRefresher)
	do.Provide(injector, providers.ProvideTree)

	return injector
}

// Bootstrap initializes the services the daemon runs. Construction performs
// no network calls; the first upstream traffic happens once the tree serves.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*corpus.Cache](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.CatalogService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.DiscoveryService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*supervisor.Tree](injector); err != nil {
		return err
	}
	return nil
}
