package providers

import (
	"github.com/samber/do/v2"

	"github.com/anineesan/anineesan-server/internal/config"
	"github.com/anineesan/anineesan-server/internal/corpus"
	"github.com/anineesan/anineesan-server/internal/logger"
	"github.com/anineesan/anineesan-server/internal/ratelimit"
	"github.com/anineesan/anineesan-server/internal/reconcile"
	"github.com/anineesan/anineesan-server/internal/source"
	"github.com/anineesan/anineesan-server/internal/source/anilist"
	"github.com/anineesan/anineesan-server/internal/source/mal"
	"github.com/anineesan/anineesan-server/internal/source/scrape"
	"github.com/anineesan/anineesan-server/internal/stream"
	"github.com/anineesan/anineesan-server/internal/stream/gogo"
)

// RateLimiterHandle wraps the shared per-host limiter.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the outbound request limiter shared by every upstream client.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Fetch.RatePerSecond, cfg.Fetch.Burst),
	}, nil
}

// ProvideMALClient provides the primary metadata client.
func ProvideMALClient(i do.Injector) (*mal.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	return mal.New(mal.Config{
		BaseURL:     cfg.MAL.BaseURL,
		SiteURL:     cfg.MAL.SiteURL,
		ClientID:    cfg.MAL.ClientID,
		SearchLimit: cfg.Fetch.SearchLimit,
	}, limiter.KeyedRateLimiter, log.WithComponent("mal")), nil
}

// ProvideAniListClient provides the secondary metadata client.
func ProvideAniListClient(i do.Injector) (*anilist.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	return anilist.New(anilist.Config{
		URL:     cfg.AniList.URL,
		PerPage: cfg.Fetch.SearchLimit,
	}, limiter.KeyedRateLimiter, log.WithComponent("anilist")), nil
}

// ProvideScrapeClient provides the catalog site client used for listings and search.
func ProvideScrapeClient(i do.Injector) (*scrape.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	return scrape.NewClient(scrape.Config{
		APIURLs: cfg.Scrape.APIURLs,
		SiteURL: cfg.Scrape.SiteURL,
	}, limiter.KeyedRateLimiter, log.WithComponent("scrape")), nil
}

// Adapters groups the three upstream adapters after resilience and caching
// have been layered on.
type Adapters struct {
	Primary   source.Adapter
	Secondary source.Adapter
	Tertiary  source.Adapter
}

// All returns the adapters in priority order.
func (a *Adapters) All() []source.Adapter {
	return []source.Adapter{a.Primary, a.Secondary, a.Tertiary}
}

// ProvideAdapters wraps every upstream client in a Resilient adapter. The two
// metadata sources additionally cache by-id lookups in the store.
func ProvideAdapters(i do.Injector) (*Adapters, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	db := do.MustInvoke[*StoreHandle](i)
	malClient := do.MustInvoke[*mal.Client](i)
	anilistClient := do.MustInvoke[*anilist.Client](i)
	scrapeClient := do.MustInvoke[*scrape.Client](i)
	cache := do.MustInvoke[*corpus.Cache](i)

	opts := source.Options{
		Timeout: cfg.Fetch.AdapterTimeout,
		Retry: source.RetryPolicy{
			Retries: cfg.Fetch.Retries,
			Backoff: cfg.Fetch.RetryBackoff,
		},
		Breaker: source.BreakerSettings{
			ConsecutiveFailures: breakerFailures,
			OpenTimeout:         breakerOpen,
		},
		Logger: log.WithComponent("adapter"),
	}
	cacheLog := log.WithComponent("record-cache")

	tertiary := scrape.NewAdapter(scrapeClient, cache, cfg.Fetch.SearchLimit, log.WithComponent("scrape"))

	return &Adapters{
		Primary:   source.NewCached(source.NewResilient(malClient, opts), db.Store, cfg.Storage.RecordTTL, cacheLog),
		Secondary: source.NewCached(source.NewResilient(anilistClient, opts), db.Store, cfg.Storage.RecordTTL, cacheLog),
		Tertiary:  source.NewResilient(tertiary, opts),
	}, nil
}

// ProvideFanout provides the concurrent multi-source query.
func ProvideFanout(i do.Injector) (*reconcile.Fanout, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	adapters := do.MustInvoke[*Adapters](i)

	return reconcile.NewFanout(cfg.Fetch.Deadline, log.WithComponent("fanout"), adapters.All()...), nil
}

// ProvideStreamResolver provides episode stream resolution.
func ProvideStreamResolver(i do.Injector) (*stream.Resolver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	catalog := gogo.New(gogo.Config{
		BaseURL: cfg.Stream.BaseURL,
		Server:  cfg.Stream.Server,
	}, limiter.KeyedRateLimiter, log.WithComponent("gogo"))

	return stream.NewResolver(catalog, log.WithComponent("stream")), nil
}
