package providers

import (
	"github.com/samber/do/v2"

	"github.com/anineesan/anineesan-server/internal/config"
	"github.com/anineesan/anineesan-server/internal/corpus"
	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/logger"
	"github.com/anineesan/anineesan-server/internal/service"
	"github.com/anineesan/anineesan-server/internal/source/scrape"
)

// ProvideCorpusCache provides the scraped catalog snapshot cache.
//
// Every published snapshot asks the recommendation indexer for a rebuild. The
// indexer is resolved lazily because it reads the corpus itself.
func ProvideCorpusCache(i do.Injector) (*corpus.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	db := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*scrape.Client](i)

	corpusLog := log.WithComponent("corpus")

	return corpus.New(client.FetchPage, corpus.Options{
		TTL:      cfg.Corpus.TTL,
		MaxPages: cfg.Corpus.MaxPages,
		Store:    db.Store,
		OnPublish: func(snap *domain.CorpusSnapshot) {
			indexer, err := do.Invoke[*service.IndexBuilder](i)
			if err != nil {
				corpusLog.Warn("recommendation indexer unavailable", "snapshot_id", snap.ID, "error", err)
				return
			}
			indexer.Trigger()
		},
		Logger: corpusLog,
	}), nil
}

// ProvideCorpusRefresher provides the background loop that keeps the corpus fresh.
func ProvideCorpusRefresher(i do.Injector) (*corpus.Refresher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cache := do.MustInvoke[*corpus.Cache](i)

	return corpus.NewRefresher(cache, cfg.Corpus.RefreshInterval, log.WithComponent("corpus")), nil
}
