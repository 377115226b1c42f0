package providers

import (
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/anineesan/anineesan-server/internal/config"
	"github.com/anineesan/anineesan-server/internal/corpus"
	"github.com/anineesan/anineesan-server/internal/logger"
	"github.com/anineesan/anineesan-server/internal/metrics"
	"github.com/anineesan/anineesan-server/internal/service"
	"github.com/anineesan/anineesan-server/internal/supervisor"
)

// ProvideTree provides the supervisor tree with every background loop attached.
func ProvideTree(i do.Injector) (*supervisor.Tree, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	refresher := do.MustInvoke[*corpus.Refresher](i)
	indexer := do.MustInvoke[*service.IndexBuilder](i)

	tree := supervisor.NewTree(log.WithComponent("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddData(refresher)
	tree.AddIndex(indexer)

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		server := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		tree.AddOps(supervisor.NewHTTPService("metrics", server, shutdownTimeout))
		log.Info("Metrics listener configured", "addr", cfg.Metrics.Addr)
	}

	return tree, nil
}
