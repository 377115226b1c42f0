package main

import (
	"sync"

	"github.com/samber/do/v2"

	"github.com/anineesan/anineesan-server/internal/config"
	"github.com/anineesan/anineesan-server/internal/di"
)

type commandContext struct {
	envFile  string
	dataPath string
	logLevel string
	asJSON   bool

	once      sync.Once
	injector  *do.RootScope
	injectErr error
}

// configArgs translates the persistent flags into the daemon's flag syntax so
// both binaries share one configuration loader.
func (c *commandContext) configArgs() []string {
	args := []string{"-log-level=" + c.logLevel}
	if c.envFile != "" {
		args = append(args, "-env-file="+c.envFile)
	}
	if c.dataPath != "" {
		args = append(args, "-data-path="+c.dataPath)
	}
	return args
}

// container loads the configuration and builds the container on first use.
func (c *commandContext) container() (*do.RootScope, error) {
	c.once.Do(func() {
		cfg, err := config.LoadConfig(c.configArgs())
		if err != nil {
			c.injectErr = err
			return
		}
		c.injector = di.NewContainer(cfg)
	})
	return c.injector, c.injectErr
}

func (c *commandContext) close() {
	if c.injector != nil {
		_ = c.injector.Shutdown()
	}
}

// invoke resolves one component from the container.
func invoke[T any](c *commandContext) (T, error) {
	injector, err := c.container()
	if err != nil {
		var zero T
		return zero, err
	}
	return do.Invoke[T](injector)
}
