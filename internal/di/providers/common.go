// Package providers contains dependency injection providers for the catalog daemon.
package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// breakerFailures trips an adapter's circuit after this many consecutive outages.
	breakerFailures = 5
	breakerOpen     = 30 * time.Second

	// topIndexLimit is how many top-ranked titles seed each recommendation rebuild.
	topIndexLimit = 100
)
