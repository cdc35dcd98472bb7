//go:build wireinject
// +build wireinject

package di

import (
	"NarraPulse/pkg/config"
	"NarraPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Domain
		ProvideCatalog,
		ProvideEngine,

		// Infrastructure
		ProvideCache,
		ProvideAlertPublisher,

		// Acquisition + orchestration
		ProvideMetricsSource,
		ProvideOrchestrator,

		// Presentation
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
