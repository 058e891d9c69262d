//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"WhaleWatch/pkg/config"
	"WhaleWatch/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Session and transport
		ProvideSessionBackend,
		ProvideSessionStore,
		ProvideGateway,
		ProvideMarketAPI,

		// Sinks
		ProvideQuoteSink,

		// Use cases
		ProvideAuthUseCase,
		ProvideDashboardUseCase,

		// Local API
		ProvideMutationLimiter,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
