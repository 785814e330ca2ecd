//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject

package app

import (
	"context"

	qcfg "quorum/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *qcfg.Config) (*App, error) {
	appBuilder := NewAppBuilder(cfg)
	app, err := assembleApp(ctx, appBuilder)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// assembleApp runs the builder chain producing a ready App.
func assembleApp(ctx context.Context, b *AppBuilder) (*App, error) {
	return b.Build(ctx)
}
