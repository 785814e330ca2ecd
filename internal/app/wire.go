//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	qcfg "quorum/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *qcfg.Config) (*App, error) {
	wire.Build(
		NewAppBuilder,
		assembleApp,
	)
	return nil, nil
}
