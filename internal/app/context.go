package app

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/config"
	"atelier/internal/repo"
)

// ResolveConfig returns the marketplace config for a workspace. Precedence:
// the atelier.yml file if present, then the config persisted in the database,
// then the built-in defaults. A config resolved from file or defaults is
// written back to the database so the server and CLI agree on one source of
// truth afterwards.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	fileCfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := r.UpsertMarketplaceConfig(ctx, fileCfg); err != nil {
			return nil, fmt.Errorf("persist config: %w", err)
		}
		return fileCfg, nil
	}

	cfg, err := r.GetMarketplaceConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	seed := config.Default()
	if err := r.UpsertMarketplaceConfig(ctx, seed); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return seed, nil
}

// ImportConfig validates a YAML config file and persists it for the workspace.
func ImportConfig(ctx context.Context, path string, r repo.Repo) (*config.Config, error) {
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, err
	}
	if err := r.UpsertMarketplaceConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("persist config: %w", err)
	}
	return cfg, nil
}
