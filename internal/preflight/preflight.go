package preflight

import (
	"context"

	"singalong/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the filesystem checks for the given config.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Songs directory", cfg.SongsDir()),
		CheckDirectoryAccess("Model cache", cfg.ModelDir()),
		CheckFileReadable("Separator script", cfg.Tools.SeparatorScript),
	}
}
