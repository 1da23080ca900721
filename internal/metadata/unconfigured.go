package metadata

import (
	"context"
	"errors"
)

// ErrNoProvider is returned by Unconfigured for every remote call.
var ErrNoProvider = errors.New("no metadata provider configured")

// Unconfigured is the Provider wired when no remote source is set up.
// Sync tasks still run and record a per-item failure for each show, so
// the operator sees what would have been matched.
type Unconfigured struct{}

func (Unconfigured) Name() string { return "none" }

func (Unconfigured) Search(_ context.Context, _ string, _ *int) (*ShowMatch, error) {
	return nil, ErrNoProvider
}

func (Unconfigured) Episodes(_ context.Context, _ string) ([]EpisodeInfo, error) {
	return nil, ErrNoProvider
}
