package metadata

import (
	"context"
	"time"
)

// ShowMatch is a remote catalog entry matched to a local show.
type ShowMatch struct {
	RemoteID string
	Title    string
	Year     *int
}

// EpisodeInfo is remote episode metadata keyed by season and episode
// number.
type EpisodeInfo struct {
	Season  int
	Episode int
	Title   string
	AirDate *time.Time
}

// Provider is a remote metadata source. Implementations wrap a specific
// service's API; the sync logic treats them as opaque and applies its own
// call pacing.
type Provider interface {
	Name() string
	Search(ctx context.Context, title string, year *int) (*ShowMatch, error)
	Episodes(ctx context.Context, remoteID string) ([]EpisodeInfo, error)
}
