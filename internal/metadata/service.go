package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/show"
	"github.com/sydlexius/driftwood/internal/task"
)

// Service synchronizes the catalog with a remote metadata provider. All
// remote traffic runs inside tracked background tasks and is paced by one
// shared limiter so bulk operations respect the provider's rate limits.
type Service struct {
	shows    *show.Service
	provider Provider
	limiter  *rate.Limiter
	sched    *task.Scheduler
	cancels  *task.CancelRegistry
	bus      *event.Bus
	logger   *slog.Logger
}

// NewService creates a metadata service. callsPerSecond bounds outbound
// provider calls; values below one fall back to a conservative default.
func NewService(shows *show.Service, provider Provider, callsPerSecond float64, sched *task.Scheduler, cancels *task.CancelRegistry, bus *event.Bus, logger *slog.Logger) *Service {
	if callsPerSecond <= 0 {
		callsPerSecond = 2
	}
	return &Service{
		shows:    shows,
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(callsPerSecond), 1),
		sched:    sched,
		cancels:  cancels,
		bus:      bus,
		logger:   logger.With(slog.String("component", "metadata")),
	}
}

// ImportShow admits a task that matches one show against the provider and
// pulls its episode metadata.
func (s *Service) ImportShow(ctx context.Context, showID string) (*task.Tracker, error) {
	sh, err := s.shows.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	return s.sched.Admit(task.TypeMetadataImport, 0, func(ctx context.Context, tr *task.Tracker) error {
		if sh.TMDBID == "" {
			if err := s.matchShow(ctx, tr, sh); err != nil {
				return err
			}
		}
		if err := s.refreshShow(ctx, tr, sh); err != nil {
			tr.IncrementFailed(sh.Title, err.Error())
		}
		tr.Complete()
		return nil
	}), nil
}

// BulkMatch admits a task that resolves remote ids for every unmatched
// show.
func (s *Service) BulkMatch(ctx context.Context) (*task.Tracker, error) {
	shows, err := s.unmatchedShows(ctx)
	if err != nil {
		return nil, err
	}
	if len(shows) == 0 {
		return nil, fmt.Errorf("no unmatched shows")
	}

	return s.sched.Admit(task.TypeMetadataBulkMatch, len(shows), func(ctx context.Context, tr *task.Tracker) error {
		for i := range shows {
			if s.cancels.IsCancelled(tr.ID()) {
				tr.Cancel()
				return nil
			}
			sh := shows[i]
			if err := s.matchShow(ctx, tr, &sh); err != nil {
				continue
			}
		}
		tr.Complete()
		return nil
	}), nil
}

// BulkRefresh admits a task that re-pulls episode metadata for every
// matched show.
func (s *Service) BulkRefresh(ctx context.Context) (*task.Tracker, error) {
	return s.refreshTask(ctx, task.TypeMetadataBulkRefresh, false)
}

// RefreshMissing admits a task that pulls metadata only for shows not yet
// fully synced.
func (s *Service) RefreshMissing(ctx context.Context) (*task.Tracker, error) {
	return s.refreshTask(ctx, task.TypeMetadataRefreshMissing, true)
}

func (s *Service) refreshTask(ctx context.Context, taskType task.Type, onlyMissing bool) (*task.Tracker, error) {
	all, err := s.shows.ListShows(ctx)
	if err != nil {
		return nil, err
	}
	var targets []show.Show
	for _, sh := range all {
		if sh.TMDBID == "" {
			continue
		}
		if onlyMissing {
			synced, err := s.FullySynced(ctx, sh.ID)
			if err != nil {
				return nil, err
			}
			if synced {
				continue
			}
		}
		targets = append(targets, sh)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no shows to refresh")
	}

	return s.sched.Admit(taskType, len(targets), func(ctx context.Context, tr *task.Tracker) error {
		for i := range targets {
			if s.cancels.IsCancelled(tr.ID()) {
				tr.Cancel()
				return nil
			}
			sh := targets[i]
			tr.SetCurrentItem(sh.Title)
			if err := s.refreshShow(ctx, tr, &sh); err != nil {
				tr.IncrementFailed(sh.Title, err.Error())
				continue
			}
			tr.IncrementSuccess(sh.Title)
		}
		tr.Complete()

		snap := tr.Snapshot()
		s.bus.Publish(event.MetadataSynced, map[string]any{
			"task_id":   tr.ID(),
			"succeeded": snap.Succeeded,
			"failed":    snap.Failed,
		})
		return nil
	}), nil
}

// FullySynced reports whether every known episode of a show carries synced
// metadata. A show with no seasons counts as synced.
func (s *Service) FullySynced(ctx context.Context, showID string) (bool, error) {
	seasons, err := s.shows.ListSeasons(ctx, showID)
	if err != nil {
		return false, err
	}
	for _, season := range seasons {
		eps, err := s.shows.ListEpisodes(ctx, season.ID)
		if err != nil {
			return false, err
		}
		for _, ep := range eps {
			if ep.SyncedAt == nil {
				return false, nil
			}
		}
	}
	return true, nil
}

func (s *Service) unmatchedShows(ctx context.Context) ([]show.Show, error) {
	all, err := s.shows.ListShows(ctx)
	if err != nil {
		return nil, err
	}
	var out []show.Show
	for _, sh := range all {
		if sh.TMDBID == "" {
			out = append(out, sh)
		}
	}
	return out, nil
}

// matchShow searches the provider and stores the remote id. Outcomes are
// recorded on the tracker.
func (s *Service) matchShow(ctx context.Context, tr *task.Tracker, sh *show.Show) error {
	tr.SetCurrentItem(sh.Title)
	if err := s.limiter.Wait(ctx); err != nil {
		tr.IncrementFailed(sh.Title, err.Error())
		return err
	}
	match, err := s.provider.Search(ctx, sh.Title, sh.Year)
	if err != nil {
		tr.IncrementFailed(sh.Title, err.Error())
		return err
	}
	if match == nil {
		tr.IncrementFailed(sh.Title, "no match found")
		return fmt.Errorf("no match for %s", sh.Title)
	}
	if err := s.shows.SetShowTMDBID(ctx, sh.ID, match.RemoteID); err != nil {
		tr.IncrementFailed(sh.Title, err.Error())
		return err
	}
	sh.TMDBID = match.RemoteID
	tr.IncrementSuccess(sh.Title)
	return nil
}

// refreshShow pulls remote episode metadata and applies it to the catalog.
// Episode titles already set locally are kept; air dates and sync stamps
// are always refreshed.
func (s *Service) refreshShow(ctx context.Context, tr *task.Tracker, sh *show.Show) error {
	if sh.TMDBID == "" {
		return fmt.Errorf("show %s has no remote match", sh.Title)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	remote, err := s.provider.Episodes(ctx, sh.TMDBID)
	if err != nil {
		return err
	}
	byKey := make(map[[2]int]EpisodeInfo, len(remote))
	for _, ep := range remote {
		byKey[[2]int{ep.Season, ep.Episode}] = ep
	}

	seasons, err := s.shows.ListSeasons(ctx, sh.ID)
	if err != nil {
		return err
	}
	for _, season := range seasons {
		eps, err := s.shows.ListEpisodes(ctx, season.ID)
		if err != nil {
			return err
		}
		for _, ep := range eps {
			info, ok := byKey[[2]int{season.Number, ep.Number}]
			if !ok {
				continue
			}
			if ep.Title == nil && info.Title != "" {
				title := info.Title
				if err := s.shows.UpdateEpisodeTitle(ctx, ep.ID, &title); err != nil {
					return err
				}
			}
			if err := s.shows.MarkEpisodeSynced(ctx, ep.ID, info.AirDate); err != nil {
				return err
			}
		}
	}
	return nil
}
