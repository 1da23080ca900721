package show

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const showColumns = `id, library_id, title, sort_title, folder_name, path, year,
	tmdb_id, monitor_status, quality_rating, notes, created_at, updated_at`

const episodeColumns = `id, season_id, number, title, air_date, synced_at, created_at, updated_at`

const fileColumns = `id, episode_id, path, size, mod_time, exists_on_disk,
	quality_status, video_codec, audio_codec, resolution, duration_seconds,
	analyzed_at, created_at, updated_at`

// Service provides show/season/episode/file data operations, including the
// identity-keyed upserts the scan pipeline relies on. All upserts are
// idempotent: repeating a call with identical arguments changes nothing.
type Service struct {
	db *sql.DB
}

// NewService creates a show service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// FindOrCreateShow returns the show matching the folder-name identity,
// creating it when absent. On an existing show only the release year is
// backfilled, and only when currently unset; title, monitor status, quality
// rating and notes are left alone. New shows start with monitor status
// "wanted".
func (s *Service) FindOrCreateShow(ctx context.Context, identity ShowIdentity) (*Show, bool, error) {
	existing, err := s.GetShowByFolder(ctx, identity.FolderName)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Year == nil && identity.Year != nil {
			now := time.Now().UTC()
			_, err := s.db.ExecContext(ctx,
				`UPDATE shows SET year = ?, updated_at = ? WHERE id = ?`,
				*identity.Year, now.Format(time.RFC3339), existing.ID)
			if err != nil {
				return nil, false, fmt.Errorf("backfilling show year: %w", err)
			}
			existing.Year = identity.Year
			existing.UpdatedAt = now
		}
		return existing, false, nil
	}

	sh := &Show{
		ID:            uuid.New().String(),
		LibraryID:     identity.LibraryID,
		Title:         identity.Title,
		SortTitle:     SortTitle(identity.Title),
		FolderName:    identity.FolderName,
		Path:          identity.Path,
		Year:          identity.Year,
		MonitorStatus: MonitorWanted,
	}
	now := time.Now().UTC()
	sh.CreatedAt = now
	sh.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shows (id, library_id, title, sort_title, folder_name, path, year,
			tmdb_id, monitor_status, quality_rating, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sh.ID, nullableString(sh.LibraryID), sh.Title, sh.SortTitle, sh.FolderName, sh.Path,
		nullableInt(sh.Year), sh.TMDBID, sh.MonitorStatus, nullableInt(sh.QualityRating),
		sh.Notes, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, false, fmt.Errorf("creating show: %w", err)
	}
	return sh, true, nil
}

// GetShow retrieves a show by primary key.
func (s *Service) GetShow(ctx context.Context, id string) (*Show, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	sh, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("show not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting show: %w", err)
	}
	return sh, nil
}

// GetShowByFolder retrieves a show by its folder-name identity.
// Returns nil, nil when no show matches.
func (s *Service) GetShowByFolder(ctx context.Context, folderName string) (*Show, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+showColumns+` FROM shows WHERE folder_name = ?`, folderName)
	sh, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting show by folder: %w", err)
	}
	return sh, nil
}

// ListShows returns all shows ordered by sort title.
func (s *Service) ListShows(ctx context.Context) ([]Show, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+showColumns+` FROM shows ORDER BY sort_title, title`)
	if err != nil {
		return nil, fmt.Errorf("listing shows: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var shows []Show
	for rows.Next() {
		sh, err := scanShow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning show row: %w", err)
		}
		shows = append(shows, *sh)
	}
	return shows, rows.Err()
}

// UpdateShow modifies the user-editable fields of a show.
func (s *Service) UpdateShow(ctx context.Context, sh *Show) error {
	now := time.Now().UTC()
	sh.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		UPDATE shows SET title = ?, sort_title = ?, year = ?, tmdb_id = ?,
			monitor_status = ?, quality_rating = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		sh.Title, sh.SortTitle, nullableInt(sh.Year), sh.TMDBID,
		sh.MonitorStatus, nullableInt(sh.QualityRating), sh.Notes,
		now.Format(time.RFC3339), sh.ID,
	)
	if err != nil {
		return fmt.Errorf("updating show: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("show not found: %s", sh.ID)
	}
	return nil
}

// SetShowTMDBID records the matched remote metadata id for a show.
func (s *Service) SetShowTMDBID(ctx context.Context, id, tmdbID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE shows SET tmdb_id = ?, updated_at = ? WHERE id = ?`,
		tmdbID, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("setting tmdb id: %w", err)
	}
	return nil
}

// DeleteShow removes a show and, via cascade, its seasons, episodes and files.
func (s *Service) DeleteShow(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM shows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting show: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("show not found: %s", id)
	}
	return nil
}

// FindOrCreateSeason returns the season with the given number under a show,
// creating it when absent.
func (s *Service) FindOrCreateSeason(ctx context.Context, showID string, number int) (*Season, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, show_id, number, created_at FROM seasons WHERE show_id = ? AND number = ?`,
		showID, number)
	season, err := scanSeason(row)
	if err == nil {
		return season, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("getting season: %w", err)
	}

	season = &Season{
		ID:        uuid.New().String(),
		ShowID:    showID,
		Number:    number,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO seasons (id, show_id, number, created_at) VALUES (?, ?, ?, ?)`,
		season.ID, season.ShowID, season.Number, season.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, false, fmt.Errorf("creating season: %w", err)
	}
	return season, true, nil
}

// ListSeasons returns a show's seasons ordered by number.
func (s *Service) ListSeasons(ctx context.Context, showID string) ([]Season, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, show_id, number, created_at FROM seasons WHERE show_id = ? ORDER BY number`,
		showID)
	if err != nil {
		return nil, fmt.Errorf("listing seasons: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var seasons []Season
	for rows.Next() {
		season, err := scanSeason(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning season row: %w", err)
		}
		seasons = append(seasons, *season)
	}
	return seasons, rows.Err()
}

// UpsertEpisode returns the episode with the given number under a season,
// creating it when absent. titleIfNew is applied only on creation; an
// existing episode's title is never overwritten here.
func (s *Service) UpsertEpisode(ctx context.Context, seasonID string, number int, titleIfNew *string) (*Episode, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE season_id = ? AND number = ?`,
		seasonID, number)
	ep, err := scanEpisode(row)
	if err == nil {
		return ep, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("getting episode: %w", err)
	}

	now := time.Now().UTC()
	ep = &Episode{
		ID:        uuid.New().String(),
		SeasonID:  seasonID,
		Number:    number,
		Title:     titleIfNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, season_id, number, title, air_date, synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)
	`, ep.ID, ep.SeasonID, ep.Number, nullableStringPtr(ep.Title),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, false, fmt.Errorf("creating episode: %w", err)
	}
	return ep, true, nil
}

// GetEpisode retrieves an episode by primary key.
func (s *Service) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("episode not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting episode: %w", err)
	}
	return ep, nil
}

// ListEpisodes returns a season's episodes ordered by number.
func (s *Service) ListEpisodes(ctx context.Context, seasonID string) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE season_id = ? ORDER BY number`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var eps []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning episode row: %w", err)
		}
		eps = append(eps, *ep)
	}
	return eps, rows.Err()
}

// UpdateEpisodeTitle sets an episode's title from user input.
func (s *Service) UpdateEpisodeTitle(ctx context.Context, id string, title *string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET title = ?, updated_at = ? WHERE id = ?`,
		nullableStringPtr(title), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating episode title: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("episode not found: %s", id)
	}
	return nil
}

// MarkEpisodeSynced records a successful metadata sync for an episode.
func (s *Service) MarkEpisodeSynced(ctx context.Context, id string, airDate *time.Time) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET air_date = ?, synced_at = ?, updated_at = ? WHERE id = ?`,
		formatNullableTime(airDate), now.Format(time.RFC3339), now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("marking episode synced: %w", err)
	}
	return nil
}

// UpsertFile reconciles one discovered file with the catalog, keyed by path.
// Size and modification time are always overwritten from disk and the
// exists-on-disk flag is restored. Quality status is never modified here;
// new files start "unverified". The changed result reports whether any
// on-disk attribute actually differed, so an unchanged filesystem yields
// zero updates.
func (s *Service) UpsertFile(ctx context.Context, episodeID, path string, size int64, modTime time.Time) (*MediaFile, bool, bool, error) {
	existing, err := s.GetFileByPath(ctx, path)
	if err != nil {
		return nil, false, false, err
	}

	now := time.Now().UTC()
	modTime = modTime.UTC()

	if existing != nil {
		changed := existing.Size != size ||
			!existing.ModTime.Equal(modTime) ||
			!existing.ExistsOnDisk
		if changed {
			_, err := s.db.ExecContext(ctx, `
				UPDATE media_files SET size = ?, mod_time = ?, exists_on_disk = 1, updated_at = ?
				WHERE id = ?
			`, size, modTime.Format(time.RFC3339Nano), now.Format(time.RFC3339), existing.ID)
			if err != nil {
				return nil, false, false, fmt.Errorf("updating file: %w", err)
			}
			existing.Size = size
			existing.ModTime = modTime
			existing.ExistsOnDisk = true
			existing.UpdatedAt = now
		}
		return existing, false, changed, nil
	}

	f := &MediaFile{
		ID:            uuid.New().String(),
		EpisodeID:     episodeID,
		Path:          path,
		Size:          size,
		ModTime:       modTime,
		ExistsOnDisk:  true,
		QualityStatus: QualityUnverified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO media_files (id, episode_id, path, size, mod_time, exists_on_disk,
			quality_status, video_codec, audio_codec, resolution, duration_seconds,
			analyzed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, '', '', '', 0, NULL, ?, ?)
	`, f.ID, f.EpisodeID, f.Path, f.Size, f.ModTime.Format(time.RFC3339Nano),
		f.QualityStatus, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, false, false, fmt.Errorf("creating file: %w", err)
	}
	return f, true, false, nil
}

// GetFile retrieves a media file by primary key.
func (s *Service) GetFile(ctx context.Context, id string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM media_files WHERE id = ?`, id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return f, nil
}

// GetFileByPath retrieves a media file by its path identity.
// Returns nil, nil when no file matches.
func (s *Service) GetFileByPath(ctx context.Context, path string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM media_files WHERE path = ?`, path)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting file by path: %w", err)
	}
	return f, nil
}

// ListFilesByEpisode returns an episode's files ordered by path.
func (s *Service) ListFilesByEpisode(ctx context.Context, episodeID string) ([]MediaFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM media_files WHERE episode_id = ? ORDER BY path`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return collectFiles(rows)
}

// ListFilesPresent returns every file currently flagged as existing on disk,
// ordered by path. Used by bulk analysis.
func (s *Service) ListFilesPresent(ctx context.Context) ([]MediaFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM media_files WHERE exists_on_disk = 1 ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing present files: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return collectFiles(rows)
}

// ListFileRefsUnder returns id/path/exists projections for every known file
// whose path sits under root. Used by scan cleanup to find vanished files.
func (s *Service) ListFileRefsUnder(ctx context.Context, root string) ([]FileRef, error) {
	root = strings.TrimRight(root, "/")
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, exists_on_disk FROM media_files WHERE path LIKE ? ESCAPE '\'`,
		likePrefix(root)+"/%")
	if err != nil {
		return nil, fmt.Errorf("listing files under %s: %w", root, err)
	}
	defer rows.Close() //nolint:errcheck

	var refs []FileRef
	for rows.Next() {
		var ref FileRef
		var exists int
		if err := rows.Scan(&ref.ID, &ref.Path, &exists); err != nil {
			return nil, fmt.Errorf("scanning file ref: %w", err)
		}
		ref.ExistsOnDisk = exists != 0
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// MarkFileMissing clears the exists-on-disk flag. The row is kept so quality
// history and issue links survive a temporarily unmounted library.
func (s *Service) MarkFileMissing(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media_files SET exists_on_disk = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), fileID)
	if err != nil {
		return fmt.Errorf("marking file missing: %w", err)
	}
	return nil
}

// UpdateFileQuality sets the user-assigned quality status on a file.
func (s *Service) UpdateFileQuality(ctx context.Context, fileID, status string) error {
	switch status {
	case QualityUnverified, QualityVerified, QualityDefective:
	default:
		return fmt.Errorf("invalid quality status: %s", status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE media_files SET quality_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), fileID)
	if err != nil {
		return fmt.Errorf("updating file quality: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("file not found: %s", fileID)
	}
	return nil
}

// SetFileAnalysis records probe results against a file.
func (s *Service) SetFileAnalysis(ctx context.Context, fileID string, info AnalysisInfo) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE media_files SET video_codec = ?, audio_codec = ?, resolution = ?,
			duration_seconds = ?, analyzed_at = ?, updated_at = ?
		WHERE id = ?
	`, info.VideoCodec, info.AudioCodec, info.Resolution, info.Duration,
		now.Format(time.RFC3339), now.Format(time.RFC3339), fileID)
	if err != nil {
		return fmt.Errorf("recording file analysis: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("file not found: %s", fileID)
	}
	return nil
}

// SortTitle derives a sortable title by stripping a leading article.
func SortTitle(title string) string {
	lower := strings.ToLower(title)
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, article) {
			return title[len(article):]
		}
	}
	return title
}

// likePrefix escapes LIKE metacharacters in a literal path prefix.
func likePrefix(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(row rowScanner) (*Show, error) {
	var sh Show
	var libraryID sql.NullString
	var year, rating sql.NullInt64
	var createdAt, updatedAt string
	err := row.Scan(&sh.ID, &libraryID, &sh.Title, &sh.SortTitle, &sh.FolderName, &sh.Path,
		&year, &sh.TMDBID, &sh.MonitorStatus, &rating, &sh.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sh.LibraryID = libraryID.String
	if year.Valid {
		y := int(year.Int64)
		sh.Year = &y
	}
	if rating.Valid {
		r := int(rating.Int64)
		sh.QualityRating = &r
	}
	sh.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sh.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &sh, nil
}

func scanSeason(row rowScanner) (*Season, error) {
	var se Season
	var createdAt string
	if err := row.Scan(&se.ID, &se.ShowID, &se.Number, &createdAt); err != nil {
		return nil, err
	}
	se.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &se, nil
}

func scanEpisode(row rowScanner) (*Episode, error) {
	var ep Episode
	var title sql.NullString
	var airDate, syncedAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&ep.ID, &ep.SeasonID, &ep.Number, &title, &airDate, &syncedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if title.Valid {
		ep.Title = &title.String
	}
	ep.AirDate = parseNullableTime(airDate)
	ep.SyncedAt = parseNullableTime(syncedAt)
	ep.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ep.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &ep, nil
}

func scanFile(row rowScanner) (*MediaFile, error) {
	var f MediaFile
	var modTime string
	var exists int
	var analyzedAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.EpisodeID, &f.Path, &f.Size, &modTime, &exists,
		&f.QualityStatus, &f.VideoCodec, &f.AudioCodec, &f.Resolution, &f.Duration,
		&analyzedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	f.ModTime, _ = time.Parse(time.RFC3339Nano, modTime)
	f.ExistsOnDisk = exists != 0
	f.AnalyzedAt = parseNullableTime(analyzedAt)
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	f.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &f, nil
}

func collectFiles(rows *sql.Rows) ([]MediaFile, error) {
	var files []MediaFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
