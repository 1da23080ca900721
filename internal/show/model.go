package show

import "time"

// Monitor status values for shows.
const (
	MonitorWanted      = "wanted"
	MonitorUnmonitored = "unmonitored"
)

// Quality status values for media files.
const (
	QualityUnverified = "unverified"
	QualityVerified   = "verified"
	QualityDefective  = "defective"
)

// Show is one TV series in the catalog. FolderName is the stable scan
// identity; Title is user-facing and never touched by scans.
type Show struct {
	ID            string    `json:"id"`
	LibraryID     string    `json:"library_id,omitempty"`
	Title         string    `json:"title"`
	SortTitle     string    `json:"sort_title"`
	FolderName    string    `json:"folder_name"`
	Path          string    `json:"path"`
	Year          *int      `json:"year,omitempty"`
	TMDBID        string    `json:"tmdb_id,omitempty"`
	MonitorStatus string    `json:"monitor_status"`
	QualityRating *int      `json:"quality_rating,omitempty"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Season groups episodes under a show. Number 0 holds specials.
type Season struct {
	ID        string    `json:"id"`
	ShowID    string    `json:"show_id"`
	Number    int       `json:"number"`
	CreatedAt time.Time `json:"created_at"`
}

// Episode is one episode of a season. Title is nil until a scan or the user
// provides one; a scan never overwrites an existing title.
type Episode struct {
	ID       string     `json:"id"`
	SeasonID string     `json:"season_id"`
	Number   int        `json:"number"`
	Title    *string    `json:"title,omitempty"`
	AirDate  *time.Time `json:"air_date,omitempty"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MediaFile is one on-disk file backing an episode. Path is the scan
// identity. ExistsOnDisk is cleared, never the row deleted, when a scan no
// longer finds the path.
type MediaFile struct {
	ID            string     `json:"id"`
	EpisodeID     string     `json:"episode_id"`
	Path          string     `json:"path"`
	Size          int64      `json:"size"`
	ModTime       time.Time  `json:"mod_time"`
	ExistsOnDisk  bool       `json:"exists_on_disk"`
	QualityStatus string     `json:"quality_status"`
	VideoCodec    string     `json:"video_codec,omitempty"`
	AudioCodec    string     `json:"audio_codec,omitempty"`
	Resolution    string     `json:"resolution,omitempty"`
	Duration      float64    `json:"duration_seconds,omitempty"`
	AnalyzedAt    *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ShowIdentity is the stable filesystem-derived key used to match a
// discovered show folder to an existing catalog record.
type ShowIdentity struct {
	FolderName string
	Title      string
	Year       *int
	Path       string
	LibraryID  string
}

// FileRef is a lightweight projection used by scan cleanup.
type FileRef struct {
	ID           string
	Path         string
	ExistsOnDisk bool
}

// AnalysisInfo holds the probe results recorded against a media file.
type AnalysisInfo struct {
	VideoCodec string
	AudioCodec string
	Resolution string
	Duration   float64
}
