package issue

import "time"

// Issue status values.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// Known issue categories. Free-form values are accepted; these are the ones
// the UI offers.
const (
	CategoryPlayback = "playback"
	CategoryAudio    = "audio"
	CategoryVideo    = "video"
	CategorySubtitle = "subtitle"
	CategoryMissing  = "missing"
	CategoryOther    = "other"
)

// Issue is a user-reported quality problem against a show, episode or file.
type Issue struct {
	ID         string     `json:"id"`
	ShowID     string     `json:"show_id,omitempty"`
	EpisodeID  string     `json:"episode_id,omitempty"`
	FileID     string     `json:"file_id,omitempty"`
	Category   string     `json:"category"`
	Summary    string     `json:"summary"`
	Detail     string     `json:"detail,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
