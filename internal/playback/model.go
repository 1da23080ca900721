package playback

import "time"

// Test result values.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Test records one manual playback verification of a media file on a
// particular player.
type Test struct {
	ID       string    `json:"id"`
	FileID   string    `json:"file_id"`
	Player   string    `json:"player"`
	Result   string    `json:"result"`
	Notes    string    `json:"notes,omitempty"`
	TestedAt time.Time `json:"tested_at"`
}
