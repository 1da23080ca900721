package scanner

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParsedFile is the identity a media path resolves to.
type ParsedFile struct {
	ShowFolder   string
	ShowTitle    string
	Year         *int
	Season       int
	Episode      int
	EpisodeTitle *string
}

var (
	yearSuffixRe = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)\s*$`)
	seasonDirRe  = regexp.MustCompile(`(?i)^season[\s._-]*(\d{1,3})$`)
	specialsRe   = regexp.MustCompile(`(?i)^specials?$`)

	// S01E05, s1e5, and multi-episode runs such as S01E05E06 or S01E05-E06.
	sxxEyyRe = regexp.MustCompile(`(?i)s(\d{1,3})[\s._-]*e(\d{1,4})((?:[\s._-]*e\d{1,4})*)`)
	// 1x05 style.
	nxNNRe = regexp.MustCompile(`(?i)\b(\d{1,3})x(\d{1,4})\b`)

	qualityTagRe = regexp.MustCompile(`(?i)[\s._-]*\b(480p|576p|720p|1080p|2160p|4k|8k|x264|x265|h\.?264|h\.?265|hevc|av1|xvid|divx|bluray|blu-ray|bdrip|brrip|webrip|web-dl|webdl|hdtv|dvdrip|dvd|remux|proper|repack|extended|uncut|multi|vostfr|aac|ac3|eac3|dts(?:-hd)?|truehd|atmos|ddp?\d\.\d|10bit|hdr10?\+?|dovi|dv)\b.*$`)
	releaseGrpRe = regexp.MustCompile(`-[A-Za-z0-9]+$`)
	spacesRe     = regexp.MustCompile(`\s+`)
)

// Recognize derives show, season, and episode identity from a media file
// path relative to the library root. It returns an error when no season
// and episode number can be determined; callers record that as a per-item
// failure and move on.
func Recognize(root, path string) (*ParsedFile, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("path %s is not under library root", path)
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return nil, fmt.Errorf("path %s has no show folder", path)
	}

	showFolder := parts[0]
	filename := parts[len(parts)-1]
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	parsed := &ParsedFile{ShowFolder: showFolder}
	parsed.ShowTitle, parsed.Year = splitFolderYear(showFolder)

	season, haveSeason := seasonFromFolders(parts[1 : len(parts)-1])

	tokSeason, episode, titleStart, ok := episodeToken(base)
	if !ok {
		return nil, fmt.Errorf("no recognizable episode token in %q", filename)
	}
	if !haveSeason {
		season = tokSeason
	}

	parsed.Season = season
	parsed.Episode = episode
	if title := cleanEpisodeTitle(base[titleStart:]); title != "" {
		parsed.EpisodeTitle = &title
	}
	return parsed, nil
}

// splitFolderYear separates a trailing "(1999)" year from a show folder
// name. The folder name itself, not the cleaned title, is the show's
// stable identity.
func splitFolderYear(folder string) (string, *int) {
	m := yearSuffixRe.FindStringSubmatch(folder)
	if m == nil {
		return strings.TrimSpace(folder), nil
	}
	year, err := strconv.Atoi(m[2])
	if err != nil || year < 1900 || year > 2100 {
		return strings.TrimSpace(folder), nil
	}
	return strings.TrimSpace(m[1]), &year
}

// seasonFromFolders inspects intermediate directories for a "Season NN"
// or "Specials" folder. Specials map to season 0.
func seasonFromFolders(dirs []string) (int, bool) {
	for i := len(dirs) - 1; i >= 0; i-- {
		if specialsRe.MatchString(dirs[i]) {
			return 0, true
		}
		if m := seasonDirRe.FindStringSubmatch(dirs[i]); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// episodeToken finds the season/episode token in a filename base. For
// multi-episode tokens the first episode number is authoritative. It
// returns the offset just past the full token so the caller can slice
// off the title segment.
func episodeToken(base string) (season, episode, titleStart int, ok bool) {
	if loc := sxxEyyRe.FindStringSubmatchIndex(base); loc != nil {
		m := sxxEyyRe.FindStringSubmatch(base)
		season, _ = strconv.Atoi(m[1])
		episode, _ = strconv.Atoi(m[2])
		return season, episode, loc[1], true
	}
	if loc := nxNNRe.FindStringSubmatchIndex(base); loc != nil {
		m := nxNNRe.FindStringSubmatch(base)
		season, _ = strconv.Atoi(m[1])
		episode, _ = strconv.Atoi(m[2])
		return season, episode, loc[1], true
	}
	return 0, 0, 0, false
}

// cleanEpisodeTitle turns the text after an episode token into a display
// title: separators trimmed, quality and release tags stripped.
func cleanEpisodeTitle(segment string) string {
	s := strings.Trim(segment, " .-_")
	if s == "" {
		return ""
	}
	s = qualityTagRe.ReplaceAllString(s, "")
	s = releaseGrpRe.ReplaceAllString(s, "")
	s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " -")
}
