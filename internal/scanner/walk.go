package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// DiscoveredFile is one media file found on disk.
type DiscoveredFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

var mediaExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".mov":  true,
	".wmv":  true,
	".ts":   true,
	".m2ts": true,
	".webm": true,
	".flv":  true,
	".mpg":  true,
	".mpeg": true,
}

// IsMediaFile reports whether the path has a recognized media extension.
func IsMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// WalkMedia enumerates media files under root. Unreadable subtrees are
// skipped rather than aborting the walk; the root itself must be
// readable.
func WalkMedia(root string) ([]DiscoveredFile, error) {
	var files []DiscoveredFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return fs.SkipDir
		}
		if d.IsDir() {
			// Hidden directories hold no library content.
			if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !IsMediaFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, DiscoveredFile{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
