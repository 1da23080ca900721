package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/sydlexius/driftwood/internal/show"
)

// Analyzer extracts technical stream information from a media file.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (show.AnalysisInfo, error)
	Available() error
}

// FFprobeAnalyzer shells out to ffprobe with JSON output.
type FFprobeAnalyzer struct {
	binary string
}

// NewFFprobeAnalyzer creates an analyzer using the given ffprobe binary
// name or path.
func NewFFprobeAnalyzer(binary string) *FFprobeAnalyzer {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobeAnalyzer{binary: binary}
}

// Available reports whether the ffprobe binary can be found. Callers check
// this before admitting analysis tasks so a missing tool surfaces as a
// setup error, not per-item failures.
func (a *FFprobeAnalyzer) Available() error {
	if _, err := exec.LookPath(a.binary); err != nil {
		return fmt.Errorf("ffprobe not found at %q: %w", a.binary, err)
	}
	return nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Analyze probes one file. The command is bound to ctx, so cancelling the
// owning task kills an in-flight probe.
func (a *FFprobeAnalyzer) Analyze(ctx context.Context, path string) (show.AnalysisInfo, error) {
	var info show.AnalysisInfo

	cmd := exec.CommandContext(ctx, a.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	out, err := cmd.Output()
	if err != nil {
		return info, fmt.Errorf("probing %s: %w", path, err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return info, fmt.Errorf("decoding probe output for %s: %w", path, err)
	}

	for _, st := range probe.Streams {
		switch st.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = st.CodecName
				if st.Width > 0 && st.Height > 0 {
					info.Resolution = fmt.Sprintf("%dx%d", st.Width, st.Height)
				}
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = st.CodecName
			}
		}
	}
	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	if info.VideoCodec == "" && info.AudioCodec == "" {
		return info, fmt.Errorf("no usable streams in %s", path)
	}
	return info, nil
}
