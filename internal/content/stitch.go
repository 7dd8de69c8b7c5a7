package content

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/models"
)

// LoopFileName is the stitched loop's filename within the scenes directory
const LoopFileName = "loop.mp4"

const (
	concatListName = "concat.txt"

	// Stitched duration may differ slightly from the sum of declared scene
	// durations; beyond this the mismatch is worth a warning because sync
	// will fight it every cycle.
	durationMismatchTolerance = 0.5
)

// Stitcher concatenates scene videos into a single loop file so the player
// can run one file continuously instead of switching at every boundary
type Stitcher struct {
	ffmpegBinary  string
	ffprobeBinary string
	stagingDir    string
	scenesDir     string
}

// NewStitcher creates a stitcher using the system ffmpeg and ffprobe
func NewStitcher(cfg config.ContentConfig) *Stitcher {
	return &Stitcher{
		ffmpegBinary:  "ffmpeg",
		ffprobeBinary: "ffprobe",
		stagingDir:    cfg.StagingDir,
		scenesDir:     cfg.ScenesDir,
	}
}

// CanStitch reports whether the scene list qualifies for a stitched loop:
// video-only content with no schedule windows, since a varying active set
// would desynchronize a fixed concatenation from the cycle.
func (s *Stitcher) CanStitch(scenes []*models.Scene) bool {
	if len(scenes) == 0 {
		return false
	}
	for _, scene := range scenes {
		if scene.MediaType != models.MediaTypeVideo || len(scene.Schedule) > 0 {
			return false
		}
	}
	return true
}

// Stitch concatenates the scenes' media (absolute paths, playback order)
// into the loop file, staging the output and renaming it into place.
// Returns the loop filename within the scenes directory.
func (s *Stitcher) Stitch(ctx context.Context, scenes []*models.Scene) (string, error) {
	if len(scenes) == 0 {
		return "", fmt.Errorf("cannot stitch empty scene list")
	}

	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := os.MkdirAll(s.scenesDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scenes directory: %w", err)
	}

	listPath := filepath.Join(s.stagingDir, concatListName)
	var list strings.Builder
	for _, scene := range scenes {
		// ffmpeg concat demuxer escaping: single quotes in paths become '\''
		escaped := strings.ReplaceAll(scene.MediaFile, "'", `'\''`)
		fmt.Fprintf(&list, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	staged := filepath.Join(s.stagingDir, LoopFileName)
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		staged,
	}

	cmd := exec.CommandContext(ctx, s.ffmpegBinary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg concat failed: %w: %s", err, truncateOutput(output))
	}

	stitchedDur, err := s.ProbeDuration(ctx, staged)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Failed to probe stitched loop duration")
	} else {
		var total float64
		for _, scene := range scenes {
			total += scene.DurationSeconds
		}
		if math.Abs(stitchedDur-total) > durationMismatchTolerance {
			logger.Log.Warn().
				Float64("stitched_seconds", stitchedDur).
				Float64("declared_seconds", total).
				Msg("Stitched loop duration disagrees with declared scene durations")
		}
	}

	final := filepath.Join(s.scenesDir, LoopFileName)
	if err := os.Rename(staged, final); err != nil {
		return "", fmt.Errorf("failed to move stitched loop into place: %w", err)
	}

	logger.Log.Info().
		Int("scenes", len(scenes)).
		Float64("duration_seconds", stitchedDur).
		Str("path", final).
		Msg("Stitched playlist loop")
	return LoopFileName, nil
}

// ProbeDuration returns a media file's duration in seconds via ffprobe
func (s *Stitcher) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, s.ffprobeBinary, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output %q: %w", strings.TrimSpace(string(output)), err)
	}
	return duration, nil
}

// truncateOutput limits command output embedded in error messages
func truncateOutput(output []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(output))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
