package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// FFmpeg extracts single frames by running the ffmpeg binary.
type FFmpeg struct {
	binary string
	logger *slog.Logger
}

// NewFFmpeg creates a frame extractor. An empty binary resolves "ffmpeg" on PATH.
func NewFFmpeg(binary string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{binary: binary, logger: logger}
}

// Available reports whether the configured binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.binary)
	return err == nil
}

// FrameArgs returns the ffmpeg arguments that write one PNG frame at offset to stdout.
func FrameArgs(videoPath string, at time.Duration) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
}

func (f *FFmpeg) ExtractFrame(ctx context.Context, videoPath string, at time.Duration) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary, FrameArgs(videoPath, at)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", simplemedia.ErrFrameExtractionFailure, err)
		}
		f.logger.Debug("ffmpeg failed", "path", videoPath, "at", at, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", simplemedia.ErrDecodeFailure, err, strings.TrimSpace(stderr.String()))
	}

	// ffmpeg exits zero without output when the offset is past the end.
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: no frame at %s", simplemedia.ErrFrameExtractionFailure, at)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", simplemedia.ErrFrameExtractionFailure, err)
	}
	return img, nil
}
