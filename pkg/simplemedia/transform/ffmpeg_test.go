package transform_test

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia/transform"
)

func TestFrameArgs(t *testing.T) {
	args := transform.FrameArgs("/tmp/clip.mp4", 2*time.Second)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", "2.000",
		"-i", "/tmp/clip.mp4",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}, args)
}

func TestFFmpegExtractFrame(t *testing.T) {
	ff := transform.NewFFmpeg("", nil)
	if !ff.Available() {
		t.Skip("ffmpeg not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	clip := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=3:size=320x240:rate=10",
		"-pix_fmt", "yuv420p", clip)
	require.NoError(t, gen.Run())

	t.Run("frame at offset", func(t *testing.T) {
		img, err := ff.ExtractFrame(ctx, clip, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 320, img.Bounds().Dx())
		assert.Equal(t, 240, img.Bounds().Dy())
	})

	t.Run("first frame", func(t *testing.T) {
		img, err := ff.ExtractFrame(ctx, clip, 0)
		require.NoError(t, err)
		assert.NotNil(t, img)
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := ff.ExtractFrame(ctx, filepath.Join(t.TempDir(), "absent.mp4"), 0)
		assert.Error(t, err)
	})
}

func TestFFmpegMissingBinary(t *testing.T) {
	ff := transform.NewFFmpeg("/nonexistent/ffmpeg-binary", nil)
	assert.False(t, ff.Available())

	_, err := ff.ExtractFrame(context.Background(), "clip.mp4", 0)
	assert.Error(t, err)
}
