package objectkey

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStamper(t *testing.T) {
	t.Run("strictly increasing on a frozen clock", func(t *testing.T) {
		frozen := time.UnixMilli(1700000000000)
		s := NewStamper(func() time.Time { return frozen })

		a := s.Next()
		b := s.Next()
		c := s.Next()
		assert.Equal(t, int64(1700000000000), a)
		assert.Equal(t, a+1, b)
		assert.Equal(t, b+1, c)
	})

	t.Run("clock stepping backwards", func(t *testing.T) {
		times := []int64{5000, 4000, 6000}
		i := 0
		s := NewStamper(func() time.Time {
			ms := times[i]
			i++
			return time.UnixMilli(ms)
		})
		assert.Equal(t, int64(5000), s.Next())
		assert.Equal(t, int64(5001), s.Next())
		assert.Equal(t, int64(6000), s.Next())
	})

	t.Run("concurrent callers never collide", func(t *testing.T) {
		s := NewStamper(nil)
		const n = 200
		var mu sync.Mutex
		seen := make(map[int64]bool, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v := s.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, seen, n)
	})
}

func TestUploadKey(t *testing.T) {
	assert.Equal(t, "photos/1700000000000-cat.png", UploadKey("photos", 1700000000000, "cat.png"))
	assert.Equal(t, "videos/1-my_summer_trip.mp4", UploadKey("videos", 1, "my  summer trip.mp4"))
	assert.NotEqual(t, UploadKey("photos", 1, "cat.png"), UploadKey("photos", 2, "cat.png"))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "cat.png", "cat.png"},
		{"whitespace runs", "my \t cat.png", "my_cat.png"},
		{"path segments", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\me\cat.png`, "cat.png"},
		{"control characters", "ca\x00t.png", "cat.png"},
		{"empty", "   ", "file"},
		{"dot dot", "..", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestDerivativeKey(t *testing.T) {
	key := DerivativeKey("photos/123-cat.png", 800, 0, 80, "webp")
	assert.Equal(t, "optimized/800x0-q80/photos/123-cat.png.webp", key)

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, key, DerivativeKey("photos/123-cat.png", 800, 0, 80, "webp"))
	})

	t.Run("distinct tuples", func(t *testing.T) {
		variants := []string{
			DerivativeKey("photos/123-cat.png", 800, 0, 80, "webp"),
			DerivativeKey("photos/123-cat.png", 0, 800, 80, "webp"),
			DerivativeKey("photos/123-cat.png", 800, 0, 81, "webp"),
			DerivativeKey("photos/123-cat.png", 800, 0, 80, "jpeg"),
			DerivativeKey("sponsors/123-cat.png", 800, 0, 80, "webp"),
			DerivativeKey("photos/123-cat.jpg", 800, 0, 80, "webp"),
			DerivativeKey("photos/80", 800, 0, 0, "webp"),
		}
		keys := make(map[string]bool)
		for _, k := range variants {
			keys[k] = true
		}
		assert.Len(t, keys, 7)
	})
}

func TestPosterKey(t *testing.T) {
	assert.Equal(t, "thumbnails/1700000000000-clip.jpg", PosterKey("videos/1700000000000-clip.mp4"))
	assert.Equal(t, "thumbnails/noext.jpg", PosterKey("videos/noext"))
}

func TestIsSafe(t *testing.T) {
	for _, key := range []string{"photos/1-cat.png", "optimized/0x0-q82/photos/1-cat.png.webp", "a"} {
		require.True(t, IsSafe(key), key)
	}
	for _, key := range []string{"", "/photos/cat.png", "photos/../secret", "photos//cat", "photos/./cat", `photos\cat`, "photos/\x00"} {
		require.False(t, IsSafe(key), key)
	}
}
