package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&list=PL123&t=42", "dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		got, err := ExtractVideoID(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}

	for _, bad := range []string{
		"https://www.youtube.com/playlist?list=PL123",
		"https://www.youtube.com/@someone",
		"https://soundcloud.com/artist/track",
		"https://youtu.be/",
	} {
		_, err := ExtractVideoID(bad)
		assert.ErrorIs(t, err, ErrUnsupportedURL, bad)
	}
}

func TestIsYouTubeVideoURL(t *testing.T) {
	assert.True(t, IsYouTubeVideoURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, IsYouTubeVideoURL("https://youtu.be/dQw4w9WgXcQ"))
	assert.False(t, IsYouTubeVideoURL("https://www.youtube.com/playlist?list=PL123"))
	assert.False(t, IsYouTubeVideoURL("https://vimeo.com/123"))
	assert.False(t, IsYouTubeVideoURL("rick astley"))
}

func TestCleanVideoURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		CleanVideoURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=RD123&start_radio=1"))
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", CleanVideoURL("https://youtu.be/dQw4w9WgXcQ?si=abc"))
	assert.Equal(t, "https://soundcloud.com/a/b?x=1", CleanVideoURL("https://soundcloud.com/a/b?x=1"))
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com"))
	assert.False(t, IsURL("example.com"))
}
