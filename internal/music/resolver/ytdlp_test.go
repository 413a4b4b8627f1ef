package resolver

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keshon/groovebox/pkg/retrylimit"
	"github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadataLine(t *testing.T) {
	e, ok := parseMetadataLine(metadataLine("https://www.youtube.com/watch?v=dQw4w9WgXcQ", "Never Gonna Give You Up", "Rick Astley", "212.0", "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"))
	require.True(t, ok)

	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", e.URL)
	assert.Equal(t, "Never Gonna Give You Up", e.Title)
	assert.Equal(t, "Rick Astley", e.Uploader)
	assert.Equal(t, 212*time.Second, e.Duration)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg", e.Thumbnail)
}

func TestParseMetadataLine_UnknownFields(t *testing.T) {
	e, ok := parseMetadataLine(metadataLine("https://radio.example/live", "Live stream", "NA", "NA", "NA"))
	require.True(t, ok)

	assert.Empty(t, e.Uploader)
	assert.Empty(t, e.Thumbnail)
	assert.Zero(t, e.Duration)

	resolved := e.resolved()
	assert.Equal(t, "Live stream", resolved.Title)
	assert.Equal(t, "https://radio.example/live", resolved.SourceURL)
}

func TestParseMetadataLine_TabInTitle(t *testing.T) {
	e, ok := parseMetadataLine(metadataLine("https://example.com/a", "Side A\tSide B", "Band", "61", "https://example.com/a.jpg"))
	require.True(t, ok)

	assert.Equal(t, "Side A\tSide B", e.Title)
	assert.Equal(t, "Band", e.Uploader)
	assert.Equal(t, 61*time.Second, e.Duration)
	assert.Equal(t, "https://example.com/a.jpg", e.Thumbnail)
}

func TestParseMetadataLine_Malformed(t *testing.T) {
	_, ok := parseMetadataLine("just a title")
	assert.False(t, ok)

	_, ok = parseMetadataLine("https://a\tb\tc\td\te")
	assert.False(t, ok)

	_, err := firstEntry("\n\n")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestYtdlpError_UsesLastStderrLine(t *testing.T) {
	cause := errors.New("exit status 1")

	err := ytdlpError(&ytdlp.Result{Stderr: "WARNING: something\nERROR: Video unavailable\n"}, cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ERROR: Video unavailable")

	err = ytdlpError(nil, cause)
	assert.ErrorIs(t, err, cause)
}

func TestRetry_FatalErrorStopsAndUnwraps(t *testing.T) {
	r := New(Config{Attempts: 5, RPS: 100}, nil)
	calls := 0

	err := r.retry(t.Context(), func() error {
		calls++
		return &retrylimit.FatalError{Err: ErrUnsupportedURL}
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrUnsupportedURL)
	var fatal *retrylimit.FatalError
	assert.False(t, errors.As(err, &fatal))
}

func metadataLine(fields ...string) string {
	return strings.Join(fields, fieldSep)
}
