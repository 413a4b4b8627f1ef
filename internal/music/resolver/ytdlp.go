package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// fieldSep separates metadataTemplate fields. Titles may contain tabs but never
// the ASCII unit separator.
const fieldSep = "\x1f"

// metadataTemplate is the --print template; parseMetadataLine reads it back.
const metadataTemplate = "%(webpage_url)s" + fieldSep + "%(title)s" + fieldSep + "%(uploader)s" + fieldSep + "%(duration)s" + fieldSep + "%(thumbnail)s"

var ErrNoResult = errors.New("yt-dlp returned no result")

type ytdlpEntry struct {
	URL       string
	Title     string
	Uploader  string
	Thumbnail string
	Duration  time.Duration
}

func (r *Resolver) ytdlp() *ytdlp.Command {
	cmd := ytdlp.New().
		NoWarnings().
		IgnoreConfig()
	if r.proxy != "" {
		cmd.Proxy(r.proxy)
	}
	return cmd
}

// ytdlpSearch returns the first search hit for q.
func (r *Resolver) ytdlpSearch(ctx context.Context, q string) (ytdlpEntry, error) {
	res, err := r.ytdlp().
		Print(metadataTemplate).
		PlaylistItems("1").
		Run(ctx, "ytsearch1:"+q)
	if err != nil {
		return ytdlpEntry{}, ytdlpError(res, err)
	}
	return firstEntry(res.Stdout)
}

// ytdlpMetadata reads metadata of a single URL without downloading it.
func (r *Resolver) ytdlpMetadata(ctx context.Context, u string) (ytdlpEntry, error) {
	res, err := r.ytdlp().
		Print(metadataTemplate).
		NoPlaylist().
		Run(ctx, "--skip-download", u)
	if err != nil {
		return ytdlpEntry{}, ytdlpError(res, err)
	}
	e, err := firstEntry(res.Stdout)
	if err != nil {
		return ytdlpEntry{}, err
	}
	if e.URL == "" {
		e.URL = u
	}
	return e, nil
}

// ytdlpStreamURL returns a direct media URL ffmpeg can open.
func (r *Resolver) ytdlpStreamURL(ctx context.Context, u string) (string, error) {
	res, err := r.ytdlp().
		Format("bestaudio/best").
		Print("%(url)s").
		NoPlaylist().
		Run(ctx, "--skip-download", u)
	if err != nil {
		return "", ytdlpError(res, err)
	}
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line = strings.TrimSpace(line); IsURL(line) {
			return line, nil
		}
	}
	return "", ErrNoResult
}

func firstEntry(stdout string) (ytdlpEntry, error) {
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if e, ok := parseMetadataLine(line); ok {
			return e, nil
		}
	}
	return ytdlpEntry{}, ErrNoResult
}

// parseMetadataLine parses one line printed with metadataTemplate. yt-dlp
// prints "NA" for fields the extractor does not know.
func parseMetadataLine(line string) (ytdlpEntry, bool) {
	parts := strings.Split(strings.TrimRight(line, "\r"), fieldSep)
	if len(parts) < 5 {
		return ytdlpEntry{}, false
	}
	for i := range parts {
		if parts[i] == "NA" {
			parts[i] = ""
		}
	}

	var d time.Duration
	if secs, err := strconv.ParseFloat(parts[3], 64); err == nil && secs > 0 {
		d = time.Duration(secs * float64(time.Second))
	}
	return ytdlpEntry{
		URL:       parts[0],
		Title:     parts[1],
		Uploader:  parts[2],
		Duration:  d,
		Thumbnail: parts[4],
	}, true
}

// ytdlpError adds the last stderr line to err, which is where yt-dlp explains itself.
func ytdlpError(res *ytdlp.Result, err error) error {
	if res == nil || strings.TrimSpace(res.Stderr) == "" {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(res.Stderr), "\n")
	return fmt.Errorf("yt-dlp: %s: %w", strings.TrimSpace(lines[len(lines)-1]), err)
}
