package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keshon/groovebox/internal/music"
	"github.com/keshon/groovebox/pkg/retrylimit"
	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const (
	DefaultAttempts = 3
	DefaultRPS      = 5
)

type Config struct {
	Attempts int     // lookups per query before giving up
	RPS      float64 // starting rate shared by all lookups
	Proxy    string  // optional proxy for YouTube and yt-dlp requests
}

// Resolver turns queries into track metadata and source URLs into stream URLs.
// YouTube video links go through the kkdai client; searches and every other
// link go through yt-dlp.
type Resolver struct {
	yt       *youtube.Client
	lim      *retrylimit.AdaptiveLimiter
	attempts int
	proxy    string
	log      *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "resolver"))
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultRPS
	}
	rps := rate.Limit(cfg.RPS)
	return &Resolver{
		yt:       newYouTubeClient(cfg.Proxy, log),
		lim:      retrylimit.NewAdaptiveLimiter(rps, 1, rps*4, 1, 0.5),
		attempts: cfg.Attempts,
		proxy:    cfg.Proxy,
		log:      log,
	}
}

// Resolve implements music.Resolver.
func (r *Resolver) Resolve(ctx context.Context, query string) (music.Resolved, error) {
	query = strings.TrimSpace(query)
	var out music.Resolved

	err := r.retry(ctx, func() error {
		var err error
		switch {
		case IsYouTubeVideoURL(query):
			out, err = r.resolveYouTube(ctx, CleanVideoURL(query))
		case IsURL(query):
			out, err = r.resolveLink(ctx, query)
		default:
			out, err = r.resolveSearch(ctx, query)
		}
		return err
	})
	if err != nil {
		return music.Resolved{}, err
	}
	r.log.Debug("Resolved", slog.String("query", query), slog.String("title", out.Title), slog.String("url", out.SourceURL))
	return out, nil
}

// StreamURL returns a direct media URL for a source URL returned by Resolve.
func (r *Resolver) StreamURL(ctx context.Context, sourceURL string) (string, error) {
	var link string
	err := r.retry(ctx, func() error {
		var err error
		if IsYouTubeVideoURL(sourceURL) {
			link, err = r.youtubeStreamURL(ctx, sourceURL)
			if err == nil {
				return nil
			}
			r.log.Warn("kkdai stream lookup failed, trying yt-dlp", slog.String("url", sourceURL), slog.Any("err", err))
		}
		link, err = r.ytdlpStreamURL(ctx, sourceURL)
		return err
	})
	return link, err
}

func (r *Resolver) retry(ctx context.Context, fn func() error) error {
	cfg := retrylimit.DefaultRetryConfig()
	cfg.MaxAttempts = r.attempts
	cfg.Logger = r.log
	cfg.OnRetry = func(attempt int, err error) {
		r.log.Warn("Lookup failed, retrying", slog.Int("attempt", attempt), slog.Any("err", err))
	}
	err := retrylimit.WithRetryConfig(ctx, fn, r.lim, cfg)
	var fatal *retrylimit.FatalError
	if errors.As(err, &fatal) {
		return fatal.Err
	}
	return err
}

func (r *Resolver) resolveYouTube(ctx context.Context, u string) (music.Resolved, error) {
	id, err := ExtractVideoID(u)
	if err != nil {
		return music.Resolved{}, retrylimit.Fatal(err)
	}
	video, err := r.yt.GetVideoContext(ctx, id)
	if err != nil {
		r.log.Warn("kkdai metadata lookup failed, trying yt-dlp", slog.String("video", id), slog.Any("err", err))
		return r.resolveLink(ctx, u)
	}

	thumb := ""
	if len(video.Thumbnails) > 0 {
		best := lo.MaxBy(video.Thumbnails, func(a, b youtube.Thumbnail) bool {
			return a.Width*a.Height > b.Width*b.Height
		})
		thumb = best.URL
	}
	return music.Resolved{
		Title:     video.Title,
		Channel:   video.Author,
		SourceURL: u,
		Thumbnail: thumb,
		Duration:  video.Duration,
	}, nil
}

func (r *Resolver) resolveLink(ctx context.Context, u string) (music.Resolved, error) {
	e, err := r.ytdlpMetadata(ctx, u)
	if err != nil {
		return music.Resolved{}, err
	}
	return e.resolved(), nil
}

func (r *Resolver) resolveSearch(ctx context.Context, q string) (music.Resolved, error) {
	e, err := r.ytdlpSearch(ctx, q)
	if errors.Is(err, ErrNoResult) {
		return music.Resolved{}, retrylimit.Fatal(fmt.Errorf("nothing found for %q", q))
	}
	if err != nil {
		return music.Resolved{}, err
	}
	return e.resolved(), nil
}

func (r *Resolver) youtubeStreamURL(ctx context.Context, u string) (string, error) {
	id, err := ExtractVideoID(u)
	if err != nil {
		return "", err
	}
	video, err := r.yt.GetVideoContext(ctx, id)
	if err != nil {
		return "", fmt.Errorf("youtube client: %w", err)
	}
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", errors.New("no audio formats found for video")
	}
	link, err := r.yt.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return "", fmt.Errorf("get stream URL: %w", err)
	}
	return link, nil
}

func (e ytdlpEntry) resolved() music.Resolved {
	return music.Resolved{
		Title:     e.Title,
		Channel:   e.Uploader,
		SourceURL: e.URL,
		Thumbnail: e.Thumbnail,
		Duration:  e.Duration,
	}
}
