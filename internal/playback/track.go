package playback

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// GuildID identifies the guild a queue belongs to.
type GuildID = snowflake.ID

// TrackID identifies one engine-side track instance.
type TrackID = uuid.UUID

const (
	UnknownTitle     = "Unknown title"
	UnknownArtist    = "Unknown artist"
	DefaultThumbnail = "https://media.istockphoto.com/id/1147544809/vector/no-thumbnail-image-vector-graphic.jpg?s=170667a&w=0&k=20&c=v9QBkaN6fXxy1b-wsTQ6QhHUVGLo8JMMxhUBcWzOH0A="
)

// TrackMetadata describes a playable item. It is never modified after NewTrackMetadata.
type TrackMetadata struct {
	Title     string
	Channel   string
	URL       string
	Thumbnail string
	Duration  time.Duration
	Requester snowflake.ID
}

// NewTrackMetadata fills unresolved fields with their defaults.
func NewTrackMetadata(title, channel, url, thumbnail string, duration time.Duration, requester snowflake.ID) TrackMetadata {
	if title == "" {
		title = UnknownTitle
	}
	if channel == "" {
		channel = UnknownArtist
	}
	if thumbnail == "" {
		thumbnail = DefaultThumbnail
	}
	if duration < 0 {
		duration = 0
	}
	return TrackMetadata{
		Title:     title,
		Channel:   channel,
		URL:       url,
		Thumbnail: thumbnail,
		Duration:  duration,
		Requester: requester,
	}
}

// EndReason tells why an engine track stopped producing audio.
type EndReason string

const (
	EndFinished EndReason = "finished"
	EndErrored  EndReason = "errored"
	EndStopped  EndReason = "stopped"
)

// AdvancesQueue reports whether an end of this kind moves the guild to its next track.
// Stopped tracks only end on leave, when the guild state is already gone.
func (r EndReason) AdvancesQueue() bool {
	return r == EndFinished || r == EndErrored
}

// TrackEnd is delivered by the engine once for every Play that was accepted.
type TrackEnd struct {
	Reason EndReason
	Err    error
}

// TrackHandle is the engine's control surface for one track. The engine owns it;
// queue items only reference it.
//
// Play must return as soon as the engine has accepted the instruction. Failures
// that happen later are reported through the OnEnd callback with EndErrored.
// A handle whose run ended may be played again. OnEnd replaces any earlier callback.
type TrackHandle interface {
	ID() TrackID
	Play() error
	Stop() error
	OnEnd(fn func(TrackEnd))
}

// QueueItem pairs metadata with the engine track it describes.
type QueueItem struct {
	Meta   TrackMetadata
	Handle TrackHandle
}

// ID returns the engine track ID, or uuid.Nil for an item without a handle.
func (it QueueItem) ID() TrackID {
	if it.Handle == nil {
		return uuid.Nil
	}
	return it.Handle.ID()
}
