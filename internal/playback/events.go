package playback

// TrackEvent is a completion notification for one engine track. The set of
// implementations is closed: TrackFinished and TrackErrored.
type TrackEvent interface {
	Guild() GuildID
	Track() TrackID
	trackEvent()
}

// TrackFinished is sent when a track played to its end.
type TrackFinished struct {
	GuildID GuildID
	TrackID TrackID
}

func (e TrackFinished) Guild() GuildID { return e.GuildID }
func (e TrackFinished) Track() TrackID { return e.TrackID }
func (TrackFinished) trackEvent()      {}

// TrackErrored is sent when a track stopped because of a stream or transport error.
// It advances the queue like TrackFinished, but the track is not kept in loop mode.
type TrackErrored struct {
	GuildID GuildID
	TrackID TrackID
	Err     error
}

func (e TrackErrored) Guild() GuildID { return e.GuildID }
func (e TrackErrored) Track() TrackID { return e.TrackID }
func (TrackErrored) trackEvent()      {}

// EventFor converts an engine end notification into a queue event.
// ok is false for ends that must not advance the queue.
func EventFor(guild GuildID, track TrackID, end TrackEnd) (ev TrackEvent, ok bool) {
	switch end.Reason {
	case EndFinished:
		return TrackFinished{GuildID: guild, TrackID: track}, true
	case EndErrored:
		return TrackErrored{GuildID: guild, TrackID: track, Err: end.Err}, true
	default:
		return nil, false
	}
}

// AdvanceFailure describes a next track the engine refused to start after an advance.
type AdvanceFailure struct {
	GuildID GuildID
	Item    QueueItem
	Err     error
}
