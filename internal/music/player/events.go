package player

import "github.com/keshon/playcord/internal/music/queue"

// Listener receives player notifications. Methods are called from the
// goroutine that caused the event and should return quickly.
type Listener interface {
	TrackStart(textChannel string, song queue.Song)
	TrackFinished(textChannel string, song queue.Song)
	Pause(guildID, textChannel string)
	Resume(guildID, textChannel string)
	Stop(guildID, textChannel string)
	Connected(guildID, textChannel, voiceChannel string)
	Disconnected(guildID, textChannel string)
	Error(err error)
	Debug(msg string)
}

// Hooks adapts optional callbacks to Listener. Nil fields are skipped.
type Hooks struct {
	OnTrackStart    func(textChannel string, song queue.Song)
	OnTrackFinished func(textChannel string, song queue.Song)
	OnPause         func(guildID, textChannel string)
	OnResume        func(guildID, textChannel string)
	OnStop          func(guildID, textChannel string)
	OnConnected     func(guildID, textChannel, voiceChannel string)
	OnDisconnected  func(guildID, textChannel string)
	OnError         func(err error)
	OnDebug         func(msg string)
}

var _ Listener = Hooks{}

func (h Hooks) TrackStart(textChannel string, song queue.Song) {
	if h.OnTrackStart != nil {
		h.OnTrackStart(textChannel, song)
	}
}

func (h Hooks) TrackFinished(textChannel string, song queue.Song) {
	if h.OnTrackFinished != nil {
		h.OnTrackFinished(textChannel, song)
	}
}

func (h Hooks) Pause(guildID, textChannel string) {
	if h.OnPause != nil {
		h.OnPause(guildID, textChannel)
	}
}

func (h Hooks) Resume(guildID, textChannel string) {
	if h.OnResume != nil {
		h.OnResume(guildID, textChannel)
	}
}

func (h Hooks) Stop(guildID, textChannel string) {
	if h.OnStop != nil {
		h.OnStop(guildID, textChannel)
	}
}

func (h Hooks) Connected(guildID, textChannel, voiceChannel string) {
	if h.OnConnected != nil {
		h.OnConnected(guildID, textChannel, voiceChannel)
	}
}

func (h Hooks) Disconnected(guildID, textChannel string) {
	if h.OnDisconnected != nil {
		h.OnDisconnected(guildID, textChannel)
	}
}

func (h Hooks) Error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Hooks) Debug(msg string) {
	if h.OnDebug != nil {
		h.OnDebug(msg)
	}
}
