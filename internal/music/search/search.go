// Package search resolves YouTube links and text queries into songs.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/keshon/playcord/internal/errs"
	"github.com/keshon/playcord/internal/music/queue"
)

const (
	MaxPlaylistEntries = 100
	DefaultMaxResults  = 10
)

// Result is one hit of a text search.
type Result struct {
	URL    string
	Title  string
	Author string
	Source string
}

type PlaylistInfo struct {
	Title       string
	Description string
}

// videoClient is the part of the YouTube client used here.
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
}

type Options struct {
	// Proxy routes lookups through an http, https or socks5 proxy.
	Proxy string
	// Rate is the initial number of lookups per second.
	Rate float64
	Log  zerolog.Logger
}

// Searcher resolves songs with the native YouTube client and falls back to
// yt-dlp when that fails. Text search uses YouTube with a YouTube Music fallback.
type Searcher struct {
	client  videoClient
	ytdlp   fallback
	text    []textSource
	limiter *AdaptiveLimiter
	log     zerolog.Logger
}

func New(opts Options) (*Searcher, error) {
	log := opts.Log.With().Str("component", "search").Logger()

	httpClient, err := newHTTPClient(opts.Proxy, log)
	if err != nil {
		return nil, err
	}

	r := rate.Limit(opts.Rate)
	if r <= 0 {
		r = 5
	}

	return &Searcher{
		client:  &youtube.Client{HTTPClient: httpClient},
		ytdlp:   ytdlpFallback{proxy: opts.Proxy},
		text:    []textSource{newYouTubeText(httpClient), youTubeMusicText{}},
		limiter: NewAdaptiveLimiter(r, 0.5, r*4, 1, 0.5),
		log:     log,
	}, nil
}

// Resolve turns a video link into a playable song.
func (s *Searcher) Resolve(ctx context.Context, rawURL string) (queue.Song, error) {
	id := VideoID(rawURL)
	if id == "" {
		return queue.Song{}, errs.InvalidInputf("%q is not a YouTube video link", rawURL)
	}

	song, err := s.resolveNative(ctx, id)
	if err == nil {
		return song, nil
	}
	if ctx.Err() != nil {
		return queue.Song{}, ctx.Err()
	}

	s.log.Warn().Err(err).Str("id", id).Msg("native lookup failed, trying yt-dlp")
	song, ferr := s.ytdlp.video(ctx, WatchURL(id))
	if ferr != nil {
		return queue.Song{}, errs.NotFoundf("could not resolve %s", id).WithCause(errors.Join(err, ferr))
	}
	return song, nil
}

func (s *Searcher) resolveNative(ctx context.Context, id string) (queue.Song, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return queue.Song{}, err
	}
	video, err := s.client.GetVideoContext(ctx, id)
	s.limiter.Observe(err)
	if err != nil {
		return queue.Song{}, fmt.Errorf("youtube client error: %w", err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return queue.Song{}, errors.New("no audio formats found for video")
	}

	streamURL, err := s.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return queue.Song{}, fmt.Errorf("get stream URL error: %w", err)
	}

	return songFromVideo(video, streamURL), nil
}

// ResolvePlaylist lists up to MaxPlaylistEntries entries of a playlist.
// Entries carry metadata only; resolve each before playing it.
func (s *Searcher) ResolvePlaylist(ctx context.Context, rawURL string) ([]queue.Song, error) {
	pl, err := s.playlist(ctx, rawURL)
	if err == nil {
		return playlistSongs(pl), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.log.Warn().Err(err).Str("url", rawURL).Msg("native playlist lookup failed, trying yt-dlp")
	songs, ferr := s.ytdlp.playlist(ctx, rawURL, MaxPlaylistEntries)
	if ferr != nil {
		return nil, errs.NotFoundf("could not expand playlist").WithCause(errors.Join(err, ferr))
	}
	return songs, nil
}

func (s *Searcher) PlaylistInfo(ctx context.Context, rawURL string) (PlaylistInfo, error) {
	pl, err := s.playlist(ctx, rawURL)
	if err != nil {
		return PlaylistInfo{}, err
	}
	return PlaylistInfo{Title: pl.Title, Description: pl.Description}, nil
}

func (s *Searcher) playlist(ctx context.Context, rawURL string) (*youtube.Playlist, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pl, err := s.client.GetPlaylistContext(ctx, rawURL)
	s.limiter.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("youtube playlist error: %w", err)
	}
	return pl, nil
}

// SearchByText returns up to maxResults hits for query, trying each text
// source until one returns something.
func (s *Searcher) SearchByText(ctx context.Context, query string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.InvalidInputf("search query is empty")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var errList []error
	for _, src := range s.text {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		results, err := src.search(ctx, query)
		s.limiter.Observe(err)
		if err != nil {
			s.log.Debug().Err(err).Str("source", src.name()).Msg("text search failed")
			errList = append(errList, fmt.Errorf("%s: %w", src.name(), err))
			continue
		}
		if len(results) == 0 {
			continue
		}
		return dedupe(results, maxResults), nil
	}

	if len(errList) > 0 {
		return nil, errs.NotFoundf("no results for %q", query).WithCause(errors.Join(errList...))
	}
	return nil, errs.NotFoundf("no results for %q", query)
}

func dedupe(results []Result, limit int) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, min(limit, len(results)))
	for _, r := range results {
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

// bestAudioFormat prefers audio-only formats and then the highest bitrate.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	candidates := formats.WithAudioChannels()
	if len(candidates) == 0 {
		return nil
	}

	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b youtube.Format) int {
		aAudio, bAudio := strings.HasPrefix(a.MimeType, "audio/"), strings.HasPrefix(b.MimeType, "audio/")
		if aAudio != bAudio {
			if aAudio {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.Bitrate, a.Bitrate)
	})
	return &sorted[0]
}

func songFromVideo(v *youtube.Video, streamURL string) queue.Song {
	thumbs := make([]queue.Thumbnail, 0, len(v.Thumbnails))
	for _, t := range v.Thumbnails {
		thumbs = append(thumbs, queue.Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}

	channel := queue.Channel{ID: v.ChannelID, Title: v.Author}
	if v.ChannelID != "" {
		channel.URL = channelURLPrefix + v.ChannelID
	}

	return queue.Song{
		ID:          v.ID,
		URL:         WatchURL(v.ID),
		Title:       v.Title,
		Duration:    queue.HumanDuration(v.Duration),
		DurationMs:  v.Duration.Milliseconds(),
		Description: v.Description,
		Thumbnails:  thumbs,
		Channel:     channel,
		StreamURL:   streamURL,
	}
}

func playlistSongs(pl *youtube.Playlist) []queue.Song {
	entries := pl.Videos
	if len(entries) > MaxPlaylistEntries {
		entries = entries[:MaxPlaylistEntries]
	}

	songs := make([]queue.Song, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.ID == "" {
			continue
		}
		thumbs := make([]queue.Thumbnail, 0, len(e.Thumbnails))
		for _, t := range e.Thumbnails {
			thumbs = append(thumbs, queue.Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
		}
		songs = append(songs, queue.Song{
			ID:         e.ID,
			URL:        WatchURL(e.ID),
			Title:      e.Title,
			Duration:   queue.HumanDuration(e.Duration),
			DurationMs: e.Duration.Milliseconds(),
			Thumbnails: thumbs,
			Channel:    queue.Channel{Title: e.Author},
		})
	}
	return songs
}
