package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/keshon/playcord/internal/music/queue"
)

// fallback resolves through an external tool when the native client fails.
type fallback interface {
	video(ctx context.Context, url string) (queue.Song, error)
	playlist(ctx context.Context, url string, limit int) ([]queue.Song, error)
}

type ytdlpFallback struct {
	proxy string
}

func (f ytdlpFallback) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings().IgnoreConfig()
	if f.proxy != "" {
		cmd = cmd.Proxy(f.proxy)
	}
	return cmd
}

func (f ytdlpFallback) video(ctx context.Context, url string) (queue.Song, error) {
	res, err := f.command().
		Format("bestaudio[ext=webm]/bestaudio").
		Print("%(id)s\t%(title)s\t%(uploader)s\t%(channel_id)s\t%(duration)s\t%(url)s").
		Run(ctx, "--skip-download", url)
	if err != nil {
		return queue.Song{}, fmt.Errorf("yt-dlp error: %w", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if song, ok := parseVideoLine(line); ok {
			return song, nil
		}
	}
	return queue.Song{}, errors.New("yt-dlp returned no metadata")
}

func (f ytdlpFallback) playlist(ctx context.Context, url string, limit int) ([]queue.Song, error) {
	res, err := f.command().
		FlatPlaylist().
		Print("%(id)s\t%(title)s\t%(uploader)s\t%(duration)s").
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp error: %w", err)
	}
	return parsePlaylistLines(res.Stdout, limit), nil
}

// parseVideoLine reads id, title, uploader, channel id, duration, stream url.
func parseVideoLine(line string) (queue.Song, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < 6 || parts[0] == "" || parts[5] == "" {
		return queue.Song{}, false
	}

	d := parseSeconds(parts[4])
	channel := queue.Channel{Title: parts[2]}
	if id := parts[3]; id != "" && id != "NA" {
		channel.ID = id
		channel.URL = channelURLPrefix + id
	}

	return queue.Song{
		ID:         parts[0],
		URL:        WatchURL(parts[0]),
		Title:      parts[1],
		Duration:   queue.HumanDuration(d),
		DurationMs: d.Milliseconds(),
		Channel:    channel,
		StreamURL:  parts[5],
	}, true
}

// parsePlaylistLines reads id, title, uploader, duration per line.
func parsePlaylistLines(out string, limit int) []queue.Song {
	songs := make([]queue.Song, 0)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 4 || !videoIDPattern.MatchString(parts[0]) {
			continue
		}
		d := parseSeconds(parts[3])
		songs = append(songs, queue.Song{
			ID:         parts[0],
			URL:        WatchURL(parts[0]),
			Title:      parts[1],
			Duration:   queue.HumanDuration(d),
			DurationMs: d.Milliseconds(),
			Channel:    queue.Channel{Title: parts[2]},
		})
		if len(songs) == limit {
			break
		}
	}
	return songs
}

// parseSeconds accepts yt-dlp's duration field, which may be fractional or "NA".
func parseSeconds(s string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s) + "s")
	if err != nil || d < 0 {
		return 0
	}
	return d
}
