package search

import (
	"context"
	"net/http"

	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
)

type textSource interface {
	name() string
	search(ctx context.Context, query string) ([]Result, error)
}

type youTubeText struct {
	client *ytsearch.Client
}

func newYouTubeText(httpClient *http.Client) youTubeText {
	return youTubeText{client: ytsearch.NewClient(httpClient)}
}

func (youTubeText) name() string { return "youtube" }

func (t youTubeText) search(ctx context.Context, query string) ([]Result, error) {
	res, err := t.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(res.Results))
	for _, v := range res.Results {
		if v.VideoID == "" {
			continue
		}
		out = append(out, Result{URL: WatchURL(v.VideoID), Title: v.Title, Source: "youtube"})
	}
	return out, nil
}

type youTubeMusicText struct{}

func (youTubeMusicText) name() string { return "youtube-music" }

// search ignores ctx: the YouTube Music client has no context support.
func (youTubeMusicText) search(_ context.Context, query string) ([]Result, error) {
	res, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(res.Tracks))
	for _, tr := range res.Tracks {
		if tr.VideoID == "" {
			continue
		}
		r := Result{URL: WatchURL(tr.VideoID), Title: tr.Title, Source: "youtube-music"}
		if len(tr.Artists) > 0 {
			r.Author = tr.Artists[0].Name
		}
		out = append(out, r)
	}
	return out, nil
}
