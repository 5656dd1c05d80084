package queue

import (
	"fmt"
	"time"
)

type Thumbnail struct {
	URL    string
	Width  uint
	Height uint
}

type Channel struct {
	ID    string
	Title string
	URL   string
}

// Song is a resolved track. It is not modified after resolution.
type Song struct {
	ID          string
	URL         string
	Title       string
	Duration    string
	DurationMs  int64
	Description string
	Thumbnails  []Thumbnail
	Channel     Channel
	StreamURL   string
}

// HumanDuration renders d as m:ss or h:mm:ss.
func HumanDuration(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int64(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
