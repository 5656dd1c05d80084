package player

import (
	"regexp"
	"strings"
)

var (
	youTubePattern  = regexp.MustCompile(`(youtu\.be/|youtube\.com/(watch\?(.*&)?v=|(embed|v)/))([^?&"'>]+)`)
	audioPattern    = regexp.MustCompile(`(?:(?:https?://)|/).+\.(?:mp3|mp4|m4a|ogg|opus|wav|flac|webm)(?:\?.*)?$`)
	playlistPattern = regexp.MustCompile(`^.*(youtu\.be/|list=)([^#&?]*).*`)
)

func isVideoURL(s string) bool {
	return youTubePattern.MatchString(s)
}

func isAudioURL(s string) bool {
	return audioPattern.MatchString(s)
}

// isPlaylistURL requires the list marker, so plain youtu.be links are videos.
func isPlaylistURL(s string) bool {
	return strings.Contains(s, "list") && playlistPattern.MatchString(s)
}
