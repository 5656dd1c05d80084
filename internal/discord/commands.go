package discord

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keshon/playcord/internal/errs"
	"github.com/keshon/playcord/internal/music/filters"
	"github.com/keshon/playcord/internal/music/player"
	"github.com/keshon/playcord/internal/music/search"
)

const (
	queuePageSize    = 10
	searchResultSize = 5
)

// textSearcher finds songs by free text.
type textSearcher interface {
	SearchByText(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// voiceLocator returns the voice channel a member is connected to.
type voiceLocator func(guildID, userID string) (string, error)

// MessageContext is one text command invocation.
type MessageContext struct {
	Ctx       context.Context
	GuildID   string
	ChannelID string
	UserID    string
	Args      []string
}

type command struct {
	name        string
	aliases     []string
	usage       string
	description string
	// run returns the reply to post; an empty reply posts nothing.
	run func(h *Host, c *MessageContext) (string, error)
}

// Host parses prefixed text messages and runs music commands.
type Host struct {
	prefix string
	music  *player.Manager
	search textSearcher
	locate voiceLocator
	log    zerolog.Logger

	commands map[string]*command
	ordered  []*command
}

func NewHost(prefix string, music *player.Manager, searcher textSearcher, locate voiceLocator, log zerolog.Logger) *Host {
	h := &Host{
		prefix:   prefix,
		music:    music,
		search:   searcher,
		locate:   locate,
		log:      log.With().Str("component", "discord").Logger(),
		commands: make(map[string]*command),
	}
	for _, cmd := range builtinCommands() {
		h.register(cmd)
	}
	return h
}

func (h *Host) register(cmd *command) {
	h.ordered = append(h.ordered, cmd)
	h.commands[cmd.name] = cmd
	for _, alias := range cmd.aliases {
		h.commands[alias] = cmd
	}
}

// parse splits a prefixed message into a lower-cased command name and its
// arguments.
func (h *Host) parse(content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if h.prefix == "" || !strings.HasPrefix(content, h.prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, h.prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// Handle runs the command in content. handled is false when content is not
// addressed to the bot.
func (h *Host) Handle(ctx context.Context, guildID, channelID, userID, content string) (reply string, handled bool, err error) {
	name, args, ok := h.parse(content)
	if !ok {
		return "", false, nil
	}
	cmd, ok := h.commands[name]
	if !ok {
		return "", false, nil
	}

	h.log.Debug().Str("guild", guildID).Str("user", userID).Str("command", cmd.name).Strs("args", args).Msg("running command")
	reply, err = cmd.run(h, &MessageContext{
		Ctx:       ctx,
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    userID,
		Args:      args,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("guild", guildID).Str("command", cmd.name).Msg("command failed")
	}
	return reply, true, err
}

func builtinCommands() []*command {
	return []*command{
		{name: "play", aliases: []string{"p"}, usage: "<link or search terms>", description: "Play a song or playlist, or queue it", run: cmdPlay},
		{name: "join", description: "Join your voice channel", run: cmdJoin},
		{name: "skip", aliases: []string{"s"}, description: "Skip the current song", run: cmdSkip},
		{name: "stop", description: "Stop playback and clear the queue", run: cmdStop},
		{name: "pause", description: "Pause playback", run: cmdPause},
		{name: "resume", aliases: []string{"unpause"}, description: "Resume playback", run: cmdResume},
		{name: "volume", aliases: []string{"vol"}, usage: "[0-100]", description: "Show or set the volume", run: cmdVolume},
		{name: "bitrate", usage: "<bps>", description: "Set the encoder bitrate", run: cmdBitrate},
		{name: "queue", aliases: []string{"q"}, description: "List queued songs", run: cmdQueue},
		{name: "np", aliases: []string{"nowplaying"}, description: "Show the current song and its progress", run: cmdNowPlaying},
		{name: "shuffle", description: "Shuffle the songs after the current one", run: cmdShuffle},
		{name: "filter", aliases: []string{"f"}, usage: "<name> [value]", description: "Toggle an audio filter for the next song", run: cmdFilter},
		{name: "filters", usage: "[reset]", description: "List active filters or reset them", run: cmdFilters},
		{name: "search", usage: "<terms>", description: "Search YouTube", run: cmdSearch},
		{name: "help", aliases: []string{"h"}, description: "List commands", run: cmdHelp},
	}
}

func (h *Host) voiceChannel(c *MessageContext) (string, error) {
	voice, err := h.locate(c.GuildID, c.UserID)
	if err != nil || voice == "" {
		return "", errs.ErrNoChannel
	}
	return voice, nil
}

// reference turns user input into something the player can queue. Free
// text is resolved to the first search hit.
func (h *Host) reference(ctx context.Context, input string) (ref, title string, err error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		if strings.Contains(input, "list=") {
			if info, err := h.music.PlaylistInfo(ctx, input); err == nil && info.Title != "" {
				return input, "playlist " + info.Title, nil
			}
		}
		return input, input, nil
	}
	results, err := h.search.SearchByText(ctx, input, 1)
	if err != nil {
		return "", "", err
	}
	return results[0].URL, results[0].Title, nil
}

func cmdPlay(h *Host, c *MessageContext) (string, error) {
	if len(c.Args) == 0 {
		return "", errs.InvalidInputf("usage: play <link or search terms>")
	}
	voice, err := h.voiceChannel(c)
	if err != nil {
		return "", err
	}
	if _, err := h.music.InitQueue(c.Ctx, c.GuildID, c.ChannelID, voice); err != nil {
		return "", err
	}

	ref, title, err := h.reference(c.Ctx, strings.Join(c.Args, " "))
	if err != nil {
		return "", err
	}

	p := h.music.Player(c.GuildID)
	wasActive := p.Active()
	if err := p.Play(c.Ctx, ref, voice); err != nil {
		return "", err
	}
	if wasActive {
		return fmt.Sprintf("➕ Queued %s (%d in queue)", title, len(p.Songs())), nil
	}
	return "", nil
}

func cmdJoin(h *Host, c *MessageContext) (string, error) {
	voice, err := h.voiceChannel(c)
	if err != nil {
		return "", err
	}
	if _, err := h.music.InitQueue(c.Ctx, c.GuildID, c.ChannelID, voice); err != nil {
		return "", err
	}
	if err := h.music.Player(c.GuildID).Join(c.Ctx, voice); err != nil {
		return "", err
	}
	return "🔈 Joined <#" + voice + ">", nil
}

func cmdSkip(h *Host, c *MessageContext) (string, error) {
	if err := h.music.Player(c.GuildID).Skip(); err != nil {
		return "", err
	}
	return "⏭️ Skipped", nil
}

func cmdStop(h *Host, c *MessageContext) (string, error) {
	return "", h.music.Player(c.GuildID).Stop()
}

func cmdPause(h *Host, c *MessageContext) (string, error) {
	if !h.music.Player(c.GuildID).Pause() {
		return "Nothing is playing", nil
	}
	return "", nil
}

func cmdResume(h *Host, c *MessageContext) (string, error) {
	if !h.music.Player(c.GuildID).Resume() {
		return "Nothing is paused", nil
	}
	return "", nil
}

func cmdVolume(h *Host, c *MessageContext) (string, error) {
	p := h.music.Player(c.GuildID)
	if len(c.Args) == 0 {
		q, ok := p.Snapshot()
		if !ok {
			return "", player.ErrNoQueue
		}
		return fmt.Sprintf("🔊 Volume: %d%%", q.Volume), nil
	}

	v, err := strconv.Atoi(strings.TrimSuffix(c.Args[0], "%"))
	if err != nil {
		return "", errs.InvalidParameterf("volume must be a number, got %q", c.Args[0])
	}
	if err := p.SetVolume(v); err != nil {
		return "", err
	}
	return fmt.Sprintf("🔊 Volume set to %d%%", v), nil
}

func cmdBitrate(h *Host, c *MessageContext) (string, error) {
	if len(c.Args) == 0 {
		return "", errs.InvalidInputf("usage: bitrate <bps>")
	}
	bps, err := strconv.Atoi(c.Args[0])
	if err != nil {
		return "", errs.InvalidParameterf("bitrate must be a number, got %q", c.Args[0])
	}
	if err := h.music.Player(c.GuildID).SetBitrate(bps); err != nil {
		return "", err
	}
	return fmt.Sprintf("Bitrate set to %d bps", bps), nil
}

func cmdQueue(h *Host, c *MessageContext) (string, error) {
	songs := h.music.Player(c.GuildID).Songs()
	if len(songs) == 0 {
		return "The queue is empty", nil
	}

	var sb strings.Builder
	for i, s := range songs[:min(len(songs), queuePageSize)] {
		marker := fmt.Sprintf("%d.", i+1)
		if i == 0 {
			marker = "▶️"
		}
		fmt.Fprintf(&sb, "%s %s `%s`\n", marker, s.Title, s.Duration)
	}
	if rest := len(songs) - queuePageSize; rest > 0 {
		fmt.Fprintf(&sb, "...and %d more", rest)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func cmdNowPlaying(h *Host, c *MessageContext) (string, error) {
	p := h.music.Player(c.GuildID)
	songs := p.Songs()
	if len(songs) == 0 {
		return "", player.ErrNoTracksInQueue
	}
	bar, err := p.ProgressBar(player.DefaultProgressSize)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🎵 %s\n%s `%s`", songs[0].Title, bar, songs[0].Duration), nil
}

func cmdShuffle(h *Host, c *MessageContext) (string, error) {
	if err := h.music.Player(c.GuildID).ShuffleQueue(); err != nil {
		return "", err
	}
	return "🔀 Queue shuffled", nil
}

func cmdFilter(h *Host, c *MessageContext) (string, error) {
	if len(c.Args) == 0 {
		return "", errs.InvalidInputf("usage: filter <name> [value], one of: %s", strings.Join(filters.Names(), ", "))
	}

	name := strings.ToLower(c.Args[0])
	var values []float64
	for _, raw := range c.Args[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", errs.InvalidParameterf("filter value must be a number, got %q", raw)
		}
		values = append(values, v)
	}
	fragment, err := filters.Lookup(name, values...)
	if err != nil {
		return "", err
	}

	p := h.music.Player(c.GuildID)
	q, ok := p.Snapshot()
	if !ok {
		return "", player.ErrNoQueue
	}
	enable := !slices.Contains(q.Filters, fragment)
	if err := p.SetFilter(fragment, enable); err != nil {
		return "", err
	}
	if enable {
		return fmt.Sprintf("🎚️ %s enabled from the next song", name), nil
	}
	return fmt.Sprintf("🎚️ %s disabled from the next song", name), nil
}

func cmdFilters(h *Host, c *MessageContext) (string, error) {
	p := h.music.Player(c.GuildID)
	if len(c.Args) > 0 && strings.EqualFold(c.Args[0], "reset") {
		if err := p.ResetFilters(); err != nil {
			return "", err
		}
		return "🎚️ Filters cleared", nil
	}

	q, ok := p.Snapshot()
	if !ok {
		return "", player.ErrNoQueue
	}
	active := "none"
	if len(q.Filters) > 0 {
		active = "`" + filters.Chain(q.Filters) + "`"
	}
	return fmt.Sprintf("Active: %s\nAvailable: %s", active, strings.Join(filters.Names(), ", ")), nil
}

func cmdSearch(h *Host, c *MessageContext) (string, error) {
	if len(c.Args) == 0 {
		return "", errs.InvalidInputf("usage: search <terms>")
	}
	results, err := h.search.SearchByText(c.Ctx, strings.Join(c.Args, " "), searchResultSize)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. [%s](%s)", i+1, r.Title, r.URL)
		if r.Author != "" {
			sb.WriteString(" by " + r.Author)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func cmdHelp(h *Host, _ *MessageContext) (string, error) {
	var sb strings.Builder
	for _, cmd := range h.ordered {
		sb.WriteString("`" + h.prefix + cmd.name)
		if cmd.usage != "" {
			sb.WriteString(" " + cmd.usage)
		}
		sb.WriteString("` " + cmd.description + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
