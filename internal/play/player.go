package play

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

// players lists the supported audio players in order of preference.
var players = []string{"vlc", "mpv", "ffplay"}

// Player plays an audiocast stream through the first available local player.
type Player struct {
	lookPath func(string) (string, error)
}

func New() *Player {
	return &Player{lookPath: exec.LookPath}
}

// StreamURL normalizes raw into a stream URL. A bare host:port gets the http
// scheme, and an empty path points at /stream.
func StreamURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("stream URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid stream URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q (use http or https)", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("stream URL %q has no host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/stream"
	}
	return u.String(), nil
}

// Command builds the player invocation for streamURL.
func (p *Player) Command(ctx context.Context, streamURL string) (*exec.Cmd, error) {
	player, err := p.findAudioPlayer()
	if err != nil {
		return nil, fmt.Errorf("no suitable audio player found: %w", err)
	}

	cmd := exec.CommandContext(ctx, player, playerArgs(player, streamURL)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Play blocks until the player exits or ctx is cancelled.
func (p *Player) Play(ctx context.Context, streamURL string) error {
	cmd, err := p.Command(ctx, streamURL)
	if err != nil {
		return err
	}

	slog.Info("Playing stream", "url", streamURL, "player", cmd.Args[0])
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("playback failed with %s: %w", cmd.Args[0], err)
	}
	slog.Info("Playback completed")
	return nil
}

func (p *Player) findAudioPlayer() (string, error) {
	for _, player := range players {
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}

func playerArgs(player, streamURL string) []string {
	switch player {
	case "vlc":
		return []string{"--intf", "dummy", "--play-and-exit", streamURL}
	case "mpv":
		return []string{"--no-video", streamURL}
	default:
		return []string{"-nodisp", "-autoexit", "-loglevel", "warning", streamURL}
	}
}
