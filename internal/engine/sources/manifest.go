package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/engine/subtitle"
)

// ManifestSource lists the caption tracks available for a video.
type ManifestSource interface {
	Manifest(ctx context.Context, videoURL string) (subtitle.Manifest, error)
}

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. Cancelling ctx kills the process.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := engine.TruncateRunes(strings.TrimSpace(stderr.String()), 300, "...")
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// YTDLP reads the caption manifest from `yt-dlp -J`. Language asks the tool
// to materialize that language's auto captions; the manifest still lists
// every track already available.
type YTDLP struct {
	Path     string // binary, defaults to "yt-dlp"
	Cookies  string // optional cookies.txt
	Language string
	Runner   CommandRunner
}

func (y *YTDLP) binary() string {
	if y.Path == "" {
		return "yt-dlp"
	}
	return y.Path
}

func (y *YTDLP) runner() CommandRunner {
	if y.Runner == nil {
		return ExecRunner{}
	}
	return y.Runner
}

type ytdlpSub struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type ytdlpInfo struct {
	ID                string                `json:"id"`
	Title             string                `json:"title"`
	Duration          float64               `json:"duration"`
	Subtitles         map[string][]ytdlpSub `json:"subtitles"`
	AutomaticCaptions map[string][]ytdlpSub `json:"automatic_captions"`
}

func (y *YTDLP) Manifest(ctx context.Context, videoURL string) (subtitle.Manifest, error) {
	args := []string{"-J", "--skip-download", "--no-warnings", "--no-playlist"}
	if y.Language != "" {
		args = append(args, "--write-auto-subs", "--sub-langs", y.Language, "--sub-format", "vtt")
	}
	if y.Cookies != "" {
		args = append(args, "--cookies", y.Cookies)
	}
	args = append(args, videoURL)

	out, err := y.runner().Run(ctx, y.binary(), args...)
	if err != nil {
		return subtitle.Manifest{}, fmt.Errorf("yt-dlp manifest: %w", err)
	}
	return parseYTDLPInfo(out)
}

func parseYTDLPInfo(data []byte) (subtitle.Manifest, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return subtitle.Manifest{}, fmt.Errorf("yt-dlp manifest: decode: %w", err)
	}
	return subtitle.Manifest{
		VideoID:  info.ID,
		Title:    info.Title,
		Duration: info.Duration,
		Human:    ytdlpTracks(info.Subtitles, subtitle.KindHuman),
		Auto:     ytdlpTracks(info.AutomaticCaptions, subtitle.KindAuto),
	}, nil
}

func ytdlpTracks(in map[string][]ytdlpSub, kind subtitle.Kind) map[string][]subtitle.Track {
	out := make(map[string][]subtitle.Track, len(in))
	for lang, subs := range in {
		for _, s := range subs {
			if s.URL == "" || s.Ext == "" {
				continue
			}
			out[lang] = append(out[lang], subtitle.Track{
				Language: lang,
				Kind:     kind,
				Format:   strings.ToLower(s.Ext),
				URL:      s.URL,
			})
		}
	}
	return out
}

// FallbackManifest asks each source in turn and returns the first manifest
// that lists any track. A trackless manifest is still returned when no
// source does better, so the caller keeps the video duration.
type FallbackManifest []ManifestSource

func (f FallbackManifest) Manifest(ctx context.Context, videoURL string) (subtitle.Manifest, error) {
	var (
		errs     []error
		fallback *subtitle.Manifest
	)
	for _, src := range f {
		m, err := src.Manifest(ctx, videoURL)
		if err != nil {
			if ctx.Err() != nil {
				return subtitle.Manifest{}, ctx.Err()
			}
			slog.Debug("manifest source failed", slog.String("url", videoURL), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		if hasTracks(m) {
			return m, nil
		}
		if fallback == nil {
			fallback = &m
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	if len(errs) == 0 {
		return subtitle.Manifest{}, errors.New("no manifest source configured")
	}
	return subtitle.Manifest{}, errors.Join(errs...)
}

func hasTracks(m subtitle.Manifest) bool {
	return len(m.Human) > 0 || len(m.Auto) > 0
}
