package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// AudioDownloader fetches a video's audio track to a local file. cleanup
// removes whatever the download left on disk and is safe to call once.
type AudioDownloader interface {
	Download(ctx context.Context, videoURL string) (path string, cleanup func(), err error)
}

// YTDLPAudio extracts audio with `yt-dlp -x`.
type YTDLPAudio struct {
	Path    string // binary, defaults to "yt-dlp"
	Cookies string
	TempDir string // parent for per-download directories, defaults to os.TempDir()
	Format  string // audio codec, defaults to mp3
	Runner  CommandRunner
}

func (a *YTDLPAudio) Download(ctx context.Context, videoURL string) (string, func(), error) {
	dir, err := os.MkdirTemp(a.TempDir, "studykit-audio-*")
	if err != nil {
		return "", nil, fmt.Errorf("audio temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	format := a.Format
	if format == "" {
		format = "mp3"
	}
	bin := a.Path
	if bin == "" {
		bin = "yt-dlp"
	}
	runner := a.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	args := []string{"-x", "--audio-format", format, "--no-playlist", "--no-warnings",
		"-o", filepath.Join(dir, "audio.%(ext)s")}
	if a.Cookies != "" {
		args = append(args, "--cookies", a.Cookies)
	}
	args = append(args, videoURL)

	if _, err := runner.Run(ctx, bin, args...); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("yt-dlp audio: %w", err)
	}
	path := filepath.Join(dir, "audio."+format)
	if _, err := os.Stat(path); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("yt-dlp audio: %w", err)
	}
	return path, cleanup, nil
}
