// Package acquire fetches a video and its transcript with yt-dlp.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valpere/vidscribe/internal/logging"
)

// DefaultSubtitleLanguages are requested when no languages are configured.
var DefaultSubtitleLanguages = []string{"en", "en-orig", "en-US", "en-GB"}

// YTDLP drives the yt-dlp binary.
type YTDLP struct {
	path      string
	exec      Executor
	languages []string
	logger    *slog.Logger
}

// Option customizes YTDLP.
type Option func(*YTDLP)

// WithSubtitleLanguages sets the subtitle languages, in preference order.
func WithSubtitleLanguages(langs ...string) Option {
	return func(y *YTDLP) {
		if len(langs) > 0 {
			y.languages = langs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(y *YTDLP) {
		if logger != nil {
			y.logger = logger
		}
	}
}

// NewYTDLP returns a client for the binary at path ("yt-dlp" when empty).
func NewYTDLP(path string, exec Executor, opts ...Option) *YTDLP {
	if strings.TrimSpace(path) == "" {
		path = "yt-dlp"
	}
	if exec == nil {
		exec = NewExecutor()
	}
	y := &YTDLP{
		path:      path,
		exec:      exec,
		languages: DefaultSubtitleLanguages,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// FetchVideo downloads the best progressive MP4 to dir/<videoID>.<ext> and
// returns its path.
func (y *YTDLP) FetchVideo(ctx context.Context, url, dir, videoID string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &AcquisitionError{Op: "fetch video", URL: url, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"-f", "best[ext=mp4][vcodec!=none][acodec!=none]/best[ext=mp4]/best",
		"-o", filepath.Join(dir, videoID+".%(ext)s"),
		"--print", "after_move:filepath",
		url,
	}
	y.logger.Debug("downloading video", slog.String("url", url), slog.String("dir", dir))
	out, err := y.exec.Execute(ctx, y.path, args...)
	if err != nil {
		return fail(classify(err))
	}
	path := lastLine(out)
	if path == "" {
		matches, _ := filepath.Glob(filepath.Join(dir, videoID+".*"))
		if len(matches) == 0 {
			return fail(errors.New("yt-dlp reported no output file"))
		}
		sort.Strings(matches)
		path = matches[0]
	}
	if _, err := os.Stat(path); err != nil {
		return fail(fmt.Errorf("downloaded file missing: %w", err))
	}
	return path, nil
}

// FetchTranscript downloads manual or automatic subtitles as WebVTT and
// returns their plain text.
func (y *YTDLP) FetchTranscript(ctx context.Context, url string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &AcquisitionError{Op: "fetch transcript", URL: url, Err: err}
	}
	tmp, err := os.MkdirTemp("", "vidscribe-subs-*")
	if err != nil {
		return fail(err)
	}
	defer os.RemoveAll(tmp)

	args := []string{
		"--no-playlist",
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-format", "vtt",
		"--sub-langs", strings.Join(y.languages, ","),
		"-o", filepath.Join(tmp, "subs.%(ext)s"),
		url,
	}
	if _, err := y.exec.Execute(ctx, y.path, args...); err != nil {
		return fail(classify(err))
	}

	file, err := y.pickSubtitle(tmp)
	if err != nil {
		return fail(err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fail(err)
	}
	text := ParseVTT(string(data))
	if strings.TrimSpace(text) == "" {
		return fail(ErrNoCaptions)
	}
	y.logger.Debug("transcript fetched", slog.String("file", filepath.Base(file)), slog.Int("chars", len(text)))
	return text, nil
}

// pickSubtitle returns the .vtt file for the most preferred language.
func (y *YTDLP) pickSubtitle(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.vtt"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNoCaptions
	}
	sort.Strings(matches)
	for _, lang := range y.languages {
		for _, m := range matches {
			if strings.HasSuffix(m, "."+lang+".vtt") {
				return m, nil
			}
		}
	}
	return matches[0], nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
