package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=TVUibwoVXZc", "TVUibwoVXZc"},
		{"https://youtube.com/watch?v=TVUibwoVXZc&t=42s", "TVUibwoVXZc"},
		{"https://m.youtube.com/watch?v=TVUibwoVXZc", "TVUibwoVXZc"},
		{"https://youtu.be/TVUibwoVXZc?si=abc", "TVUibwoVXZc"},
		{"https://www.youtube.com/shorts/TVUibwoVXZc", "TVUibwoVXZc"},
		{"https://www.youtube.com/embed/TVUibwoVXZc", "TVUibwoVXZc"},
	}
	for _, tt := range tests {
		got, err := ExtractVideoID(tt.url)
		if err != nil {
			t.Errorf("ExtractVideoID(%q): %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExtractVideoIDUnsupported(t *testing.T) {
	for _, u := range []string{
		"",
		"not a url",
		"https://vimeo.com/12345678",
		"https://www.youtube.com/channel/UCabc",
		"https://www.youtube.com/watch?v=../../etc",
	} {
		if _, err := ExtractVideoID(u); !errors.Is(err, ErrUnsupportedURL) {
			t.Errorf("ExtractVideoID(%q): expected ErrUnsupportedURL, got %v", u, err)
		}
	}
}

const sampleVTT = `WEBVTT
Kind: captions
Language: en

NOTE
This is a comment block

00:00:00.000 --> 00:00:02.000 align:start position:0%
hello<00:00:00.500><c> wrold</c>

00:00:02.000 --> 00:00:04.000
hello wrold
this is a tset

1
00:00:04.000 --> 00:00:06.000
this is a tset
&amp; more
`

func TestParseVTT(t *testing.T) {
	got := ParseVTT(sampleVTT)
	want := "hello wrold this is a tset & more"
	if got != want {
		t.Errorf("ParseVTT = %q, want %q", got, want)
	}
}

func TestParseVTTByteOrderMark(t *testing.T) {
	doc := "\uFEFFWEBVTT\n\n00:00.000 --> 00:01.000\nhello\n"
	if got := ParseVTT(doc); got != "hello" {
		t.Errorf("ParseVTT = %q, want %q", got, "hello")
	}
}

func TestParseVTTEmpty(t *testing.T) {
	if got := ParseVTT("WEBVTT\n\n"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

type fakeExecutor struct {
	callCount atomic.Int32
	run       func(args []string) (string, error)
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, args ...string) (string, error) {
	f.callCount.Add(1)
	return f.run(args)
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestFetchTranscript(t *testing.T) {
	exec := &fakeExecutor{run: func(args []string) (string, error) {
		out := argAfter(args, "-o")
		dir := filepath.Dir(out)
		if err := os.WriteFile(filepath.Join(dir, "subs.de.vtt"), []byte("WEBVTT\n\n00:00.000 --> 00:01.000\nhallo\n"), 0o644); err != nil {
			return "", err
		}
		return "", os.WriteFile(filepath.Join(dir, "subs.en.vtt"), []byte(sampleVTT), 0o644)
	}}
	y := NewYTDLP("yt-dlp", exec)

	got, err := y.FetchTranscript(context.Background(), "https://youtu.be/TVUibwoVXZc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "hello wrold") {
		t.Errorf("expected english subtitles, got %q", got)
	}
}

func TestFetchTranscriptPreferredLanguages(t *testing.T) {
	var langs string
	exec := &fakeExecutor{run: func(args []string) (string, error) {
		langs = argAfter(args, "--sub-langs")
		dir := filepath.Dir(argAfter(args, "-o"))
		if err := os.WriteFile(filepath.Join(dir, "subs.en.vtt"), []byte(sampleVTT), 0o644); err != nil {
			return "", err
		}
		return "", os.WriteFile(filepath.Join(dir, "subs.de.vtt"), []byte("WEBVTT\n\n00:00.000 --> 00:01.000\nhallo welt\n"), 0o644)
	}}
	y := NewYTDLP("yt-dlp", exec, WithSubtitleLanguages("de", "en"))

	got, err := y.FetchTranscript(context.Background(), "https://youtu.be/TVUibwoVXZc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hallo welt" {
		t.Errorf("expected german subtitles, got %q", got)
	}
	if langs != "de,en" {
		t.Errorf("unexpected --sub-langs %q", langs)
	}
}

func TestFetchTranscriptNoCaptions(t *testing.T) {
	exec := &fakeExecutor{run: func([]string) (string, error) { return "", nil }}
	_, err := NewYTDLP("", exec).FetchTranscript(context.Background(), "https://youtu.be/TVUibwoVXZc")
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) || !errors.Is(err, ErrNoCaptions) {
		t.Fatalf("expected AcquisitionError wrapping ErrNoCaptions, got %v", err)
	}
	if acqErr.Op != "fetch transcript" {
		t.Errorf("unexpected op %q", acqErr.Op)
	}
}

func TestFetchVideo(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExecutor{run: func(args []string) (string, error) {
		out := strings.Replace(argAfter(args, "-o"), "%(ext)s", "mp4", 1)
		if err := os.WriteFile(out, []byte("video"), 0o644); err != nil {
			return "", err
		}
		return "[info] done\n" + out + "\n", nil
	}}

	got, err := NewYTDLP("yt-dlp", exec).FetchVideo(context.Background(), "https://youtu.be/TVUibwoVXZc", dir, "TVUibwoVXZc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join(dir, "TVUibwoVXZc.mp4") {
		t.Errorf("unexpected path %q", got)
	}
}

func TestFetchVideoRestricted(t *testing.T) {
	exec := &fakeExecutor{run: func([]string) (string, error) {
		return "", &CommandError{Name: "yt-dlp", Stderr: "ERROR: [youtube] x: Private video. Sign in", Err: errors.New("exit status 1")}
	}}
	_, err := NewYTDLP("yt-dlp", exec).FetchVideo(context.Background(), "https://youtu.be/TVUibwoVXZc", t.TempDir(), "TVUibwoVXZc")
	if !errors.Is(err, ErrRestricted) {
		t.Errorf("expected ErrRestricted, got %v", err)
	}
	if exec.callCount.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", exec.callCount.Load())
	}
}
