package acquire

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// ExtractVideoID returns the YouTube video id of rawURL. Supported forms:
// youtu.be/<id>, youtube.com/watch?v=<id> (www, m, music), /shorts/<id>,
// /embed/<id> and /live/<id>.
func ExtractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	var id string
	host := strings.ToLower(u.Hostname())
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch host {
	case "youtu.be":
		id = segments[0]
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		switch {
		case u.Query().Get("v") != "":
			id = u.Query().Get("v")
		case len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live"):
			id = segments[1]
		}
	}
	if !videoIDRe.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
	return id, nil
}
