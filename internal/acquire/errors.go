package acquire

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedURL is returned for URLs without a recognizable video id.
	ErrUnsupportedURL = errors.New("unsupported video url")
	// ErrNoCaptions is returned when a video has no usable subtitles.
	ErrNoCaptions = errors.New("no captions available")
	// ErrRestricted is returned for private, removed or age-gated videos.
	ErrRestricted = errors.New("video is private or restricted")
)

// AcquisitionError reports a failure fetching the video or its transcript.
// It is never retried.
type AcquisitionError struct {
	Op  string
	URL string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition %s failed for %s: %v", e.Op, e.URL, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// restrictedMarkers are yt-dlp stderr fragments for inaccessible videos.
var restrictedMarkers = []string{
	"private video",
	"video unavailable",
	"this video has been removed",
	"sign in to confirm your age",
	"members-only",
	"join this channel",
}

// classify tags a command failure with ErrRestricted when stderr says so.
func classify(err error) error {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}
	lower := strings.ToLower(cmdErr.Stderr)
	for _, marker := range restrictedMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %v", ErrRestricted, err)
		}
	}
	return err
}
