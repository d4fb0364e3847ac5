// Package artifact names and persists the text artifacts a run produces.
//
// Layout under the store root:
//
//	video/<id>.<ext>
//	transcript/<id>.txt
//	output/<id>_passage.txt
//	output/<id>_corrected.txt
//	output/<id>_<lang>_<variant>.txt
//	output/<id>_dialogue.txt
//
// Every write goes to a temporary file in the destination directory and is
// renamed into place, so a canonical path only ever holds a complete artifact.
package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an artifact type.
type Kind int

const (
	RawTranscript Kind = iota + 1
	Passage
	Corrected
	Translated
	Dialogue
)

// Kinds lists every artifact kind in pipeline order.
var Kinds = []Kind{RawTranscript, Passage, Corrected, Translated, Dialogue}

func (k Kind) String() string {
	switch k {
	case RawTranscript:
		return "raw_transcript"
	case Passage:
		return "passage"
	case Corrected:
		return "corrected"
	case Translated:
		return "translated"
	case Dialogue:
		return "dialogue"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the String form of a kind.
func ParseKind(s string) (Kind, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if k.String() == needle {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown artifact kind %q", s)
}

// Lineage records which stage produced an artifact and from what.
type Lineage struct {
	Stage      string
	Source     Kind
	SourcePath string
}

// Artifact is one persisted unit of text. Values are never modified after
// creation; a later stage produces a new Artifact.
type Artifact struct {
	Kind    Kind
	Content string
	Path    string
	Lineage Lineage
}

// ErrNotFound is returned by Read when no artifact exists at the canonical path.
var ErrNotFound = errors.New("artifact not found")

// ErrLocked is returned by Lock when another process holds the video lock.
var ErrLocked = errors.New("video is locked by another run")

// IOError wraps a filesystem failure while reading or writing an artifact.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("artifact %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
