// Package prompt supplies the system instructions for each pipeline stage.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// Template names, one per stage.
const (
	Extract   = "system_extract"
	Modify    = "system_modify"
	Translate = "system_translate"
	Dialogue  = "system_dialogue"
)

//go:embed templates/*.txt
var defaultFS embed.FS

// Names returns every template name the pipeline looks up.
func Names() []string {
	return []string{Extract, Modify, Translate, Dialogue}
}

// Provider loads a template by name.
type Provider interface {
	Load(name string) (string, error)
}

// MissingTemplateError reports a template that does not exist or is empty.
type MissingTemplateError struct {
	Name   string
	Source string
	Err    error
}

func (e *MissingTemplateError) Error() string {
	msg := fmt.Sprintf("prompt template %q not found", e.Name)
	if e.Source != "" {
		msg += " in " + e.Source
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingTemplateError) Unwrap() error { return e.Err }

// FSProvider reads <name>.txt from a filesystem.
type FSProvider struct {
	fsys   fs.FS
	source string
}

// NewFSProvider wraps fsys; source names it in error messages.
func NewFSProvider(fsys fs.FS, source string) *FSProvider {
	return &FSProvider{fsys: fsys, source: source}
}

// NewDirProvider reads templates from dir on disk.
func NewDirProvider(dir string) *FSProvider {
	return NewFSProvider(os.DirFS(dir), dir)
}

// Embedded returns the templates compiled into the binary.
func Embedded() *FSProvider {
	sub, err := fs.Sub(defaultFS, "templates")
	if err != nil {
		// fs.Sub only fails on an invalid path.
		panic(err)
	}
	return NewFSProvider(sub, "embedded templates")
}

func (p *FSProvider) Load(name string) (string, error) {
	if !validName(name) {
		return "", &MissingTemplateError{Name: name, Source: p.source, Err: errors.New("invalid template name")}
	}
	data, err := fs.ReadFile(p.fsys, name+".txt")
	if err != nil {
		return "", &MissingTemplateError{Name: name, Source: p.source, Err: err}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", &MissingTemplateError{Name: name, Source: p.source, Err: errors.New("template is empty")}
	}
	return text, nil
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && path.Clean(name) == name && name != ".."
}

// MapProvider serves templates from memory.
type MapProvider map[string]string

func (m MapProvider) Load(name string) (string, error) {
	text := strings.TrimSpace(m[name])
	if text == "" {
		return "", &MissingTemplateError{Name: name, Source: "memory"}
	}
	return text, nil
}

// Layered tries each provider in order and returns the first template found.
// Only MissingTemplateError falls through to the next provider.
type Layered []Provider

func (l Layered) Load(name string) (string, error) {
	var last error = &MissingTemplateError{Name: name}
	for _, p := range l {
		text, err := p.Load(name)
		if err == nil {
			return text, nil
		}
		var missing *MissingTemplateError
		if !errors.As(err, &missing) {
			return "", err
		}
		last = err
	}
	return "", last
}

// Check loads every template name and reports all that are missing.
func Check(p Provider) (map[string]string, error) {
	found := make(map[string]string, len(Names()))
	var missing []string
	for _, name := range Names() {
		text, err := p.Load(name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		found[name] = text
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return found, &MissingTemplateError{Name: strings.Join(missing, ", ")}
	}
	return found, nil
}
