// Package detector identifies the natural language of artifact text.
//
// It is advisory: the orchestrator logs a warning when a fetched transcript
// is not in the expected source language, which usually means yt-dlp picked
// the wrong subtitle track.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// MinTextLength is the minimum rune count required to attempt detection.
// Shorter texts produce unreliable results.
const MinTextLength = 20

// sampleLength bounds the text inspected; a transcript prefix is enough.
const sampleLength = 4000

type Detector struct {
	detector lingua.LanguageDetector
}

type options struct {
	languages    []lingua.Language
	highAccuracy bool
}

type Option func(*options)

// WithLanguages restricts detection to langs instead of every language.
func WithLanguages(langs ...lingua.Language) Option {
	return func(o *options) { o.languages = langs }
}

// WithHighAccuracy loads the full n-gram models. Needed for short texts;
// memory use grows with the language set.
func WithHighAccuracy() Option {
	return func(o *options) { o.highAccuracy = true }
}

// New builds a detector, by default over every supported language in low
// accuracy mode. The underlying models are expensive to load; reuse the
// instance.
func New(opts ...Option) *Detector {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var builder lingua.LanguageDetectorBuilder
	if len(o.languages) > 1 {
		builder = lingua.NewLanguageDetectorBuilder().FromLanguages(o.languages...)
	} else {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	}
	if !o.highAccuracy {
		builder = builder.WithLowAccuracyMode()
	}
	return &Detector{detector: builder.Build()}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	text = sample(text)
	if len([]rune(text)) < MinTextLength {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the lower-case ISO 639-1 code of text's language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

func sample(text string) string {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > sampleLength {
		return string(r[:sampleLength])
	}
	return text
}
