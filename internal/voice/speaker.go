// Package voice drives a platform speech synthesizer so that prompts are
// spoken one at a time in the best available Spanish voice.
package voice

import (
	"strings"
	"sync"

	"github.com/voxform/voxform/internal/logger"
	"go.uber.org/zap"
)

type Voice struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

type Utterance struct {
	Text string
	// Voice is nil when the platform default should be used.
	Voice *Voice
	Lang  string
}

// Synthesizer is the platform text-to-speech engine.
type Synthesizer interface {
	Voices() []Voice
	Speak(u Utterance) error
	Cancel()
}

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventEnded     EventKind = "ended"
	EventCancelled EventKind = "cancelled"
)

type Event struct {
	Kind EventKind
	Text string
}

const eventBuffer = 16

// Speaker gates a Synthesizer behind a readiness flag and keeps at most one
// utterance in flight.
type Speaker struct {
	mu       sync.Mutex
	synth    Synthesizer
	lang     string
	ready    bool
	speaking bool
	current  string
	events   chan Event
	log      *zap.Logger
}

// NewSpeaker prefers voices for lang, e.g. "es-ES". Call Refresh once the
// platform reports its voice list.
func NewSpeaker(synth Synthesizer, lang string) *Speaker {
	s := &Speaker{
		synth:  synth,
		lang:   lang,
		events: make(chan Event, eventBuffer),
		log:    logger.Named("voice"),
	}
	s.Refresh()
	return s
}

// Events delivers utterance transitions. The channel has a single consumer
// that must keep draining it; events are dropped when it is full.
func (s *Speaker) Events() <-chan Event {
	return s.events
}

// Refresh re-reads the voice list and reports readiness. Readiness never
// reverts once set.
func (s *Speaker) Refresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready && len(s.synth.Voices()) > 0 {
		s.ready = true
	}
	return s.ready
}

func (s *Speaker) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Speak cancels any utterance in progress and starts text. It returns false
// when the request was dropped: empty text, no voices yet, or a synthesizer
// error.
func (s *Speaker) Speak(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" || !s.ready {
		return false
	}

	s.cancelLocked()

	u := Utterance{Text: text, Lang: s.lang, Voice: SelectVoice(s.synth.Voices(), s.lang)}
	if u.Voice != nil {
		u.Lang = u.Voice.Lang
	}
	if err := s.synth.Speak(u); err != nil {
		s.log.Warn("speech synthesis failed", zap.Error(err))
		return false
	}

	s.speaking = true
	s.current = text
	s.emit(Event{Kind: EventStarted, Text: text})
	return true
}

// Stop cancels the current utterance, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Finished is called by the platform when the current utterance ends.
func (s *Speaker) Finished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.speaking {
		return
	}
	s.speaking = false
	s.emit(Event{Kind: EventEnded, Text: s.current})
	s.current = ""
}

func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *Speaker) cancelLocked() {
	s.synth.Cancel()
	if s.speaking {
		s.speaking = false
		s.emit(Event{Kind: EventCancelled, Text: s.current})
		s.current = ""
	}
}

func (s *Speaker) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Debug("dropping speech event, consumer is behind", zap.String("kind", string(ev.Kind)))
	}
}

// SelectVoice picks an exact regional match for lang, then any voice of the
// same language family, then nil for the platform default.
func SelectVoice(voices []Voice, lang string) *Voice {
	want := normalizeLang(lang)
	if want == "" {
		return nil
	}
	family, _, _ := strings.Cut(want, "-")

	for i := range voices {
		if strings.HasPrefix(normalizeLang(voices[i].Lang), want) {
			return &voices[i]
		}
	}
	for i := range voices {
		if strings.HasPrefix(normalizeLang(voices[i].Lang), family) {
			return &voices[i]
		}
	}
	return nil
}

func normalizeLang(lang string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
}
