// Package capture implements the record, transcribe, edit and confirm cycle
// for one spoken answer.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/voxform/voxform/internal/logger"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateUploading    State = "uploading"
	StateTranscribing State = "transcribing"
	StateEditing      State = "editing"
)

var (
	ErrInvalidState = errors.New("operation not allowed in current capture state")
	ErrNoClip       = errors.New("no audio clip to transcribe")
	ErrClosed       = errors.New("capture component closed")
)

type Clip struct {
	Data     []byte
	MIMEType string
}

// Stream is an exclusively held microphone stream.
type Stream interface {
	// Finish stops capturing and returns everything recorded.
	Finish() (Clip, error)
	// Close releases the device. It must be safe to call after Finish.
	Close() error
}

type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Event is a state transition. Handle is the playback handle of the clip
// held in that state, Transcript the text under edit, Error a user-facing
// failure description.
type Event struct {
	State      State
	Handle     string
	Transcript string
	Error      string
}

const eventBuffer = 32

type Recorder struct {
	mu          sync.Mutex
	mic         Microphone
	transcriber Transcriber

	state      State
	stream     Stream
	clip       *Clip
	handle     string
	transcript string
	closed     bool

	events chan Event
	log    *zap.Logger
}

func NewRecorder(mic Microphone, transcriber Transcriber) *Recorder {
	return &Recorder{
		mic:         mic,
		transcriber: transcriber,
		state:       StateIdle,
		events:      make(chan Event, eventBuffer),
		log:         logger.Named("capture"),
	}
}

// Events delivers state transitions to a single consumer that must keep
// draining it.
func (r *Recorder) Events() <-chan Event {
	return r.events
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PlaybackHandle identifies the clip currently held, or "" when none is.
func (r *Recorder) PlaybackHandle() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

func (r *Recorder) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript
}

// Start acquires the microphone. Any clip held from an earlier recording is
// discarded. On a device failure the component stays idle and the returned
// error is a *DeviceError.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(StateIdle); err != nil {
		return err
	}

	stream, err := r.mic.Open(ctx)
	if err != nil {
		de := ClassifyDeviceError(err)
		r.log.Warn("microphone unavailable", zap.String("kind", string(de.Kind)), zap.Error(err))
		r.emitLocked(Event{State: StateIdle, Error: de.Description()})
		return de
	}

	r.discardLocked()
	r.stream = stream
	r.transitionLocked(StateRecording)
	return nil
}

// Stop ends the recording and always releases the microphone. The clip is
// kept for playback and transcription unless finishing failed.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(StateRecording); err != nil {
		return err
	}

	clip, err := r.stream.Finish()
	r.releaseStreamLocked()
	if err != nil {
		r.discardLocked()
		r.state = StateIdle
		r.emitLocked(Event{State: StateIdle, Error: "No se pudo finalizar la grabación."})
		return fmt.Errorf("failed to finish recording: %w", err)
	}

	r.holdLocked(clip)
	r.transitionLocked(StateIdle)
	return nil
}

// Upload replaces any held clip with a user-provided file.
func (r *Recorder) Upload(clip Clip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(StateIdle, StateUploading); err != nil {
		return err
	}
	if len(clip.Data) == 0 {
		return ErrNoClip
	}
	r.holdLocked(clip)
	r.transitionLocked(StateUploading)
	return nil
}

// Transcribe sends the held clip to the transcriber and blocks until it
// answers. Success moves to editing; failure discards the audio and returns
// to idle.
func (r *Recorder) Transcribe(ctx context.Context) (string, error) {
	r.mu.Lock()
	if err := r.checkLocked(StateIdle, StateUploading); err != nil {
		r.mu.Unlock()
		return "", err
	}
	if r.clip == nil {
		r.mu.Unlock()
		return "", ErrNoClip
	}
	audio := r.clip.Data
	r.transitionLocked(StateTranscribing)
	r.mu.Unlock()

	text, err := r.transcriber.Transcribe(ctx, audio)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}
	if err != nil {
		r.log.Warn("transcription failed", zap.Error(err))
		r.discardLocked()
		r.state = StateIdle
		r.emitLocked(Event{State: StateIdle, Error: "Error al transcribir el audio. Inténtalo de nuevo."})
		return "", err
	}

	r.transcript = text
	r.transitionLocked(StateEditing)
	return text, nil
}

// Edit replaces the transcript under review.
func (r *Recorder) Edit(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(StateEditing); err != nil {
		return err
	}
	r.transcript = text
	return nil
}

// Confirm is the only way a transcript leaves the component. It returns to
// idle holding nothing.
func (r *Recorder) Confirm() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(StateEditing); err != nil {
		return "", err
	}
	text := r.transcript
	r.discardLocked()
	r.transitionLocked(StateIdle)
	return text, nil
}

// Retry abandons whatever is in progress, except a pending transcription,
// and returns to idle holding nothing.
func (r *Recorder) Retry() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(StateIdle, StateRecording, StateUploading, StateEditing); err != nil {
		return err
	}
	r.releaseStreamLocked()
	r.discardLocked()
	r.transitionLocked(StateIdle)
	return nil
}

// Close releases the microphone and drops all audio. Later calls fail with
// ErrClosed.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.releaseStreamLocked()
	r.discardLocked()
	r.state = StateIdle
	r.closed = true
}

func (r *Recorder) checkLocked(allowed ...State) error {
	if r.closed {
		return ErrClosed
	}
	for _, s := range allowed {
		if r.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, r.state)
}

func (r *Recorder) holdLocked(clip Clip) {
	r.clip = &clip
	r.handle = "clip:" + uuid.NewString()
	r.transcript = ""
}

func (r *Recorder) discardLocked() {
	r.clip = nil
	r.handle = ""
	r.transcript = ""
}

func (r *Recorder) releaseStreamLocked() {
	if r.stream == nil {
		return
	}
	if err := r.stream.Close(); err != nil {
		r.log.Warn("failed to release microphone", zap.Error(err))
	}
	r.stream = nil
}

func (r *Recorder) transitionLocked(s State) {
	r.state = s
	r.emitLocked(Event{State: s, Handle: r.handle, Transcript: r.transcript})
}

func (r *Recorder) emitLocked(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.log.Debug("dropping capture event, consumer is behind", zap.String("state", string(ev.State)))
	}
}
