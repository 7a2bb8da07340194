package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/voxform/voxform/internal/capture"
	"github.com/voxform/voxform/internal/conversation"
	"github.com/voxform/voxform/internal/logger"
	"github.com/voxform/voxform/internal/metrics"
	"github.com/voxform/voxform/internal/script"
	"github.com/voxform/voxform/internal/store"
	"github.com/voxform/voxform/internal/voice"
	"go.uber.org/zap"
)

// Client message types.
const (
	MsgStart        = "start"
	MsgVoices       = "voices"
	MsgUtteranceEnd = "utterance_end"
	MsgRepeat       = "repeat"
	MsgRecordStart  = "record_start"
	MsgRecordStop   = "record_stop"
	MsgTranscribe   = "transcribe"
	MsgEdit         = "edit"
	MsgConfirm      = "confirm"
	MsgRetry        = "retry"
)

// Server message types.
const (
	MsgQuestion     = "question"
	MsgSpeak        = "speak"
	MsgCancelSpeech = "cancel_speech"
	MsgCapture      = "capture"
	MsgCompleted    = "completed"
	MsgError        = "error"
)

type ClientMessage struct {
	Type         string                 `json:"type"`
	DocumentType string                 `json:"document_type,omitempty"`
	Voices       []voice.Voice          `json:"voices,omitempty"`
	Text         string                 `json:"text,omitempty"`
	MIMEType     string                 `json:"mime_type,omitempty"`
	DeviceError  *capture.PlatformError `json:"device_error,omitempty"`
}

type QuestionPrompt struct {
	Index int `json:"index"`
	Total int `json:"total"`
	script.Question
}

type ServerMessage struct {
	Type       string                 `json:"type"`
	Question   *QuestionPrompt        `json:"question,omitempty"`
	Text       string                 `json:"text,omitempty"`
	Voice      string                 `json:"voice,omitempty"`
	Lang       string                 `json:"lang,omitempty"`
	State      capture.State          `json:"state,omitempty"`
	Handle     string                 `json:"handle,omitempty"`
	Transcript string                 `json:"transcript,omitempty"`
	Answers    conversation.AnswerSet `json:"answers,omitempty"`
	Record     *store.Record          `json:"record,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

var ErrSessionClosed = errors.New("conversation session closed")

type SessionDeps struct {
	Scripts     *script.Registry
	Records     *RecordService
	Transcriber capture.Transcriber
	// Language is the preferred synthesis voice, e.g. "es-ES".
	Language string
}

const outboxSize = 64

// Session is one client's conversation: a script controller, a capture
// component fed by uploaded audio frames, and a speaker that asks the
// client to voice prompts. Handle* methods must be called from a single
// goroutine; Outbox must be drained by another.
type Session struct {
	deps SessionDeps

	out       chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once

	mic        *socketMicrophone
	synth      *socketSynthesizer
	recorder   *capture.Recorder
	speaker    *voice.Speaker
	controller *conversation.Controller

	log *zap.Logger
}

func NewSession(deps SessionDeps) *Session {
	s := &Session{
		deps: deps,
		out:  make(chan ServerMessage, outboxSize),
		done: make(chan struct{}),
		mic:  &socketMicrophone{},
		log:  logger.Named("conversation"),
	}
	s.synth = &socketSynthesizer{send: s.send}
	s.recorder = capture.NewRecorder(s.mic, deps.Transcriber)
	s.speaker = voice.NewSpeaker(s.synth, deps.Language)
	return s
}

func (s *Session) Outbox() <-chan ServerMessage {
	return s.out
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close releases the microphone and stops all further output.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.recorder.Close()
	})
}

// HandleMessage processes one JSON client message. Problems caused by the
// client are reported to it as error messages; only a closed session is
// returned as an error.
func (s *Session) HandleMessage(ctx context.Context, data []byte) error {
	if s.closed() {
		return ErrSessionClosed
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(fmt.Sprintf("invalid message: %v", err))
		return nil
	}

	if err := s.dispatch(ctx, msg); err != nil {
		s.log.Debug("client message rejected", zap.String("type", msg.Type), zap.Error(err))
		s.sendError(err.Error())
	}
	s.flush()

	if s.closed() {
		return ErrSessionClosed
	}
	return nil
}

// HandleAudio appends a binary frame to the recording in progress or, when
// nothing is recording, treats it as an uploaded file.
func (s *Session) HandleAudio(ctx context.Context, data []byte) error {
	if s.closed() {
		return ErrSessionClosed
	}
	if !s.mic.write(data) {
		if err := s.recorder.Upload(capture.Clip{Data: append([]byte(nil), data...)}); err != nil {
			s.sendError(err.Error())
		}
	}
	s.flush()
	return nil
}

func (s *Session) dispatch(ctx context.Context, msg ClientMessage) error {
	switch msg.Type {
	case MsgStart:
		return s.start(store.DocumentType(msg.DocumentType))

	case MsgVoices:
		wasReady := s.speaker.Ready()
		s.synth.setVoices(msg.Voices)
		if s.speaker.Refresh() && !wasReady {
			s.speakCurrent()
		}
		return nil

	case MsgUtteranceEnd:
		s.speaker.Finished()
		return nil

	case MsgRepeat:
		if err := s.requireActive(); err != nil {
			return err
		}
		s.speakCurrent()
		return nil

	case MsgRecordStart:
		if err := s.requireActive(); err != nil {
			return err
		}
		s.speaker.Stop()
		if msg.DeviceError != nil {
			s.mic.failNext(msg.DeviceError)
		}
		s.mic.setMIMEType(msg.MIMEType)
		err := s.recorder.Start(ctx)
		// A reported device error belongs to this attempt only.
		s.mic.failNext(nil)
		var de *capture.DeviceError
		if errors.As(err, &de) {
			// The recorder already reported the description.
			return nil
		}
		return err

	case MsgRecordStop:
		return s.recorder.Stop()

	case MsgTranscribe:
		if err := s.requireActive(); err != nil {
			return err
		}
		_, err := s.recorder.Transcribe(ctx)
		if err != nil && !errors.Is(err, capture.ErrInvalidState) && !errors.Is(err, capture.ErrNoClip) {
			// Reported through the capture event; audio is gone.
			return nil
		}
		return err

	case MsgEdit:
		return s.recorder.Edit(msg.Text)

	case MsgConfirm:
		if err := s.requireActive(); err != nil {
			return err
		}
		text, err := s.recorder.Confirm()
		if err != nil {
			return err
		}
		return s.answer(ctx, text)

	case MsgRetry:
		return s.recorder.Retry()

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (s *Session) start(docType store.DocumentType) error {
	sc, err := s.deps.Scripts.Lookup(docType)
	if err != nil {
		return err
	}
	if err := s.recorder.Retry(); err != nil {
		return err
	}
	if s.controller == nil {
		s.controller = conversation.New(sc)
	} else {
		s.controller.Reset(sc)
	}
	s.log.Debug("conversation started", zap.String("document_type", string(docType)))
	s.askCurrent()
	return nil
}

func (s *Session) answer(ctx context.Context, text string) error {
	set, done, err := s.controller.Answer(text)
	if err != nil {
		return err
	}
	if !done {
		s.askCurrent()
		return nil
	}

	docType := s.controller.Script().DocumentType
	doc, err := NewDocument(docType, set.Map(), nil)
	if err != nil {
		return err
	}
	rec, err := s.deps.Records.Create(ctx, doc)
	if err != nil {
		return err
	}
	metrics.ConversationsCompleted.WithLabelValues(string(docType)).Inc()

	s.send(ServerMessage{Type: MsgCompleted, Answers: set, Record: rec})
	s.speaker.Speak(s.deps.Scripts.CompletionPrompt())
	return nil
}

func (s *Session) askCurrent() {
	q, ok := s.controller.Current()
	if !ok {
		return
	}
	st := s.controller.Status()
	s.send(ServerMessage{
		Type:     MsgQuestion,
		Question: &QuestionPrompt{Index: st.Index, Total: s.controller.Script().Len(), Question: q},
	})
	s.speaker.Speak(q.Prompt)
}

func (s *Session) speakCurrent() {
	if s.controller == nil {
		return
	}
	if q, ok := s.controller.Current(); ok {
		s.speaker.Speak(q.Prompt)
	}
}

func (s *Session) requireActive() error {
	if s.controller == nil {
		return errors.New("no conversation started")
	}
	if s.controller.Status().Completed {
		return conversation.ErrCompleted
	}
	return nil
}

// flush forwards pending capture transitions and discards speaker events,
// which the client already knows about.
func (s *Session) flush() {
	for {
		select {
		case ev := <-s.recorder.Events():
			s.send(ServerMessage{
				Type:       MsgCapture,
				State:      ev.State,
				Handle:     ev.Handle,
				Transcript: ev.Transcript,
				Error:      ev.Error,
			})
		case ev := <-s.speaker.Events():
			s.log.Debug("utterance event", zap.String("kind", string(ev.Kind)))
		default:
			return
		}
	}
}

func (s *Session) send(msg ServerMessage) {
	select {
	case s.out <- msg:
	case <-s.done:
	}
}

func (s *Session) sendError(text string) {
	s.send(ServerMessage{Type: MsgError, Error: text})
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// socketSynthesizer speaks by asking the client to voice the text.
type socketSynthesizer struct {
	mu     sync.Mutex
	voices []voice.Voice
	send   func(ServerMessage)
}

func (t *socketSynthesizer) setVoices(v []voice.Voice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.voices = append([]voice.Voice(nil), v...)
}

func (t *socketSynthesizer) Voices() []voice.Voice {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]voice.Voice(nil), t.voices...)
}

func (t *socketSynthesizer) Speak(u voice.Utterance) error {
	msg := ServerMessage{Type: MsgSpeak, Text: u.Text, Lang: u.Lang}
	if u.Voice != nil {
		msg.Voice = u.Voice.Name
	}
	t.send(msg)
	return nil
}

func (t *socketSynthesizer) Cancel() {
	t.send(ServerMessage{Type: MsgCancelSpeech})
}

// socketMicrophone collects audio frames streamed by the client. Only one
// stream may be open at a time.
type socketMicrophone struct {
	mu      sync.Mutex
	active  *socketStream
	pending *capture.PlatformError
	mime    string
}

func (m *socketMicrophone) failNext(err *capture.PlatformError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = err
}

func (m *socketMicrophone) setMIMEType(mime string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mime = mime
}

func (m *socketMicrophone) Open(ctx context.Context) (capture.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.pending != nil {
		err := m.pending
		m.pending = nil
		return nil, err
	}
	if m.active != nil {
		return nil, &capture.PlatformError{Name: "NotReadableError", Message: "microphone already in use"}
	}
	m.active = &socketStream{mic: m, mime: m.mime}
	return m.active, nil
}

func (m *socketMicrophone) write(chunk []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.finished {
		return false
	}
	m.active.data = append(m.active.data, chunk...)
	return true
}

type socketStream struct {
	mic      *socketMicrophone
	data     []byte
	mime     string
	finished bool
}

func (st *socketStream) Finish() (capture.Clip, error) {
	st.mic.mu.Lock()
	defer st.mic.mu.Unlock()
	st.finished = true
	if len(st.data) == 0 {
		return capture.Clip{}, errors.New("no audio received")
	}
	return capture.Clip{Data: st.data, MIMEType: st.mime}, nil
}

func (st *socketStream) Close() error {
	st.mic.mu.Lock()
	defer st.mic.mu.Unlock()
	if st.mic.active == st {
		st.mic.active = nil
	}
	return nil
}
