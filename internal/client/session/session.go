// Package session implements the device-side voice session: wake word or
// push-to-talk, a bounded capture window, upload, playback and recovery.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/client/clock"
)

// ErrInvalidTransition is returned when an event is not accepted in the
// current state, for example a wake event while a capture is in flight.
var ErrInvalidTransition = errors.New("session: invalid transition")

type State int

const (
	Idle State = iota
	Listening
	Capturing
	Uploading
	Speaking
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Capturing:
		return "capturing"
	case Uploading:
		return "uploading"
	case Speaking:
		return "speaking"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// busy reports whether a capture is in flight.
func (s State) busy() bool {
	return s == Capturing || s == Uploading || s == Speaking
}

// Status texts shown on the display.
const (
	StatusReady      = "Voice Assistant is ready."
	StatusListening  = "Listening..."
	StatusProcessing = "Processing..."
	StatusReceived   = "Response received"
	StatusFailed     = "Error processing request"
	StatusNotHeard   = "Sorry, I didn't catch that."
	StatusMicrophone = "Error accessing microphone"
)

// Reply is the server's answer to one capture.
type Reply struct {
	Transcription string
	Response      string
	Audio         []byte
}

// Uploader sends a capture to the server.
type Uploader interface {
	UploadAudio(ctx context.Context, audio []byte) (*Reply, error)
	UploadText(ctx context.Context, text string) (*Reply, error)
}

// Recorder captures microphone audio between Start and Stop.
type Recorder interface {
	Start() error
	Stop() ([]byte, error)
}

// Player speaks or displays a reply and returns when playback ends.
type Player interface {
	Play(ctx context.Context, reply *Reply) error
}

// DefaultErrorDisplay is how long an error status stays up when Config leaves
// ErrorDisplay unset.
const DefaultErrorDisplay = 3 * time.Second

type Config struct {
	WakePhrases   []string
	CaptureWindow time.Duration
	ListenTimeout time.Duration
	ErrorDisplay  time.Duration
	RearmDelay    time.Duration
	UploadTimeout time.Duration
	// FollowUp re-arms listening after each reply for hands-free use.
	FollowUp bool
}

// ChangeFunc observes transitions. It is called with the session lock held
// and must not call back into the session.
type ChangeFunc func(state State, status string)

// Session is the voice session state machine. All transitions happen under
// one lock; at most one timer is pending. Uploads and playback run on their
// own goroutines and report back through an epoch check so that results of
// an abandoned capture are discarded.
//
// Without a Recorder the session works in text mode: the recognizer
// delivers phrases through Hear and the phrase itself is uploaded.
type Session struct {
	cfg      Config
	uploader Uploader
	recorder Recorder
	player   Player
	clock    clock.Clock
	log      *zap.Logger
	onChange ChangeFunc
	spawn    func(func())

	mu        sync.Mutex
	state     State
	status    string
	timer     clock.Timer
	timerSeq  int
	epoch     int
	cancel    context.CancelFunc
	recording bool
	lastReply *Reply
	closed    bool
}

func New(cfg Config, uploader Uploader, recorder Recorder, player Player, clk clock.Clock, log *zap.Logger, onChange ChangeFunc) *Session {
	if clk == nil {
		clk = clock.Real{}
	}
	if onChange == nil {
		onChange = func(State, string) {}
	}
	if cfg.CaptureWindow <= 0 {
		cfg.CaptureWindow = 5 * time.Second
	}
	if cfg.RearmDelay <= 0 {
		cfg.RearmDelay = time.Second
	}
	if cfg.ErrorDisplay <= 0 {
		cfg.ErrorDisplay = DefaultErrorDisplay
	}
	return &Session{
		cfg:      cfg,
		uploader: uploader,
		recorder: recorder,
		player:   player,
		clock:    clk,
		log:      log,
		onChange: onChange,
		spawn:    func(f func()) { go f() },
		state:    Idle,
		status:   StatusReady,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastReply returns the most recent reply, or nil.
func (s *Session) LastReply() *Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReply
}

// Hear feeds a phrase from the speech recognizer. In Idle a phrase that
// contains a wake phrase wakes the session; words following the wake phrase
// are taken as the command. In Listening (text mode) the phrase is the
// command. Hear reports whether the phrase was consumed.
func (s *Session) Hear(phrase string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	switch s.state {
	case Idle, Error:
		rest, ok := s.matchWake(phrase)
		if !ok {
			return false
		}
		s.log.Debug("Wake phrase detected", zap.String("phrase", phrase))
		s.listen()
		if rest != "" && s.recorder == nil {
			s.captureText(rest)
		}
		return true
	case Listening:
		if s.recorder != nil {
			return false
		}
		command := strings.TrimSpace(phrase)
		if rest, ok := s.matchWake(phrase); ok {
			command = rest
		}
		if command == "" {
			return true
		}
		s.captureText(command)
		return true
	default:
		return false
	}
}

// Wake starts listening as if a wake phrase had been heard.
func (s *Session) Wake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state.busy() {
		return ErrInvalidTransition
	}
	s.listen()
	return nil
}

// PushToTalk uploads a typed command directly. An empty command behaves
// like Wake.
func (s *Session) PushToTalk(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state.busy() {
		return ErrInvalidTransition
	}
	command = strings.TrimSpace(command)
	if command == "" {
		s.listen()
		return nil
	}
	s.captureText(command)
	return nil
}

// Rearm returns to Listening after RearmDelay, once the recognizer has
// restarted. It is ignored while a capture is in flight.
func (s *Session) Rearm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state.busy() {
		return ErrInvalidTransition
	}
	s.scheduleRearm()
	return nil
}

// Close cancels pending work and returns to Idle. Later events are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.abandon()
	s.closed = true
	s.transition(Idle, StatusReady)
}

// matchWake finds a wake phrase case-insensitively and returns the text that
// follows it. Matching walks runes and cuts the original string at rune
// boundaries, so case mappings that change byte length cannot misalign it.
func (s *Session) matchWake(phrase string) (string, bool) {
	var (
		offsets []int
		folded  []rune
	)
	for i, r := range phrase {
		offsets = append(offsets, i)
		folded = append(folded, unicode.ToLower(r))
	}
	offsets = append(offsets, len(phrase))

	for _, wake := range s.cfg.WakePhrases {
		w := []rune(strings.ToLower(strings.TrimSpace(wake)))
		if len(w) == 0 {
			continue
		}
		if i := indexRunes(folded, w); i >= 0 {
			rest := strings.TrimSpace(phrase[offsets[i+len(w)]:])
			return strings.TrimLeft(rest, ",.!? "), true
		}
	}
	return "", false
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// --- transitions, called with mu held ---

func (s *Session) transition(state State, status string) {
	if s.state != state {
		s.log.Debug("Session transition",
			zap.Stringer("from", s.state),
			zap.Stringer("to", state),
		)
	}
	s.state = state
	s.status = status
	s.onChange(state, status)
}

// abandon cancels the pending timer and any in-flight capture.
func (s *Session) abandon() {
	s.cancelTimer()
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.recording {
		s.recording = false
		if _, err := s.recorder.Stop(); err != nil {
			s.log.Debug("Stopping abandoned recording failed", zap.Error(err))
		}
	}
}

func (s *Session) listen() {
	s.abandon()
	s.transition(Listening, StatusListening)

	if s.recorder != nil {
		s.captureAudio()
		return
	}
	if s.cfg.ListenTimeout > 0 {
		s.schedule(s.cfg.ListenTimeout, func() {
			if s.state == Listening {
				s.transition(Idle, StatusNotHeard)
			}
		})
	}
}

func (s *Session) captureAudio() {
	if err := s.recorder.Start(); err != nil {
		s.log.Error("Failed to start recording", zap.Error(err))
		s.fail(StatusMicrophone)
		return
	}
	s.recording = true
	s.transition(Capturing, StatusListening)
	s.schedule(s.cfg.CaptureWindow, func() {
		if s.state != Capturing {
			return
		}
		s.recording = false
		audio, err := s.recorder.Stop()
		if err != nil {
			s.log.Error("Failed to stop recording", zap.Error(err))
			s.fail(StatusMicrophone)
			return
		}
		s.upload(func(ctx context.Context) (*Reply, error) {
			return s.uploader.UploadAudio(ctx, audio)
		})
	})
}

func (s *Session) captureText(command string) {
	s.abandon()
	s.transition(Capturing, StatusListening)
	s.upload(func(ctx context.Context) (*Reply, error) {
		return s.uploader.UploadText(ctx, command)
	})
}

func (s *Session) upload(send func(ctx context.Context) (*Reply, error)) {
	s.cancelTimer()
	s.transition(Uploading, StatusProcessing)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.cfg.UploadTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.cfg.UploadTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	s.cancel = cancel
	epoch := s.epoch

	s.spawn(func() {
		reply, err := send(ctx)
		s.uploaded(epoch, reply, err)
	})
}

func (s *Session) uploaded(epoch int, reply *Reply, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.closed || s.state != Uploading {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if err != nil {
		s.log.Warn("Upload failed", zap.Error(err))
		s.fail(StatusFailed)
		return
	}

	s.lastReply = reply
	s.transition(Speaking, StatusReceived)
	if s.player == nil {
		s.finishSpeaking()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.spawn(func() {
		if err := s.player.Play(ctx, reply); err != nil {
			s.log.Warn("Playback failed", zap.Error(err))
		}
		s.played(epoch)
	})
}

func (s *Session) played(epoch int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.closed || s.state != Speaking {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.finishSpeaking()
}

func (s *Session) finishSpeaking() {
	s.transition(Idle, StatusReceived)
	if s.cfg.FollowUp {
		s.scheduleRearm()
	}
}

func (s *Session) fail(status string) {
	s.abandon()
	s.transition(Error, status)
	s.schedule(s.cfg.ErrorDisplay, func() {
		if s.state == Error {
			s.transition(Idle, StatusReady)
		}
	})
}

func (s *Session) scheduleRearm() {
	s.schedule(s.cfg.RearmDelay, func() {
		if !s.state.busy() {
			s.listen()
		}
	})
}

// schedule replaces the pending timer. fn runs with mu held; a superseded
// timer that already fired finds a newer sequence number and does nothing.
func (s *Session) schedule(d time.Duration, fn func()) {
	s.cancelTimer()
	s.timerSeq++
	seq := s.timerSeq
	s.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq != s.timerSeq || s.closed {
			return
		}
		s.timer = nil
		fn()
	})
}

func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}
