// Package supervisor watches server connectivity from the device. It polls
// the status endpoint on a fixed interval, retries a bounded number of times
// after failures and then gives up until Reset is called.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/client/clock"
	"github.com/seu-repo/mirror-voice/internal/domain"
)

type State int

const (
	Polling State = iota
	Healthy
	Degraded
	GivenUp
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case GivenUp:
		return "given_up"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	StatusConnecting      = "Connecting..."
	StatusConnectionError = "Connection Error"
	StatusGivenUp         = "Max retries reached. Please check server."
)

// Poller fetches the server status.
type Poller interface {
	Status(ctx context.Context) (*domain.StatusReport, error)
}

type Config struct {
	UpdateInterval time.Duration
	RetryDelay     time.Duration
	MaxRetries     int
	PollTimeout    time.Duration
}

// ChangeFunc observes transitions. It is called with the supervisor lock
// held and must not call back into the supervisor.
type ChangeFunc func(state State, status string)

// Supervisor is the connection state machine. A success resets the retry
// count and schedules the next poll after UpdateInterval. A failure while
// fewer than MaxRetries retries were made schedules one retry after
// RetryDelay; the failure after the last retry moves to GivenUp, which
// schedules nothing.
type Supervisor struct {
	cfg      Config
	poller   Poller
	clock    clock.Clock
	log      *zap.Logger
	onChange ChangeFunc

	mu       sync.Mutex
	state    State
	status   string
	retries  int
	timer    clock.Timer
	timerSeq int
	last     *domain.StatusReport
	stopped  bool
}

func New(cfg Config, poller Poller, clk clock.Clock, log *zap.Logger, onChange ChangeFunc) *Supervisor {
	if clk == nil {
		clk = clock.Real{}
	}
	if onChange == nil {
		onChange = func(State, string) {}
	}
	return &Supervisor{
		cfg:      cfg,
		poller:   poller,
		clock:    clk,
		log:      log,
		onChange: onChange,
		state:    Polling,
		status:   StatusConnecting,
	}
}

// Start schedules the first poll immediately.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.schedule(0)
}

// Reset leaves GivenUp (or any state) and starts polling again with a fresh
// retry count.
func (s *Supervisor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.retries = 0
	s.transition(Polling, StatusConnecting)
	s.schedule(0)
}

// Stop cancels the pending poll. The supervisor cannot be restarted.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelTimer()
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Retries returns the number of retries made since the last success.
func (s *Supervisor) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// LastReport returns the most recent successful status report, or nil.
func (s *Supervisor) LastReport() *domain.StatusReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Supervisor) poll(seq int) {
	s.mu.Lock()
	if seq != s.timerSeq || s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	ctx := context.Background()
	if s.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PollTimeout)
		defer cancel()
	}
	report, err := s.poller.Status(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reset or Stop while the request was in flight supersedes this result.
	if seq != s.timerSeq || s.stopped {
		return
	}

	if err == nil && report != nil {
		s.retries = 0
		s.last = report
		s.transition(Healthy, "Connected: "+report.Status)
		s.schedule(s.cfg.UpdateInterval)
		return
	}
	if err == nil {
		err = fmt.Errorf("empty status report")
	}

	if s.retries < s.cfg.MaxRetries {
		s.retries++
		s.log.Warn("Status poll failed, retrying",
			zap.Error(err),
			zap.Int("retry", s.retries),
			zap.Int("max_retries", s.cfg.MaxRetries),
			zap.Duration("delay", s.cfg.RetryDelay),
		)
		s.transition(Degraded, StatusConnectionError)
		s.schedule(s.cfg.RetryDelay)
		return
	}

	s.log.Error("Status poll failed, giving up", zap.Error(err), zap.Int("retries", s.retries))
	s.cancelTimer()
	s.transition(GivenUp, StatusGivenUp)
}

func (s *Supervisor) transition(state State, status string) {
	if s.state != state {
		s.log.Debug("Supervisor transition",
			zap.Stringer("from", s.state),
			zap.Stringer("to", state),
		)
	}
	s.state = state
	s.status = status
	s.onChange(state, status)
}

// schedule replaces the pending poll.
func (s *Supervisor) schedule(d time.Duration) {
	s.cancelTimer()
	seq := s.timerSeq
	s.timer = s.clock.AfterFunc(d, func() { s.poll(seq) })
}

func (s *Supervisor) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}
