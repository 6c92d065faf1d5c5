package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/ports"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 3 * time.Second

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ms"`
}

type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker probes one dependency. Name and Duration are filled in by the service.
type Checker func(ctx context.Context) CheckResult

// ConnectionReporter is implemented by the event relay's queue connection.
type ConnectionReporter interface {
	Connected() bool
}

// BreakerReporter exposes the completion engine's circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

// ClientCounter reports push-channel sessions.
type ClientCounter interface {
	ClientCount() int
}

// Config lists the dependencies to probe. Nil fields are skipped.
type Config struct {
	Version    string
	Cache      ports.Cache
	Queue      ConnectionReporter
	Completion BreakerReporter
	Sessions   ClientCounter
}

// Service answers liveness and readiness probes. The built-in probes report
// degraded on failure, which keeps the server ready.
type Service struct {
	startTime time.Time
	version   string
	log       *zap.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
}

func NewService(cfg *Config, log *zap.Logger) *Service {
	s := &Service{
		startTime: time.Now(),
		version:   cfg.Version,
		log:       log,
		checkers:  make(map[string]Checker),
	}

	if cfg.Cache != nil {
		s.RegisterChecker("cache", cacheChecker(cfg.Cache, log))
	}
	if cfg.Queue != nil {
		s.RegisterChecker("relay", relayChecker(cfg.Queue))
	}
	if cfg.Completion != nil {
		s.RegisterChecker("completion", breakerChecker(cfg.Completion))
	}
	if cfg.Sessions != nil {
		s.RegisterChecker("push_channel", sessionsChecker(cfg.Sessions))
	}
	return s
}

// RegisterChecker adds or replaces a named probe.
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.log.Debug("Registered health checker", zap.String("name", name))
}

func (s *Service) Health(_ context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Ready probes every dependency concurrently. Only an unhealthy result
// makes the service unready.
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	names := make([]string, 0, len(s.checkers))
	for name := range s.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	probes := make([]Checker, len(names))
	for i, name := range names {
		probes[i] = s.checkers[name]
	}
	s.mu.RUnlock()

	results := make([]CheckResult, len(names))
	var wg sync.WaitGroup
	for i := range probes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.run(ctx, names[i], probes[i])
		}(i)
	}
	wg.Wait()

	resp := &ReadyResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(results)),
	}
	for _, r := range results {
		resp.Checks[r.Name] = r
		switch r.Status {
		case StatusUnhealthy:
			resp.Ready = false
			resp.Status = StatusUnhealthy
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

func (s *Service) run(ctx context.Context, name string, probe Checker) (result CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Health checker panicked", zap.String("name", name), zap.Any("panic", r))
			result = CheckResult{Status: StatusUnhealthy, Message: "checker panicked"}
		}
		result.Name = name
		result.Duration = time.Since(start)
	}()

	return probe(ctx)
}

func cacheChecker(cache ports.Cache, log *zap.Logger) Checker {
	return func(context.Context) CheckResult {
		if err := cache.Ping(); err != nil {
			log.Warn("Speech cache unreachable", zap.Error(err))
			return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("ping failed: %v", err)}
		}
		return CheckResult{Status: StatusHealthy, Message: "connection ok"}
	}
}

func relayChecker(queue ConnectionReporter) Checker {
	return func(context.Context) CheckResult {
		if !queue.Connected() {
			return CheckResult{Status: StatusDegraded, Message: "disconnected, responses reach local sessions only"}
		}
		return CheckResult{Status: StatusHealthy, Message: "connected"}
	}
}

func breakerChecker(engine BreakerReporter) Checker {
	return func(context.Context) CheckResult {
		state := engine.BreakerState()
		if state == "open" {
			return CheckResult{Status: StatusDegraded, Message: "circuit open, commands resolve to the fallback reply"}
		}
		return CheckResult{Status: StatusHealthy, Message: "circuit " + state}
	}
}

func sessionsChecker(sessions ClientCounter) Checker {
	return func(context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d connected", sessions.ClientCount())}
	}
}
