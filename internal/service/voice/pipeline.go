package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/internal/observability/telemetry"
	"github.com/seu-repo/mirror-voice/internal/ports"
	"github.com/seu-repo/mirror-voice/internal/service/intent"
)

var (
	// ErrEmptyAudio is returned when an upload carries no audio.
	ErrEmptyAudio = errors.New("empty audio payload")
	// ErrEmptyText is returned when a text command is blank.
	ErrEmptyText = errors.New("empty text command")
)

// Config holds the pipeline parameters.
type Config struct {
	SampleRate   int
	SystemPrompt string
	HistoryLimit int
}

// Result is the outcome of one pipeline run.
type Result struct {
	Transcription string
	Response      string
	Audio         []byte
}

// Pipeline turns a transcript into a spoken answer: it resolves the
// transcript, dispatches the action, records the exchange in memory and
// fans the answer out to every connected session.
//
// One mutex guards lastCommand and memory. It is never held while calling
// the resolver, the speech services or the broadcaster.
type Pipeline struct {
	cfg         Config
	resolver    intent.Resolver
	registry    *intent.Registry
	transcriber ports.Transcriber
	synthesizer ports.Synthesizer
	broadcaster ports.Broadcaster
	tracer      trace.Tracer
	log         *zap.Logger

	mu          sync.Mutex
	lastCommand string
	memory      *Memory
}

func NewPipeline(
	cfg Config,
	resolver intent.Resolver,
	registry *intent.Registry,
	transcriber ports.Transcriber,
	synthesizer ports.Synthesizer,
	broadcaster ports.Broadcaster,
	log *zap.Logger,
) *Pipeline {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Pipeline{
		cfg:         cfg,
		resolver:    resolver,
		registry:    registry,
		transcriber: transcriber,
		synthesizer: synthesizer,
		broadcaster: broadcaster,
		tracer:      otel.Tracer(telemetry.TracerName),
		log:         log,
		memory:      NewMemory(cfg.SystemPrompt, cfg.HistoryLimit),
	}
}

// ProcessAudio transcribes the upload and runs it through the pipeline
// with speech output.
func (p *Pipeline) ProcessAudio(ctx context.Context, audio []byte) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	ctx, span := p.tracer.Start(ctx, "voice.transcribe")
	transcript, err := p.transcriber.Transcribe(ctx, audio, p.cfg.SampleRate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		span.End()
		telemetry.VoiceCommandsTotal.WithLabelValues("none", "error").Inc()
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	span.End()

	p.log.Info("Audio transcribed",
		zap.Int("bytes", len(audio)),
		zap.String("transcription", transcript),
	)

	return p.Handle(ctx, transcript, true)
}

// ProcessText runs a typed or locally recognized command without speech output.
func (p *Pipeline) ProcessText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	res, err := p.Handle(ctx, text, false)
	if err != nil {
		return "", err
	}
	return res.Response, nil
}

// Handle runs one transcript through resolve, dispatch, synthesis (when
// speak is set), memory and broadcast. Only synthesis can fail; in that
// case no assistant turn is recorded and nothing is broadcast.
func (p *Pipeline) Handle(ctx context.Context, transcript string, speak bool) (*Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "voice.pipeline",
		trace.WithAttributes(
			attribute.String("resolver", p.resolver.Name()),
			attribute.Bool("speak", speak),
		),
	)
	defer span.End()

	history := p.begin(transcript)

	res := p.resolver.Resolve(ctx, transcript, history)
	response := res.Reply
	if !res.Direct {
		response = p.registry.Dispatch(res.Action)
	}
	span.SetAttributes(attribute.String("intent", string(res.Action.Intent)))

	var audio []byte
	if speak {
		var err error
		audio, err = p.synthesizer.Synthesize(ctx, response)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "synthesis failed")
			telemetry.VoiceCommandsTotal.WithLabelValues(string(res.Action.Intent), "error").Inc()
			return nil, fmt.Errorf("synthesis failed: %w", err)
		}
	}

	p.finish(response)
	p.broadcast(ctx, transcript, response)

	telemetry.VoiceCommandsTotal.WithLabelValues(string(res.Action.Intent), "success").Inc()
	telemetry.VoiceLatency.Observe(time.Since(start).Seconds())

	p.log.Info("Command processed",
		zap.String("transcription", transcript),
		zap.String("intent", string(res.Action.Intent)),
		zap.Bool("direct", res.Direct),
		zap.Duration("latency", time.Since(start)),
	)

	return &Result{Transcription: transcript, Response: response, Audio: audio}, nil
}

// begin records the command and, for memory-using resolvers, appends the
// user turn and returns the history to resolve against.
func (p *Pipeline) begin(transcript string) []domain.ConversationTurn {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastCommand = transcript
	if !p.resolver.UsesMemory() {
		return nil
	}
	p.memory.Append(domain.ConversationTurn{Role: domain.RoleUser, Content: transcript})
	return p.memory.Snapshot()
}

func (p *Pipeline) finish(response string) {
	if !p.resolver.UsesMemory() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memory.Append(domain.ConversationTurn{Role: domain.RoleAssistant, Content: response})
}

func (p *Pipeline) broadcast(ctx context.Context, command, response string) {
	if p.broadcaster == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			telemetry.BroadcastFailuresTotal.Inc()
			p.log.Error("Broadcast panicked", zap.Any("panic", r))
		}
	}()

	event := domain.ServerResponseEvent{Command: command, Response: response}
	if err := p.broadcaster.Broadcast(ctx, event); err != nil {
		telemetry.BroadcastFailuresTotal.Inc()
		p.log.Warn("Failed to broadcast response", zap.Error(err))
	}
}

// LastProcessedCommand returns the most recent transcript, or "" before the first run.
func (p *Pipeline) LastProcessedCommand() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCommand
}

// History returns a copy of the conversation memory.
func (p *Pipeline) History() []domain.ConversationTurn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.memory.Snapshot()
}

// EncodeAudio renders synthesized audio for JSON transport.
func EncodeAudio(audio []byte) string {
	return base64.StdEncoding.EncodeToString(audio)
}
