package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/client/clock"
	"github.com/seu-repo/mirror-voice/internal/client/session"
	"github.com/seu-repo/mirror-voice/internal/client/supervisor"
	"github.com/seu-repo/mirror-voice/internal/client/transport"
	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/pkg/config"
)

type deviceOptions struct {
	AudioPath string
	OutDir    string
	In        io.Reader
	Out       io.Writer
}

// console serializes writes from the session, supervisor and push channel.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) Printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func runDevice(ctx context.Context, cfg *config.ClientConfig, opts deviceOptions, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := &console{out: opts.Out}
	client := transport.NewClient(cfg.ServerURL, cfg.RequestTimeout, log)

	var recorder session.Recorder
	if opts.AudioPath != "" {
		recorder = &fileRecorder{path: opts.AudioPath}
	}

	sess := session.New(session.Config{
		WakePhrases:   cfg.WakePhrases,
		CaptureWindow: cfg.CaptureWindow,
		ListenTimeout: cfg.ListenTimeout,
		ErrorDisplay:  cfg.ErrorDisplay,
		RearmDelay:    cfg.RearmDelay,
		UploadTimeout: cfg.RequestTimeout,
		FollowUp:      cfg.FollowUp,
	}, client, recorder, &consolePlayer{console: out, outDir: opts.OutDir}, clock.Real{}, log,
		func(state session.State, status string) {
			out.Printf("[%s] %s\n", state, status)
		})
	defer sess.Close()

	var lastConn string
	sup := supervisor.New(supervisor.Config{
		UpdateInterval: cfg.UpdateInterval,
		RetryDelay:     cfg.RetryDelay,
		MaxRetries:     cfg.MaxRetries,
		PollTimeout:    cfg.RequestTimeout,
	}, client, clock.Real{}, log, func(state supervisor.State, status string) {
		if status != lastConn {
			lastConn = status
			out.Printf("[connection] %s\n", status)
		}
	})
	sup.Start()
	defer sup.Stop()

	stream, err := transport.NewEventStream(cfg.ServerURL, cfg.RetryDelay, log)
	if err != nil {
		return err
	}
	go stream.Run(ctx, func(ev domain.ServerResponseEvent) {
		out.Printf("[push] %q -> %s\n", ev.Command, ev.Response)
	})

	out.Printf("%s\n", session.StatusReady)
	if cfg.VoiceActivationEnabled {
		out.Printf("Say one of %s, then your command. Type /help for controls.\n", strings.Join(quote(cfg.WakePhrases), ", "))
	} else {
		out.Printf("Type a command. Type /help for controls.\n")
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			out.Printf("\nShutting down...\n")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(strings.TrimSpace(line), cfg, sess, sup, out); quit {
				return nil
			}
		}
	}
}

func handleLine(line string, cfg *config.ClientConfig, sess *session.Session, sup *supervisor.Supervisor, out *console) bool {
	if line == "" {
		return false
	}

	switch line {
	case "/quit", "/exit":
		return true
	case "/help":
		out.Printf("Controls:\n")
		out.Printf("  /wake    - start listening without a wake phrase\n")
		out.Printf("  /rearm   - listen again after the rearm delay\n")
		out.Printf("  /reset   - retry the server connection\n")
		out.Printf("  /status  - show session and connection status\n")
		out.Printf("  /quit    - exit\n")
		return false
	case "/wake":
		if err := sess.Wake(); err != nil {
			out.Printf("Busy: %s\n", sess.Status())
		}
		return false
	case "/rearm":
		if err := sess.Rearm(); err != nil {
			out.Printf("Busy: %s\n", sess.Status())
		}
		return false
	case "/reset":
		sup.Reset()
		return false
	case "/status":
		out.Printf("Session:    %s (%s)\n", sess.State(), sess.Status())
		out.Printf("Connection: %s (%s)\n", sup.State(), sup.Status())
		if report := sup.LastReport(); report != nil {
			out.Printf("Server:     %d connected, last command %q\n", report.ConnectedClients, report.LastProcessedCommand)
		}
		return false
	}

	if !cfg.VoiceActivationEnabled {
		if err := sess.PushToTalk(line); errors.Is(err, session.ErrInvalidTransition) {
			out.Printf("Busy: %s\n", sess.Status())
		}
		return false
	}
	if !sess.Hear(line) && sess.State() == session.Idle {
		out.Printf("(no wake phrase heard)\n")
	}
	return false
}

func quote(phrases []string) []string {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return quoted
}

// consolePlayer prints the reply and optionally keeps its audio.
type consolePlayer struct {
	console *console
	outDir  string
}

func (p *consolePlayer) Play(_ context.Context, reply *session.Reply) error {
	if reply.Transcription != "" {
		p.console.Printf("You said: %s\n", reply.Transcription)
	}
	p.console.Printf("Mirror:   %s\n", reply.Response)

	if p.outDir == "" || len(reply.Audio) == 0 {
		return nil
	}
	path, err := writeReplyAudio(p.outDir, reply.Audio)
	if err != nil {
		return err
	}
	p.console.Printf("Audio:    %s\n", path)
	return nil
}

// fileRecorder stands in for a microphone by returning a prerecorded WAV.
type fileRecorder struct {
	path string
}

func (r *fileRecorder) Start() error {
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("microphone unavailable: %w", err)
	}
	return nil
}

func (r *fileRecorder) Stop() ([]byte, error) {
	return os.ReadFile(r.path)
}

func writeReplyAudio(dir string, audio []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("reply-%s.mp3", time.Now().Format("20060102-150405.000")))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write reply audio: %w", err)
	}
	return path, nil
}
