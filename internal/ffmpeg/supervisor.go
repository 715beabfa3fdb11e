// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/metrics"
	"github.com/ManuGH/camio/internal/procgroup"
	"github.com/rs/zerolog"
)

// ErrEmptyArgv is returned when Spawn is called without a binary.
var ErrEmptyArgv = errors.New("ffmpeg: empty argv")

const (
	defaultStderrLines = 256
	exitLogLines       = 20

	// maxStderrLine caps a single scanned stderr line.
	maxStderrLine = 1 << 20
)

// ExitStatus describes a finished subprocess.
type ExitStatus struct {
	Code      int
	Class     ExitClass
	StartedAt time.Time
	EndedAt   time.Time
	Stderr    []string // last lines of stderr, oldest first
}

// Process is a running subprocess.
type Process interface {
	Pid() int
	// Stop asks the process group to exit (SIGTERM). It does not wait.
	Stop() error
	// Terminate stops the process group, escalating to SIGKILL after grace,
	// and returns once the process has exited.
	Terminate(grace time.Duration)
	// Done is closed after the exit callback has returned.
	Done() <-chan struct{}
}

// Spawner starts subprocesses. onExit is invoked exactly once per successful Spawn.
type Spawner interface {
	Spawn(argv []string, onExit func(ExitStatus)) (Process, error)
}

// Supervisor is the exec-backed Spawner.
type Supervisor struct {
	function    string
	stderrLines int
	logger      zerolog.Logger
}

var _ Spawner = (*Supervisor)(nil)

// NewSupervisor returns a Supervisor whose logs and metrics are labelled with function.
func NewSupervisor(function string) *Supervisor {
	return &Supervisor{
		function:    function,
		stderrLines: defaultStderrLines,
		logger:      log.WithComponent("ffmpeg").With().Str(log.FieldFunction, function).Logger(),
	}
}

func (s *Supervisor) Spawn(argv []string, onExit func(ExitStatus)) (Process, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyArgv
	}

	// Lifetime is owned by Stop/Terminate, not by a caller context.
	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204
	procgroup.Prepare(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		metrics.IncSpawn(s.function, "error")
		return nil, fmt.Errorf("ffmpeg: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		metrics.IncSpawn(s.function, "error")
		return nil, fmt.Errorf("ffmpeg: start failed: %w", err)
	}
	metrics.IncSpawn(s.function, "ok")

	p := &process{
		cmd:     cmd,
		ring:    NewLineRing(s.stderrLines),
		started: time.Now(),
		exited:  make(chan struct{}),
		done:    make(chan struct{}),
		logger:  s.logger.With().Int(log.FieldPID, cmd.Process.Pid).Logger(),
	}
	p.logger.Debug().Str(log.FieldEvent, "ffmpeg.started").Strs("argv", argv).Msg("ffmpeg process started")

	go p.monitor(s.function, stderr, onExit)
	return p, nil
}

type process struct {
	cmd     *exec.Cmd
	ring    *LineRing
	started time.Time
	logger  zerolog.Logger

	exited   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (p *process) Pid() int { return p.cmd.Process.Pid }

func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		p.logger.Debug().Str(log.FieldEvent, "ffmpeg.stop").Msg("sending SIGTERM to ffmpeg process group")
		err = procgroup.Signal(p.cmd, syscall.SIGTERM)
	})
	return err
}

func (p *process) Terminate(grace time.Duration) {
	if procgroup.Terminate(p.cmd, p.exited, grace) {
		p.logger.Warn().Str(log.FieldEvent, "ffmpeg.killed").Dur("grace", grace).Msg("ffmpeg ignored SIGTERM, process group killed")
	}
	<-p.done
}

func (p *process) monitor(function string, stderr io.Reader, onExit func(ExitStatus)) {
	defer close(p.done)

	// Drain stderr before Wait; Wait closes the pipe.
	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 64*1024), maxStderrLine)
	for sc.Scan() {
		line := sc.Text()
		_, _ = p.ring.Write([]byte(line))
		p.logger.Debug().Str("line", line).Msg("ffmpeg stderr")
	}
	if err := sc.Err(); err != nil {
		p.logger.Warn().Err(err).Msg("ffmpeg stderr unreadable, discarding remainder")
		// keep the pipe empty so the child never blocks on write
		_, _ = io.Copy(io.Discard, stderr)
	}

	code := exitCode(p.cmd.Wait())
	close(p.exited)

	status := ExitStatus{
		Code:      code,
		Class:     Classify(code),
		StartedAt: p.started,
		EndedAt:   time.Now(),
		Stderr:    p.ring.LastN(exitLogLines),
	}
	metrics.IncExit(function, string(status.Class))
	metrics.ObserveRuntime(function, status.EndedAt.Sub(status.StartedAt).Seconds())

	evt := p.logger.Info()
	if status.Class == ExitAbnormal {
		evt = p.logger.Warn().Strs("stderr", status.Stderr)
	}
	evt.Str(log.FieldEvent, "ffmpeg.exited").
		Int(log.FieldExitCode, code).
		Str(log.FieldExitClass, string(status.Class)).
		Dur("runtime", status.EndedAt.Sub(status.StartedAt)).
		Msg("ffmpeg process exited")

	if onExit != nil {
		onExit(status)
	}
}
