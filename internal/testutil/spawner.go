// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package testutil provides fakes shared by orchestrator tests.
package testutil

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/camio/internal/ffmpeg"
)

// FakeSpawner is an in-memory ffmpeg.Spawner. Processes never run; tests end
// them through FakeProcess.Exit or Stop.
type FakeSpawner struct {
	mu    sync.Mutex
	procs []*FakeProcess

	// SpawnErr, when set, fails every Spawn.
	SpawnErr error
	// ExitOnStop makes Stop finish the process asynchronously with StopExitCode.
	ExitOnStop   bool
	StopExitCode int
	// OnSpawn runs synchronously inside Spawn, before it returns.
	OnSpawn func(argv []string)
}

var _ ffmpeg.Spawner = (*FakeSpawner)(nil)

// NewFakeSpawner returns a spawner whose processes exit with 255 when stopped,
// like ffmpeg after SIGTERM.
func NewFakeSpawner() *FakeSpawner {
	return &FakeSpawner{ExitOnStop: true, StopExitCode: 255}
}

func (s *FakeSpawner) Spawn(argv []string, onExit func(ffmpeg.ExitStatus)) (ffmpeg.Process, error) {
	s.mu.Lock()
	if s.SpawnErr != nil {
		err := s.SpawnErr
		s.mu.Unlock()
		return nil, err
	}
	p := &FakeProcess{
		Argv:    append([]string(nil), argv...),
		pid:     1000 + len(s.procs),
		onExit:  onExit,
		started: time.Now(),
		done:    make(chan struct{}),
		spawner: s,
	}
	s.procs = append(s.procs, p)
	hook := s.OnSpawn
	s.mu.Unlock()

	if hook != nil {
		hook(argv)
	}
	return p, nil
}

// Spawns returns how many processes were started.
func (s *FakeSpawner) Spawns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// Last returns the most recently spawned process, or nil.
func (s *FakeSpawner) Last() *FakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

func (s *FakeSpawner) stopBehaviour() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ExitOnStop, s.StopExitCode
}

// FakeProcess is a process handed out by FakeSpawner.
type FakeProcess struct {
	Argv []string

	pid      int
	onExit   func(ffmpeg.ExitStatus)
	started  time.Time
	done     chan struct{}
	exitOnce sync.Once
	stops    atomic.Int32
	spawner  *FakeSpawner
}

func (p *FakeProcess) Pid() int { return p.pid }

func (p *FakeProcess) Done() <-chan struct{} { return p.done }

func (p *FakeProcess) Stop() error {
	p.stops.Add(1)
	if auto, code := p.spawner.stopBehaviour(); auto {
		go p.Exit(code)
	}
	return nil
}

func (p *FakeProcess) Terminate(time.Duration) {
	_ = p.Stop()
	if auto, _ := p.spawner.stopBehaviour(); !auto {
		go p.Exit(137)
	}
	<-p.done
}

// Exit finishes the process with code. Only the first call has an effect.
func (p *FakeProcess) Exit(code int) {
	p.exitOnce.Do(func() {
		if p.onExit != nil {
			p.onExit(ffmpeg.ExitStatus{
				Code:      code,
				Class:     ffmpeg.Classify(code),
				StartedAt: p.started,
				EndedAt:   time.Now(),
			})
		}
		close(p.done)
	})
}

// StopCalls returns how often Stop was called.
func (p *FakeProcess) StopCalls() int { return int(p.stops.Load()) }

// Output returns the last argument, which is the destination path for both functions.
func (p *FakeProcess) Output() string {
	if len(p.Argv) == 0 {
		return ""
	}
	return p.Argv[len(p.Argv)-1]
}
