// Package proc runs external tools (ffmpeg, basisu) with their output
// streamed into the logger.
package proc

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CommandFunc builds the command for a tool invocation. Tests replace it to
// avoid depending on installed binaries.
type CommandFunc func(ctx context.Context, args ...string) *exec.Cmd

// Command returns a CommandFunc running bin.
func Command(bin string) CommandFunc {
	return func(_ context.Context, args ...string) *exec.Cmd {
		return exec.Command(bin, args...)
	}
}

// tailLines is how many stderr lines are kept for error messages.
const tailLines = 8

// Process runs one command to completion.
type Process struct {
	cmd     *exec.Cmd
	timeout time.Duration
	prefix  string
	log     *zap.Logger

	mu   sync.Mutex
	tail []string
	done chan struct{}
}

// New returns a process for cmd. It logs nothing until SetLogger is called.
func New(cmd *exec.Cmd) *Process {
	return &Process{
		cmd:     cmd,
		timeout: time.Second,
		log:     zap.NewNop(),
	}
}

// SetTimeout sets how long to wait after an interrupt before killing.
func (p *Process) SetTimeout(d time.Duration) { p.timeout = d }

// SetPrefix sets the tool name prepended to log lines and errors.
func (p *Process) SetPrefix(prefix string) { p.prefix = prefix }

// SetLogger sets the logger that receives stderr lines at debug level.
func (p *Process) SetLogger(l *zap.Logger) {
	if l != nil {
		p.log = l
	}
}

// Run starts the process and waits for it. Cancelling ctx interrupts the
// process and kills it if it has not exited after the timeout.
func (p *Process) Run(ctx context.Context) error {
	pipe, err := p.cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("%s: starting: %w", p.prefix, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(pipe)
		for scanner.Scan() {
			p.record(scanner.Text())
		}
	}()

	p.done = make(chan struct{})
	go func() {
		select {
		case <-p.done:
		case <-ctx.Done():
			p.stop()
		}
	}()

	wg.Wait()
	err = p.cmd.Wait()
	close(p.done)

	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", p.prefix, ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %s", p.prefix, err, p.Stderr())
	}
	return nil
}

func (p *Process) record(line string) {
	p.log.Debug(line, zap.String("tool", p.prefix))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail = append(p.tail, line)
	if len(p.tail) > tailLines {
		p.tail = p.tail[len(p.tail)-tailLines:]
	}
}

// Stderr returns the last lines the process wrote to stderr.
func (p *Process) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.tail, "\n")
}

func (p *Process) stop() {
	p.cmd.Process.Signal(os.Interrupt) //nolint:errcheck

	select {
	case <-p.done:
	case <-time.After(p.timeout):
		p.cmd.Process.Kill() //nolint:errcheck
		<-p.done
	}
}
