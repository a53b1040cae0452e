package speech

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

var execCommandContext = exec.CommandContext

// CommandRecognizer runs a streaming transcriber that prints recognized text
// to stdout, one segment per line.
type CommandRecognizer struct {
	Command string
	Args    []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
	lines  []string
	err    error
}

func (r *CommandRecognizer) Start(ctx context.Context, onPartial func(string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return ErrAlreadyRunning
	}
	if r.Command == "" {
		return fmt.Errorf("no speech recognition command configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := execCommandContext(ctx, r.Command, r.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open transcriber output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s: %w", r.Command, err)
	}

	r.cmd, r.cancel, r.lines, r.err = cmd, cancel, nil, nil
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			r.mu.Lock()
			r.lines = append(r.lines, line)
			text := strings.Join(r.lines, " ")
			r.mu.Unlock()
			if onPartial != nil {
				onPartial(text)
			}
		}
		if err := scanner.Err(); err != nil {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
		}
	}(r.done)
	return nil
}

func (r *CommandRecognizer) Stop() (string, error) {
	r.mu.Lock()
	cmd, cancel, done := r.cmd, r.cancel, r.done
	r.mu.Unlock()
	if cmd == nil {
		return "", ErrNotRunning
	}

	cancel()
	<-done
	_ = cmd.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmd, r.cancel, r.done = nil, nil, nil
	return strings.Join(r.lines, " "), r.err
}
