// Package speech wires a speech-to-text engine into prayer composition.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/julianstephens/prayanswer/internal/dispatch"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/permission"
)

var (
	ErrSpeechDenied     = errors.New("speech recognition permission denied")
	ErrMicrophoneDenied = errors.New("microphone permission denied")
	ErrAlreadyRunning   = errors.New("speech recognition already running")
	ErrNotRunning       = errors.New("speech recognition not running")
)

// Recognizer is a streaming speech-to-text engine. Start returns once audio
// capture is running; onPartial receives the transcript so far each time it
// changes. Stop ends capture and returns the final transcript.
type Recognizer interface {
	Start(ctx context.Context, onPartial func(string)) error
	Stop() (string, error)
}

// Session runs one dictation: both permissions first, then the recognizer.
// Partial results are delivered on the main queue.
type Session struct {
	recognizer Recognizer
	speech     *permission.Gate
	microphone *permission.Gate
	queue      *dispatch.MainQueue

	mu      sync.Mutex
	running bool
	partial string
}

func NewSession(recognizer Recognizer, speech, microphone *permission.Gate, queue *dispatch.MainQueue) *Session {
	return &Session{
		recognizer: recognizer,
		speech:     speech,
		microphone: microphone,
		queue:      queue,
	}
}

// AuthorizationStatus reports the cached speech recognition decision.
func (s *Session) AuthorizationStatus() (permission.Status, error) {
	return s.speech.Status()
}

// RequestAuthorization asks for speech recognition, then for the microphone.
// The microphone is not asked for when speech recognition is denied.
func (s *Session) RequestAuthorization() error {
	granted, err := s.speech.Request()
	if err != nil {
		return fmt.Errorf("speech authorization failed: %w", err)
	}
	if !granted {
		return ErrSpeechDenied
	}

	granted, err = s.microphone.Request()
	if err != nil {
		return fmt.Errorf("microphone authorization failed: %w", err)
	}
	if !granted {
		return ErrMicrophoneDenied
	}
	return nil
}

// Start authorizes and begins recognition.
func (s *Session) Start(ctx context.Context, onPartial func(string)) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.partial = ""
	s.mu.Unlock()

	err := s.RequestAuthorization()
	if err == nil {
		err = s.recognizer.Start(ctx, func(text string) {
			s.mu.Lock()
			s.partial = text
			s.mu.Unlock()
			if onPartial == nil {
				return
			}
			if s.queue == nil || !s.queue.Post(func() { onPartial(text) }) {
				onPartial(text)
			}
		})
	}
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}
	logger.Debug("Speech recognition started")
	return nil
}

// Stop ends recognition and returns the trimmed final transcript. If the
// engine fails while stopping the last partial result is returned with the error.
func (s *Session) Stop() (string, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return "", ErrNotRunning
	}
	s.running = false
	s.mu.Unlock()

	text, err := s.recognizer.Stop()
	if err != nil {
		s.mu.Lock()
		text = s.partial
		s.mu.Unlock()
		return strings.TrimSpace(text), fmt.Errorf("speech recognition failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
