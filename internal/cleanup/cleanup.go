// Package cleanup is the optional AI text-cleanup stage. It is only run when
// the caller asks for it after reviewing recognized or dictated text.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/dispatch"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/storage"
)

var ErrEmptyInput = errors.New("no text to clean up")

type NotAvailableError struct {
	Reason string
}

func (e *NotAvailableError) Error() string {
	return "text cleanup is not available: " + e.Reason
}

type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("text cleanup failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error {
	return e.Err
}

// Instructions are sent with every rewrite request.
const Instructions = `당신은 기도문 정리를 돕는 도우미입니다. 다음 규칙을 따르세요.
- "음", "어", "그러니까" 같은 군더더기 말과 반복을 제거하세요.
- 입력에 없는 내용은 절대 추가하지 마세요.
- 해당하는 내용이 있을 때만 감사, 간구, 결심으로 나누어 정리하세요.
- 정리된 기도문만 출력하세요. 설명이나 머리말을 붙이지 마세요.`

type Status int

const (
	StatusAvailable Status = iota
	StatusUnavailable
	StatusUserDisabled
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusUnavailable:
		return "unavailable"
	case StatusUserDisabled:
		return "user-disabled"
	}
	return "unknown"
}

// Capability is the result of the availability check made before every rewrite.
type Capability struct {
	Status Status
	Reason string
}

// Rewriter is the language-model collaborator.
type Rewriter interface {
	Rewrite(ctx context.Context, text, instructions string) (string, error)
	// Available reports whether the model can be used, and why not.
	Available() (bool, string)
}

type Service struct {
	rewriter Rewriter
	prefs    storage.SettingsStore
	queue    *dispatch.MainQueue
}

func NewService(rewriter Rewriter, prefs storage.SettingsStore, queue *dispatch.MainQueue) *Service {
	return &Service{rewriter: rewriter, prefs: prefs, queue: queue}
}

func (s *Service) Capability() Capability {
	if s.prefs != nil {
		v, ok, err := s.prefs.GetSetting(constants.SettingCleanupUserDisabled)
		if err != nil {
			logger.Warn("Failed to read cleanup preference", "error", err)
		} else if ok && v == "true" {
			return Capability{Status: StatusUserDisabled, Reason: "disabled in settings"}
		}
	}
	if s.rewriter == nil {
		return Capability{Status: StatusUnavailable, Reason: "no language model configured"}
	}
	if ok, reason := s.rewriter.Available(); !ok {
		return Capability{Status: StatusUnavailable, Reason: reason}
	}
	return Capability{Status: StatusAvailable}
}

func (s *Service) SetUserDisabled(disabled bool) error {
	if s.prefs == nil {
		return errors.New("no settings store")
	}
	return s.prefs.SetSetting(constants.SettingCleanupUserDisabled, fmt.Sprintf("%t", disabled))
}

// Clean rewrites text. The input is never modified; on failure the caller keeps what it had.
func (s *Service) Clean(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	capability := s.Capability()
	if capability.Status != StatusAvailable {
		return "", &NotAvailableError{Reason: capability.Reason}
	}

	out, err := s.rewriter.Rewrite(ctx, text, Instructions)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", &SummarizationError{Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &SummarizationError{Err: errors.New("model returned no text")}
	}
	return out, nil
}

// CleanAsync runs Clean on a worker goroutine and delivers the result on the
// main queue. Cancelling ctx abandons the result.
func (s *Service) CleanAsync(ctx context.Context, text string, done func(string, error)) {
	go func() {
		out, err := s.Clean(ctx, text)
		if ctx.Err() != nil {
			return
		}
		if s.queue == nil || !s.queue.Post(func() { done(out, err) }) {
			done(out, err)
		}
	}()
}
