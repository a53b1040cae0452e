package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/prayanswer/internal/attachments"
	"github.com/julianstephens/prayanswer/internal/calendar"
	"github.com/julianstephens/prayanswer/internal/cleanup"
	"github.com/julianstephens/prayanswer/internal/extraction"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/reminder"
	"github.com/julianstephens/prayanswer/internal/speech"
	"github.com/julianstephens/prayanswer/internal/storage"
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		if hint := Message(err); hint != "" {
			fmt.Fprintf(os.Stderr, "%s\n", hint)
		}
		os.Exit(1)
	}
}

var messages = []struct {
	err error
	msg string
}{
	{models.ErrContentRequired, "기도 내용을 입력해주세요."},
	{models.ErrContentTooLong, "기도 내용은 2000자를 넘을 수 없습니다."},
	{models.ErrTitleTooLong, "제목은 100자를 넘을 수 없습니다."},
	{models.ErrInvalidCategory, "알 수 없는 카테고리입니다."},
	{models.ErrInvalidStorage, "알 수 없는 보관함입니다."},
	{storage.ErrNotFound, "기도를 찾을 수 없습니다."},
	{attachments.ErrTooLarge, "파일이 너무 큽니다. 20MB 이하의 파일만 첨부할 수 있습니다."},
	{attachments.ErrUnsupportedFormat, "지원하지 않는 파일 형식입니다. 이미지나 PDF만 첨부할 수 있습니다."},
	{attachments.ErrDirectoryCreationFailed, "첨부파일 폴더를 만들 수 없습니다."},
	{attachments.ErrWriteFailed, "첨부파일을 저장하지 못했습니다."},
	{attachments.ErrLoadFailed, "첨부파일을 불러오지 못했습니다."},
	{attachments.ErrDeleteFailed, "첨부파일을 삭제하지 못했습니다."},
	{attachments.ErrInvalidFileName, "잘못된 첨부파일 이름입니다."},
	{extraction.ErrInvalidImage, "이미지를 읽을 수 없습니다."},
	{extraction.ErrRecognitionFailed, "텍스트 인식에 실패했습니다. 다시 시도해주세요."},
	{extraction.ErrNoTextFound, "이미지에서 텍스트를 찾을 수 없습니다."},
	{cleanup.ErrEmptyInput, "정리할 텍스트가 없습니다."},
	{reminder.ErrPermissionRequired, "알림 권한이 필요합니다. 설정에서 알림을 허용해주세요."},
	{calendar.ErrPermissionRequired, "캘린더 권한이 필요합니다. 설정에서 캘린더 접근을 허용해주세요."},
	{calendar.ErrEventNotFound, "캘린더 일정을 찾을 수 없습니다."},
	{speech.ErrSpeechDenied, "음성 인식 권한이 필요합니다. 설정에서 음성 인식을 허용해주세요."},
	{speech.ErrMicrophoneDenied, "마이크 권한이 필요합니다. 설정에서 마이크 접근을 허용해주세요."},
}

// Message returns the user-facing text for a known error, or "" when the
// error has no dedicated message.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var notAvailable *cleanup.NotAvailableError
	if errors.As(err, &notAvailable) {
		return "AI 정리 기능을 사용할 수 없습니다: " + notAvailable.Reason
	}
	var summarization *cleanup.SummarizationError
	if errors.As(err, &summarization) {
		return "AI 정리에 실패했습니다. 원래 내용은 그대로 유지됩니다."
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return ""
}

// NeedsSettings reports whether the error can only be fixed by granting a
// permission in settings.
func NeedsSettings(err error) bool {
	return errors.Is(err, reminder.ErrPermissionRequired) ||
		errors.Is(err, calendar.ErrPermissionRequired) ||
		errors.Is(err, speech.ErrSpeechDenied) ||
		errors.Is(err, speech.ErrMicrophoneDenied)
}
