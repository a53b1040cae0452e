package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/dispatch"
	"github.com/julianstephens/prayanswer/internal/logger"
)

var (
	ErrInvalidImage      = errors.New("image could not be decoded")
	ErrRecognitionFailed = errors.New("text recognition failed")
	ErrNoTextFound       = errors.New("no text found in image")
)

// DefaultLanguages are the recognition hints, most likely first
var DefaultLanguages = []string{"ko-KR", "en-US"}

// Candidate is one reading of a line with the engine's confidence in [0, 1].
type Candidate struct {
	Text       string
	Confidence float64
}

// Line is a recognized text line with one or more candidate readings.
type Line struct {
	Candidates []Candidate
}

// Best returns the highest-confidence candidate text.
func (l Line) Best() string {
	best := -1
	for i, c := range l.Candidates {
		if best < 0 || c.Confidence > l.Candidates[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return l.Candidates[best].Text
}

// Engine is the optical recognition collaborator.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, languages []string) ([]Line, error)
}

// Recognizer is the recognition stage. It never touches a prayer; callers
// decide whether to merge the returned text.
type Recognizer struct {
	engine    Engine
	languages []string
	queue     *dispatch.MainQueue
}

// NewRecognizer builds a recognition stage. queue may be nil, in which case
// async callbacks run on the worker goroutine.
func NewRecognizer(engine Engine, languages []string, queue *dispatch.MainQueue) *Recognizer {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Recognizer{engine: engine, languages: languages, queue: queue}
}

// Recognize decodes an encoded image and returns its text, one line per row.
func (r *Recognizer) Recognize(ctx context.Context, data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return r.RecognizeImage(ctx, img)
}

func (r *Recognizer) RecognizeImage(ctx context.Context, img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrInvalidImage
	}

	lines, err := r.engine.Recognize(ctx, img, r.languages)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}

	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line.Best()); text != "" {
			texts = append(texts, text)
		}
	}
	text := strings.TrimSpace(strings.Join(texts, "\n"))
	if text == "" {
		return "", ErrNoTextFound
	}
	return text, nil
}

// RecognizeAll recognizes several images and joins their text with a separator.
// Images without text are skipped; ErrNoTextFound is returned only when none had any.
func (r *Recognizer) RecognizeAll(ctx context.Context, images [][]byte) (string, error) {
	var parts []string
	for i, data := range images {
		text, err := r.Recognize(ctx, data)
		if errors.Is(err, ErrNoTextFound) {
			logger.Debug("No text in image, skipping", "index", i)
			continue
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return "", ErrNoTextFound
	}
	return strings.Join(parts, constants.OCRBatchSeparator), nil
}

// RecognizeAsync runs recognition on a worker goroutine and delivers the
// result on the main queue. Cancelling ctx abandons the result: done is not called.
func (r *Recognizer) RecognizeAsync(ctx context.Context, data []byte, done func(string, error)) {
	go func() {
		text, err := r.Recognize(ctx, data)
		if ctx.Err() != nil {
			return
		}
		deliver(r.queue, func() { done(text, err) })
	}()
}

func deliver(queue *dispatch.MainQueue, fn func()) {
	if queue == nil || !queue.Post(fn) {
		fn()
	}
}

// Merge appends recognized or cleaned text to what the user already wrote,
// separated by a blank line. Existing text is never dropped; the addition is
// cut so the result stays within the content limit.
func Merge(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return existing
	}

	prefix := strings.TrimRight(existing, " \t\r\n")
	if strings.TrimSpace(prefix) != "" {
		prefix += "\n\n"
	} else {
		prefix = ""
	}

	room := constants.MaxContentLength - utf8.RuneCountInString(prefix)
	if room <= 0 {
		return existing
	}
	if utf8.RuneCountInString(addition) > room {
		addition = string([]rune(addition)[:room])
	}
	return prefix + addition
}
