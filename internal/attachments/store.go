package attachments

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
)

var (
	ErrTooLarge                = fmt.Errorf("attachment exceeds %d MB", constants.MaxAttachmentSizeBytes/(1024*1024))
	ErrUnsupportedFormat       = errors.New("unsupported attachment format")
	ErrDirectoryCreationFailed = errors.New("failed to create attachment directory")
	ErrWriteFailed             = errors.New("failed to write attachment")
	ErrLoadFailed              = errors.New("failed to load attachment")
	ErrDeleteFailed            = errors.New("failed to delete attachment")
	ErrInvalidFileName         = errors.New("invalid attachment file name")
)

// imageKinds are the input image formats that can be decoded and re-encoded
var imageKinds = map[string]bool{
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
	"bmp":  true,
}

type Options struct {
	MaxSizeBytes  int64
	JPEGQuality   int
	ThumbnailSize int
	Rasterizer    PageRasterizer
}

// Store keeps attachment files under a single directory, each named by a fresh UUID.
type Store struct {
	dir        string
	maxSize    int64
	quality    int
	thumbSize  int
	rasterizer PageRasterizer
	newName    func() string
	now        func() time.Time
}

func NewStore(dir string, opts Options) *Store {
	if opts.MaxSizeBytes <= 0 {
		opts.MaxSizeBytes = constants.MaxAttachmentSizeBytes
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = constants.DefaultJPEGQuality
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = constants.ThumbnailSize
	}
	return &Store{
		dir:        dir,
		maxSize:    opts.MaxSizeBytes,
		quality:    opts.JPEGQuality,
		thumbSize:  opts.ThumbnailSize,
		rasterizer: opts.Rasterizer,
		newName:    func() string { return uuid.New().String() },
		now:        time.Now,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save validates data against the declared type and writes it under a new
// UUID-based file name. Images are re-encoded as JPEG, PDFs are copied verbatim.
// The returned attachment has no ID or order yet.
func (s *Store) Save(data []byte, declared models.AttachmentType, originalName string) (models.Attachment, error) {
	if int64(len(data)) > s.maxSize {
		return models.Attachment{}, ErrTooLarge
	}

	var (
		payload []byte
		err     error
	)
	switch declared {
	case models.AttachmentPDF:
		if !filetype.Is(data, "pdf") {
			return models.Attachment{}, fmt.Errorf("%w: only PDF documents are supported", ErrUnsupportedFormat)
		}
		payload = data
		if originalName == "" {
			originalName = "Document.pdf"
		}
	case models.AttachmentImage:
		payload, err = s.reencode(data)
		if err != nil {
			return models.Attachment{}, err
		}
		originalName = imageDisplayName(originalName)
	default:
		return models.Attachment{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, declared)
	}

	if int64(len(payload)) > s.maxSize {
		return models.Attachment{}, ErrTooLarge
	}

	if err := s.ensureDir(); err != nil {
		return models.Attachment{}, err
	}

	fileName := s.newName() + "." + declared.Extension()
	if err := writeAtomic(s.path(fileName), payload); err != nil {
		return models.Attachment{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	logger.Debug("Saved attachment", "file", fileName, "type", declared, "bytes", len(payload))
	return models.Attachment{
		FileName:      fileName,
		OriginalName:  originalName,
		Type:          declared,
		FileSizeBytes: int64(len(payload)),
		CreatedAt:     s.now(),
	}, nil
}

// SaveFile reads a file from disk and saves it, inferring the type from its extension.
func (s *Store) SaveFile(path string) (models.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	if info.Size() > s.maxSize {
		return models.Attachment{}, ErrTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	declared := models.AttachmentImage
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		declared = models.AttachmentPDF
	}
	return s.Save(data, declared, filepath.Base(path))
}

func (s *Store) reencode(data []byte) ([]byte, error) {
	kind, err := filetype.Match(data)
	if err != nil || !imageKinds[kind.Extension] {
		return nil, fmt.Errorf("%w: not a supported image", ErrUnsupportedFormat)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode image: %v", ErrUnsupportedFormat, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return buf.Bytes(), nil
}

// Load returns the raw bytes of a stored attachment.
func (s *Store) Load(fileName string) ([]byte, error) {
	if err := checkFileName(fileName); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(fileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	return data, nil
}

// Path returns the absolute location of a stored attachment.
func (s *Store) Path(fileName string) string {
	return s.path(fileName)
}

// Delete removes a stored attachment. A missing file is not an error.
func (s *Store) Delete(fileName string) error {
	if err := checkFileName(fileName); err != nil {
		return err
	}
	err := os.Remove(s.path(fileName))
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
}

func (s *Store) Exists(fileName string) bool {
	if checkFileName(fileName) != nil {
		return false
	}
	_, err := os.Stat(s.path(fileName))
	return err == nil
}

// DiscardPending deletes files that were saved during composition but never
// linked to a persisted prayer. Failures are logged.
func (s *Store) DiscardPending(atts []models.Attachment) {
	for _, a := range atts {
		if err := s.Delete(a.FileName); err != nil {
			logger.Warn("Failed to discard pending attachment", "file", a.FileName, "error", err)
		}
	}
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryCreationFailed, err)
	}
	return nil
}

func (s *Store) path(fileName string) string {
	return filepath.Join(s.dir, fileName)
}

func checkFileName(fileName string) error {
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}
	return nil
}

func imageDisplayName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "Image.jpg"
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
