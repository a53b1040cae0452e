package models

import (
	"sort"
	"time"
)

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentPDF   AttachmentType = "pdf"
)

func (t AttachmentType) Extension() string {
	if t == AttachmentPDF {
		return "pdf"
	}
	return "jpg"
}

// Attachment is a file owned by exactly one prayer. FileName is the UUID-based
// storage key and never changes after the file is written.
type Attachment struct {
	ID            string         `json:"id"`
	PrayerID      string         `json:"prayer_id,omitempty"`
	FileName      string         `json:"file_name"`
	OriginalName  string         `json:"original_name"`
	Type          AttachmentType `json:"type"`
	FileSizeBytes int64          `json:"file_size_bytes"`
	Order         int            `json:"order"`
	OCRText       *string        `json:"ocr_text,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SortAttachments sorts in place by Order, then by creation time.
func SortAttachments(atts []Attachment) {
	sort.SliceStable(atts, func(i, j int) bool {
		if atts[i].Order != atts[j].Order {
			return atts[i].Order < atts[j].Order
		}
		return atts[i].CreatedAt.Before(atts[j].CreatedAt)
	})
}
