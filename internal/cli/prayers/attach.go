package prayers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/extraction"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/prayer"
)

type PrayerAttachCmd struct {
	ID    string   `arg:"" help:"Prayer ID or prefix."`
	Files []string `arg:"" help:"Image or PDF files." type:"existingfile"`
	OCR   bool     `help:"Recognize text in the new images and store it with each attachment."`
}

func (c *PrayerAttachCmd) Run(ctx *cli.Context) error {
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}

	atts := make([]models.Attachment, 0, len(c.Files))
	for _, path := range c.Files {
		att, err := ctx.Attachments.SaveFile(path)
		if err != nil {
			ctx.Attachments.DiscardPending(atts)
			return fmt.Errorf("failed to attach %s: %w", path, err)
		}
		atts = append(atts, att)
	}

	if _, err := ctx.Prayers.AddAttachments(p.ID, atts); err != nil {
		ctx.Attachments.DiscardPending(atts)
		return err
	}
	fmt.Fprintf(ctx.Out, "Attached %d file(s) to %s\n", len(atts), p.Title)

	if c.OCR {
		storeOCRTexts(context.Background(), ctx, p.ID, atts)
	}
	return nil
}

type PrayerDetachCmd struct {
	ID           string `arg:"" help:"Prayer ID or prefix."`
	AttachmentID string `arg:"" help:"Attachment ID or prefix."`
	Yes          bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *PrayerDetachCmd) Run(ctx *cli.Context) error {
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}
	att, err := findAttachment(p, c.AttachmentID)
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := ctx.Confirm(fmt.Sprintf("%s 첨부를 삭제할까요?", att.OriginalName))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(ctx.Out, "Cancelled.")
			return nil
		}
	}

	if _, err := ctx.Prayers.RemoveAttachment(p.ID, att.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Removed attachment %s\n", att.OriginalName)
	return nil
}

type PrayerReorderCmd struct {
	ID            string   `arg:"" help:"Prayer ID or prefix."`
	AttachmentIDs []string `arg:"" help:"Every attachment ID or prefix, in the new order."`
}

func (c *PrayerReorderCmd) Run(ctx *cli.Context) error {
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(c.AttachmentIDs))
	for _, prefix := range c.AttachmentIDs {
		att, err := findAttachment(p, prefix)
		if err != nil {
			return err
		}
		ids = append(ids, att.ID)
	}
	if _, err := ctx.Prayers.ReorderAttachments(p.ID, ids); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, "Attachments reordered.")
	return nil
}

// PrayerOCRCmd recognizes text in the attachments of an existing prayer.
type PrayerOCRCmd struct {
	ID    string `arg:"" help:"Prayer ID or prefix."`
	Merge bool   `help:"Append the recognized text to the prayer content."`
}

func (c *PrayerOCRCmd) Run(ctx *cli.Context) error {
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}
	if len(p.Attachments) == 0 {
		if p.ImageFileName != "" {
			return fmt.Errorf("prayer %s only has a legacy image, run migrate-legacy --rerun first", p.Title)
		}
		return fmt.Errorf("prayer %s has no attachments", p.Title)
	}

	bg := context.Background()
	texts := storeOCRTexts(bg, ctx, p.ID, p.SortedAttachments())
	if len(texts) == 0 {
		return extraction.ErrNoTextFound
	}
	joined := strings.Join(texts, constants.OCRBatchSeparator)
	fmt.Fprintln(ctx.Out, joined)

	if !c.Merge {
		return nil
	}
	fields := fieldsOf(p)
	fields.Content = extraction.Merge(p.Content, joined)
	_, err = ctx.Prayers.Update(p.ID, fields)
	if err := ctx.ReportSync(err); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, cli.SuccessStyle.Render("Recognized text appended to the prayer."))
	return nil
}

// recognizeAttachments runs recognition over the image attachments in order.
// PDFs are skipped.
func recognizeAttachments(bg context.Context, ctx *cli.Context, atts []models.Attachment) (string, error) {
	var images [][]byte
	for _, a := range atts {
		if a.Type != models.AttachmentImage {
			continue
		}
		data, err := ctx.Attachments.Load(a.FileName)
		if err != nil {
			return "", err
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		return "", extraction.ErrNoTextFound
	}
	return ctx.Recognizer.RecognizeAll(bg, images)
}

// storeOCRTexts recognizes each image attachment and saves the text on it.
// Per-attachment failures are reported and skipped.
func storeOCRTexts(bg context.Context, ctx *cli.Context, prayerID string, atts []models.Attachment) []string {
	var texts []string
	for _, a := range atts {
		if a.Type != models.AttachmentImage {
			continue
		}
		data, err := ctx.Attachments.Load(a.FileName)
		if err != nil {
			logger.Warn("Failed to load attachment for OCR", "attachment", a.ID, "error", err)
			continue
		}
		text, err := ctx.Recognizer.Recognize(bg, data)
		if errors.Is(err, extraction.ErrNoTextFound) {
			continue
		}
		if err != nil {
			fmt.Fprintln(ctx.Out, cli.WarningStyle.Render(fmt.Sprintf("⚠ %s: %s", a.OriginalName, ocrMessage(err))))
			continue
		}
		if _, err := ctx.Prayers.UpdateOCRText(prayerID, a.ID, &text); err != nil {
			logger.Warn("Failed to store recognized text", "attachment", a.ID, "error", err)
		}
		texts = append(texts, text)
	}
	return texts
}

func findAttachment(p models.Prayer, id string) (models.Attachment, error) {
	var match *models.Attachment
	for i := range p.Attachments {
		if !strings.HasPrefix(p.Attachments[i].ID, id) {
			continue
		}
		if match != nil {
			return models.Attachment{}, fmt.Errorf("attachment ID prefix %s is ambiguous", id)
		}
		match = &p.Attachments[i]
	}
	if match == nil || id == "" {
		return models.Attachment{}, fmt.Errorf("no attachment with ID %s", id)
	}
	return *match, nil
}

// fieldsOf returns the current editable fields, keeping the calendar entry.
func fieldsOf(p models.Prayer) prayer.Fields {
	settings := p.NotificationSettings
	return prayer.Fields{
		Content:              p.Content,
		Category:             p.Category,
		Target:               p.Target,
		TargetDate:           p.TargetDate,
		NotificationEnabled:  p.NotificationEnabled,
		NotificationSettings: &settings,
		AddToCalendar:        p.CalendarEventID != "",
	}
}
