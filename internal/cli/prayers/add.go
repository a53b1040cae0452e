package prayers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/extraction"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/prayer"
	"github.com/julianstephens/prayanswer/internal/utils"
)

type PrayerAddCmd struct {
	Content  string   `arg:"" optional:"" help:"Prayer text. Use - to read from stdin."`
	Category string   `short:"c" help:"Category (personal|family|health|work|relationship|thanksgiving|vision|other)." default:"personal"`
	Target   string   `short:"t" help:"Who the prayer is for."`
	Date     string   `short:"d" help:"D-Day (YYYY-MM-DD, today or +N)."`
	Notify   bool     `short:"n" help:"Schedule reminders before the D-Day."`
	Calendar bool     `help:"Add an all-day calendar entry on the D-Day."`
	Attach   []string `short:"a" help:"Image or PDF files to attach." type:"existingfile"`
	OCR      bool     `help:"Recognize text in attached images and append it to the content."`
	Cleanup  bool     `help:"Tidy up the content with the language model before saving."`

	ReminderFlags `embed:""`
}

func (c *PrayerAddCmd) Validate() error {
	if c.Content == "" && !(c.OCR && len(c.Attach) > 0) {
		return fmt.Errorf("content is required unless --ocr is used with attachments")
	}
	if c.OCR && len(c.Attach) == 0 {
		return fmt.Errorf("--ocr needs at least one --attach file")
	}
	if c.Notify && c.Date == "" {
		return fmt.Errorf("--notify needs a --date")
	}
	if c.Calendar && c.Date == "" {
		return fmt.Errorf("--calendar needs a --date")
	}
	return nil
}

func (c *PrayerAddCmd) Run(ctx *cli.Context) error {
	now := time.Now()

	category, err := models.ParseCategory(c.Category)
	if err != nil {
		return err
	}

	content := c.Content
	if content == "-" {
		data, err := io.ReadAll(ctx.In)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		content = string(data)
	}

	fields := prayer.Fields{
		Category:            category,
		Target:              c.Target,
		NotificationEnabled: c.Notify,
		AddToCalendar:       c.Calendar,
	}
	if c.Date != "" {
		date, err := utils.ParseRelativeDate(c.Date, now)
		if err != nil {
			return err
		}
		fields.TargetDate = &date
	}
	if c.Notify {
		settings, err := c.ReminderFlags.apply(models.DefaultNotificationSettings(), now)
		if err != nil {
			return err
		}
		fields.NotificationSettings = &settings
	} else if c.ReminderFlags.changed() {
		return fmt.Errorf("reminder options need --notify")
	}

	atts := make([]models.Attachment, 0, len(c.Attach))
	for _, path := range c.Attach {
		att, err := ctx.Attachments.SaveFile(path)
		if err != nil {
			ctx.Attachments.DiscardPending(atts)
			return fmt.Errorf("failed to attach %s: %w", path, err)
		}
		atts = append(atts, att)
	}

	bg := context.Background()
	if c.OCR {
		text, err := recognizeAttachments(bg, ctx, atts)
		if err != nil {
			fmt.Fprintln(ctx.Out, cli.WarningStyle.Render("⚠ "+ocrMessage(err)))
		} else {
			content = extraction.Merge(content, text)
		}
	}
	if c.Cleanup {
		content = cleanContent(bg, ctx, content)
	}
	fields.Content = content

	p, err := ctx.Prayers.Create(prayer.Draft{Fields: fields, Attachments: atts})
	if err := ctx.ReportSync(err); err != nil {
		ctx.Attachments.DiscardPending(atts)
		return err
	}

	fmt.Fprintf(ctx.Out, "Added prayer: %s (ID: %s)\n", p.Title, p.ID)
	return nil
}

// cleanContent returns the cleaned text, or the input unchanged with a warning.
func cleanContent(bg context.Context, ctx *cli.Context, content string) string {
	cleaned, err := ctx.Cleanup.Clean(bg, content)
	if err != nil {
		fmt.Fprintln(ctx.Out, cli.WarningStyle.Render("⚠ AI 정리를 건너뜁니다: "+err.Error()))
		return content
	}
	return cleaned
}

func ocrMessage(err error) string {
	return strings.TrimSpace("텍스트 인식 실패: " + err.Error())
}
