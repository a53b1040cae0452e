package prayers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/utils"
)

type PrayerEditCmd struct {
	ID        string `arg:"" help:"Prayer ID or prefix."`
	Content   string `help:"New prayer text. Use - to read from stdin."`
	Category  string `short:"c" help:"New category."`
	Target    string `short:"t" help:"New target."`
	NoTarget  bool   `help:"Clear the target."`
	Date      string `short:"d" help:"New D-Day (YYYY-MM-DD, today or +N)."`
	NoDate    bool   `help:"Clear the D-Day."`
	Notify    string `help:"Turn reminders on or off."`
	Calendar  string `help:"Turn the calendar entry on or off."`
	CleanupAI bool   `name:"cleanup" help:"Tidy up the resulting content with the language model."`

	ReminderFlags `embed:""`
}

func (c *PrayerEditCmd) Validate() error {
	if c.Target != "" && c.NoTarget {
		return fmt.Errorf("--target and --no-target are mutually exclusive")
	}
	if c.Date != "" && c.NoDate {
		return fmt.Errorf("--date and --no-date are mutually exclusive")
	}
	return nil
}

func (c *PrayerEditCmd) Run(ctx *cli.Context) error {
	now := time.Now()
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}
	fields := fieldsOf(p)

	switch c.Content {
	case "":
	case "-":
		data, err := io.ReadAll(ctx.In)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		fields.Content = string(data)
	default:
		fields.Content = c.Content
	}
	if c.Category != "" {
		category, err := models.ParseCategory(c.Category)
		if err != nil {
			return err
		}
		fields.Category = category
	}
	if c.Target != "" {
		fields.Target = c.Target
	}
	if c.NoTarget {
		fields.Target = ""
	}
	if c.Date != "" {
		date, err := utils.ParseRelativeDate(c.Date, now)
		if err != nil {
			return err
		}
		fields.TargetDate = &date
	}
	if c.NoDate {
		fields.TargetDate = nil
	}

	if fields.NotificationEnabled, err = parseSwitch("notify", c.Notify, fields.NotificationEnabled); err != nil {
		return err
	}
	if fields.AddToCalendar, err = parseSwitch("calendar", c.Calendar, fields.AddToCalendar); err != nil {
		return err
	}
	if c.ReminderFlags.changed() {
		settings, err := c.ReminderFlags.apply(*fields.NotificationSettings, now)
		if err != nil {
			return err
		}
		fields.NotificationSettings = &settings
	}
	if fields.AddToCalendar && fields.TargetDate == nil {
		return fmt.Errorf("a calendar entry needs a D-Day")
	}

	if c.CleanupAI {
		fields.Content = cleanContent(context.Background(), ctx, fields.Content)
	}

	updated, err := ctx.Prayers.Update(p.ID, fields)
	if err := ctx.ReportSync(err); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Updated prayer: %s (ID: %s)\n", updated.Title, updated.ID)
	return nil
}
