package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/prayanswer/internal/attachments"
	"github.com/julianstephens/prayanswer/internal/calendar"
	"github.com/julianstephens/prayanswer/internal/cleanup"
	"github.com/julianstephens/prayanswer/internal/config"
	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/dispatch"
	"github.com/julianstephens/prayanswer/internal/extraction"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/notifier"
	"github.com/julianstephens/prayanswer/internal/permission"
	"github.com/julianstephens/prayanswer/internal/prayer"
	"github.com/julianstephens/prayanswer/internal/reminder"
	"github.com/julianstephens/prayanswer/internal/speech"
	"github.com/julianstephens/prayanswer/internal/storage"
	"github.com/julianstephens/prayanswer/internal/storage/sqlite"
	"github.com/julianstephens/prayanswer/internal/widget"
)

// Context carries the services every command needs. Everything is built once
// per process in NewContext.
type Context struct {
	Config *config.Config
	Store  *sqlite.Store
	Queue  *dispatch.MainQueue

	Prayers     *prayer.Service
	Attachments *attachments.Store
	Recognizer  *extraction.Recognizer
	Cleanup     *cleanup.Service
	Center      *notifier.Center
	Reminders   *reminder.Scheduler
	Calendar    *calendar.ICSCalendar
	Widget      *widget.Publisher
	Surface     *widget.FileSurface
	Speech      *speech.Session

	Out io.Writer
	In  io.Reader

	// Gates are the cached permission decisions, by settings key.
	Gates map[string]*permission.Gate

	reader *bufio.Reader
}

func NewContext(cfg *config.Config) *Context {
	c := &Context{
		Config: cfg,
		Store:  sqlite.NewStore(cfg.DatabasePath()),
		Queue:  dispatch.NewMainQueue(),
		Out:    os.Stdout,
		In:     os.Stdin,
		Gates:  make(map[string]*permission.Gate),
	}

	c.Attachments = attachments.NewStore(cfg.AttachmentsDir(), attachments.Options{
		MaxSizeBytes:  cfg.MaxAttachmentBytes(),
		JPEGQuality:   cfg.Attachments.JPEGQuality,
		ThumbnailSize: cfg.Attachments.ThumbnailPx,
		Rasterizer:    attachments.PdftoppmRasterizer{Command: cfg.Attachments.PDFCommand},
	})
	c.Recognizer = extraction.NewRecognizer(
		extraction.TesseractEngine{Command: cfg.OCR.Command, Timeout: cfg.OCR.Timeout},
		cfg.OCRLanguages(),
		c.Queue,
	)
	c.Cleanup = cleanup.NewService(cleanup.NewRewriter(cleanup.Config{
		Provider: cfg.CleanupProvider(),
		Model:    cfg.Cleanup.Model,
		BaseURL:  cfg.Cleanup.BaseURL,
		Timeout:  cfg.Cleanup.Timeout,
	}), c.Store, c.Queue)

	c.Center = notifier.NewCenter(c.Store, c.gate(constants.SettingNotificationPermission, "알림을 허용할까요?"))
	c.Reminders = reminder.NewScheduler(c.Center, nil)
	c.Calendar = calendar.NewICSCalendar(cfg.CalendarDir(), c.gate(constants.SettingCalendarPermission, "캘린더에 일정을 추가하도록 허용할까요?"))

	c.Surface = widget.NewFileSurface(cfg.WidgetDir())
	c.Widget = widget.NewPublisher(
		c.favorites,
		widget.NewSharedStore(cfg.WidgetDir()),
		c.Surface,
		c.Queue,
		cfg.Widget.MaxItems,
	)

	c.Prayers = prayer.NewService(c.Store, prayer.Options{
		Reminders: c.Reminders,
		Calendar:  c.Calendar,
		Widget:    c.Widget,
		Files:     c.Attachments,
	})

	c.Speech = speech.NewSession(
		&speech.CommandRecognizer{Command: cfg.Speech.Command, Args: cfg.Speech.Args},
		c.gate(constants.SettingSpeechPermission, "음성 인식을 허용할까요?"),
		c.gate(constants.SettingMicrophonePermission, "마이크 사용을 허용할까요?"),
		c.Queue,
	)
	return c
}

// Open loads the database, starts the widget publisher and runs the one-time
// legacy image migration.
func (c *Context) Open() error {
	if err := c.Store.Load(); err != nil {
		return err
	}
	c.Widget.Start(context.Background())

	migrator := c.LegacyMigrator()
	if _, err := migrator.Run(); err != nil {
		logger.Warn("Legacy attachment migration failed", "error", err)
	}
	return nil
}

// Close flushes a pending widget refresh, drains the main queue and closes the store.
func (c *Context) Close() {
	c.Widget.Stop()
	c.Queue.Close()
	if err := c.Store.Close(); err != nil {
		logger.Warn("Failed to close database", "error", err)
	}
}

// favorites feeds the widget. Unlike the service queries it reports errors,
// so a failing database never publishes an empty snapshot.
func (c *Context) favorites() ([]models.Prayer, error) {
	fav := true
	return c.Store.ListPrayers(storage.PrayerFilter{Favorite: &fav})
}

func (c *Context) LegacyMigrator() *attachments.LegacyMigrator {
	return &attachments.LegacyMigrator{
		Prayers:     c.Store,
		Settings:    c.Store,
		Attachments: c.Attachments,
		LegacyDir:   c.Config.LegacyImagesDir(),
	}
}

func (c *Context) gate(key, question string) *permission.Gate {
	g := permission.NewGate(c.Store, key, func() (bool, error) {
		return c.Confirm(question)
	})
	c.Gates[key] = g
	return g
}

// Confirm asks a yes/no question on the terminal. Anything but y/yes is a no.
func (c *Context) Confirm(question string) (bool, error) {
	fmt.Fprintf(c.Out, "%s [y/N]: ", question)
	response, err := c.ReadLine()
	if err != nil && err != io.EOF {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// ReadLine reads one line from the terminal without the trailing newline.
func (c *Context) ReadLine() (string, error) {
	if c.reader == nil {
		c.reader = bufio.NewReader(c.In)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ResolvePrayer finds a prayer by full ID or by an unambiguous ID prefix.
func (c *Context) ResolvePrayer(id string) (models.Prayer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Prayer{}, fmt.Errorf("prayer ID is required")
	}
	p, err := c.Store.GetPrayer(id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.Prayer{}, err
	}

	all, err := c.Store.ListPrayers(storage.PrayerFilter{})
	if err != nil {
		return models.Prayer{}, fmt.Errorf("failed to list prayers: %w", err)
	}
	var matches []models.Prayer
	for _, candidate := range all {
		if strings.HasPrefix(candidate.ID, id) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return models.Prayer{}, fmt.Errorf("no prayer with ID %s: %w", id, storage.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return models.Prayer{}, fmt.Errorf("ID prefix %s matches %d prayers", id, len(matches))
}

// ReportSync prints a warning for a *prayer.SyncError and swallows it: the
// record is already committed. Any other error is returned.
func (c *Context) ReportSync(err error) error {
	var syncErr *prayer.SyncError
	if errors.As(err, &syncErr) {
		fmt.Fprintln(c.Out, WarningStyle.Render("⚠ "+syncErr.Error()))
		return nil
	}
	return err
}

// ParseWeekdays parses a comma-separated list of weekdays
func ParseWeekdays(s string) ([]time.Weekday, error) {
	dayMap := map[string]time.Weekday{
		"sun": time.Sunday, "sunday": time.Sunday, "일": time.Sunday,
		"mon": time.Monday, "monday": time.Monday, "월": time.Monday,
		"tue": time.Tuesday, "tuesday": time.Tuesday, "화": time.Tuesday,
		"wed": time.Wednesday, "wednesday": time.Wednesday, "수": time.Wednesday,
		"thu": time.Thursday, "thursday": time.Thursday, "목": time.Thursday,
		"fri": time.Friday, "friday": time.Friday, "금": time.Friday,
		"sat": time.Saturday, "saturday": time.Saturday, "토": time.Saturday,
	}

	var weekdays []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if wd, ok := dayMap[part]; ok {
			weekdays = append(weekdays, wd)
			continue
		}
		// 0=Sunday, 6=Saturday
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 6 {
			return nil, fmt.Errorf("invalid weekday: %s", part)
		}
		weekdays = append(weekdays, time.Weekday(num))
	}
	return weekdays, nil
}
