package prayers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/config"
	"github.com/julianstephens/prayanswer/internal/extraction"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/prayer"
)

func setupTestContext(t *testing.T, input string) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PRAYANSWER_DATA_DIR", dir)

	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	ctx := cli.NewContext(cfg)
	out := &bytes.Buffer{}
	ctx.Out = out
	ctx.In = strings.NewReader(input)

	if err := ctx.Store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	if err := ctx.Open(); err != nil {
		t.Fatalf("failed to open context: %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx, out
}

func onlyPrayer(t *testing.T, ctx *cli.Context) models.Prayer {
	t.Helper()
	all := ctx.Prayers.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 prayer, got %d", len(all))
	}
	return all[0]
}

func TestPrayerAddCmd_WithReminders(t *testing.T) {
	// the notification permission prompt is answered with y
	ctx, out := setupTestContext(t, "y\n")

	cmd := &PrayerAddCmd{
		Content:  "엄마의 빠른 회복을 위해",
		Category: "health",
		Target:   "엄마",
		Date:     "+3",
		Notify:   true,
		ReminderFlags: ReminderFlags{
			Days: "3,1,0",
			Time: "08:30",
		},
	}
	if err := cmd.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	p := onlyPrayer(t, ctx)
	if p.Title != "엄마의 건강 기도" {
		t.Errorf("unexpected title %q", p.Title)
	}
	if p.NotificationSettings.Hour != 8 || p.NotificationSettings.Minute != 30 {
		t.Errorf("unexpected reminder time %s", p.NotificationSettings.TimeText())
	}
	if !strings.Contains(out.String(), "Added prayer") {
		t.Errorf("missing confirmation output: %q", out.String())
	}

	pending, err := ctx.Center.Pending()
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("expected 3 pending reminders, got %d", len(pending))
	}
}

func TestPrayerAddCmd_Validate(t *testing.T) {
	tests := []struct {
		name string
		cmd  PrayerAddCmd
	}{
		{"no content", PrayerAddCmd{}},
		{"ocr without files", PrayerAddCmd{Content: "x", OCR: true}},
		{"notify without date", PrayerAddCmd{Content: "x", Notify: true}},
		{"calendar without date", PrayerAddCmd{Content: "x", Calendar: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cmd.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPrayerAddCmd_ReminderFlagsNeedNotify(t *testing.T) {
	ctx, _ := setupTestContext(t, "")

	cmd := &PrayerAddCmd{
		Content:       "기도",
		Category:      "personal",
		ReminderFlags: ReminderFlags{Days: "1"},
	}
	if err := cmd.Run(ctx); err == nil {
		t.Fatal("expected error for reminder flags without --notify")
	}
	if len(ctx.Prayers.All()) != 0 {
		t.Error("no prayer should be saved")
	}
}

func TestPrayerEditMoveFavoriteDelete(t *testing.T) {
	ctx, out := setupTestContext(t, "")

	add := &PrayerAddCmd{Content: "처음 기도", Category: "work"}
	if err := add.Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	p := onlyPrayer(t, ctx)
	prefix := p.ID[:8]

	edit := &PrayerEditCmd{ID: prefix, Content: "고친 기도", Target: "팀"}
	if err := edit.Run(ctx); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	p = onlyPrayer(t, ctx)
	if p.Content != "고친 기도" || p.Title != "팀의 직장 기도" {
		t.Errorf("edit not applied: %q / %q", p.Content, p.Title)
	}
	if p.ModifiedAt == nil {
		t.Error("modified time should be set")
	}

	move := &PrayerMoveCmd{ID: prefix, Storage: "answered"}
	if err := move.Run(ctx); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if got := onlyPrayer(t, ctx).Storage; got != models.StorageAnswered {
		t.Errorf("expected answered, got %s", got)
	}

	fav := &PrayerFavoriteCmd{ID: prefix}
	if err := fav.Run(ctx); err != nil {
		t.Fatalf("favorite failed: %v", err)
	}
	if !onlyPrayer(t, ctx).IsFavorite {
		t.Error("expected favorite")
	}

	out.Reset()
	list := &PrayerListCmd{Favorites: true, Storage: "answered"}
	if err := list.Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "팀의 직장 기도") {
		t.Errorf("favorite not listed: %q", out.String())
	}

	del := &PrayerDeleteCmd{ID: prefix, Yes: true}
	if err := del.Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(ctx.Prayers.All()) != 0 {
		t.Error("prayer should be deleted")
	}
}

func TestPrayerDeleteCmd_Cancelled(t *testing.T) {
	ctx, out := setupTestContext(t, "n\n")

	add := &PrayerAddCmd{Content: "지우지 말 기도", Category: "other"}
	if err := add.Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	p := onlyPrayer(t, ctx)

	del := &PrayerDeleteCmd{ID: p.ID}
	if err := del.Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !strings.Contains(out.String(), "Cancelled.") {
		t.Errorf("expected cancellation, got %q", out.String())
	}
	onlyPrayer(t, ctx)
}

func TestReminderFlagsApply(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

	tests := []struct {
		name    string
		flags   ReminderFlags
		check   func(t *testing.T, s models.NotificationSettings)
		wantErr bool
	}{
		{
			name:  "simple preset",
			flags: ReminderFlags{Preset: "simple"},
			check: func(t *testing.T, s models.NotificationSettings) {
				if len(s.ReminderDays) != 2 {
					t.Errorf("expected 2 offsets, got %v", s.ReminderDays)
				}
			},
		},
		{
			name:  "custom repeat",
			flags: ReminderFlags{Repeat: "custom", Weekdays: "mon,thu", RepeatCount: 4, RepeatEnd: "+10"},
			check: func(t *testing.T, s models.NotificationSettings) {
				if s.RepeatRule != models.RepeatCustom {
					t.Errorf("unexpected rule %s", s.RepeatRule)
				}
				if !s.CustomWeekdayMask.Has(time.Monday) || !s.CustomWeekdayMask.Has(time.Thursday) || s.CustomWeekdayMask.Has(time.Friday) {
					t.Errorf("unexpected mask %v", s.CustomWeekdayMask)
				}
				if s.MaxRepeatCount == nil || *s.MaxRepeatCount != 4 {
					t.Error("expected max repeat count 4")
				}
				if s.RepeatEndDate == nil || !s.RepeatEndDate.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.Local)) {
					t.Errorf("unexpected repeat end %v", s.RepeatEndDate)
				}
			},
		},
		{name: "custom without weekdays", flags: ReminderFlags{Repeat: "custom"}, wantErr: true},
		{name: "bad preset", flags: ReminderFlags{Preset: "loud"}, wantErr: true},
		{name: "bad days", flags: ReminderFlags{Days: "3,-1"}, wantErr: true},
		{name: "bad time", flags: ReminderFlags{Time: "25:00"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.flags.apply(models.DefaultNotificationSettings(), now)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, s)
		})
	}
}

func TestParseSwitch(t *testing.T) {
	if v, err := parseSwitch("notify", "", true); err != nil || !v {
		t.Errorf("empty should keep current, got %v %v", v, err)
	}
	if v, err := parseSwitch("notify", "off", true); err != nil || v {
		t.Errorf("off should disable, got %v %v", v, err)
	}
	if v, err := parseSwitch("notify", "ON", false); err != nil || !v {
		t.Errorf("ON should enable, got %v %v", v, err)
	}
	if _, err := parseSwitch("notify", "maybe", false); err == nil {
		t.Error("expected error for invalid value")
	}
}

type blankEngine struct{}

func (blankEngine) Recognize(ctx context.Context, img image.Image, languages []string) ([]extraction.Line, error) {
	return nil, nil
}

func savedImage(t *testing.T, ctx *cli.Context) models.Attachment {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatal(err)
	}
	att, err := ctx.Attachments.Save(buf.Bytes(), models.AttachmentImage, "blank.png")
	if err != nil {
		t.Fatal(err)
	}
	return att
}

func TestPrayerOCRCmd_NoTextLeavesContent(t *testing.T) {
	ctx, _ := setupTestContext(t, "")
	ctx.Recognizer = extraction.NewRecognizer(blankEngine{}, nil, ctx.Queue)

	content := "기존 내용\n두 번째 줄"
	created, err := ctx.Prayers.Create(prayer.Draft{
		Fields:      prayer.Fields{Content: content, Category: models.CategoryOther},
		Attachments: []models.Attachment{savedImage(t, ctx)},
	})
	if err != nil {
		t.Fatal(err)
	}

	err = (&PrayerOCRCmd{ID: created.ID, Merge: true}).Run(ctx)
	if !errors.Is(err, extraction.ErrNoTextFound) {
		t.Fatalf("expected ErrNoTextFound, got %v", err)
	}

	p := onlyPrayer(t, ctx)
	if p.Content != content {
		t.Errorf("content changed: %q", p.Content)
	}
	if p.ModifiedAt != nil {
		t.Errorf("prayer should not be modified, got %v", p.ModifiedAt)
	}
}

func TestPrayerOCRCmd_LegacyImageOnly(t *testing.T) {
	ctx, _ := setupTestContext(t, "")
	ctx.Recognizer = extraction.NewRecognizer(blankEngine{}, nil, ctx.Queue)

	created, err := ctx.Prayers.Create(prayer.Draft{
		Fields: prayer.Fields{Content: "x", Category: models.CategoryOther},
	})
	if err != nil {
		t.Fatal(err)
	}
	created.ImageFileName = "legacy.jpg"
	if err := ctx.Store.UpdatePrayer(created); err != nil {
		t.Fatal(err)
	}

	err = (&PrayerOCRCmd{ID: created.ID}).Run(ctx)
	if err == nil || errors.Is(err, extraction.ErrNoTextFound) {
		t.Fatalf("expected a legacy image error, got %v", err)
	}
	if !strings.Contains(err.Error(), "migrate-legacy") {
		t.Errorf("error should point at migrate-legacy: %v", err)
	}
}
