package system

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/config"
	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/permission"
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
	t.Cleanup(ctx.Close)
	return ctx, out
}

func openTestContext(t *testing.T, input string) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	ctx, out := setupTestContext(t, input)
	if err := ctx.Store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	if err := ctx.Open(); err != nil {
		t.Fatalf("failed to open context: %v", err)
	}
	return ctx, out
}

func TestInitCmd_Success(t *testing.T) {
	ctx, _ := setupTestContext(t, "")

	cmd := &InitCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("init command failed: %v", err)
	}

	dbPath := ctx.Store.GetPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}
}

func TestInitCmd_Idempotent(t *testing.T) {
	ctx, _ := setupTestContext(t, "")

	cmd := &InitCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("second init failed (should be idempotent): %v", err)
	}
}

func TestInitCmd_ForceDeletesExisting(t *testing.T) {
	ctx, out := setupTestContext(t, "")

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("initial init failed: %v", err)
	}
	p := models.Prayer{
		ID:        "p1",
		Title:     "기도",
		Content:   "내용",
		Category:  models.CategoryPersonal,
		Storage:   models.StorageWaiting,
		CreatedAt: time.Now(),
	}
	if err := ctx.Store.AddPrayer(p); err != nil {
		t.Fatalf("failed to add prayer: %v", err)
	}

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("force init failed: %v", err)
	}
	if !strings.Contains(out.String(), "Deleted existing database") {
		t.Errorf("expected deletion message, got %q", out.String())
	}
	if _, err := ctx.Store.GetPrayer("p1"); err == nil {
		t.Error("prayer should be gone after force init")
	}
}

func TestNotifyCmd_OnceDryRun(t *testing.T) {
	ctx, out := openTestContext(t, "")

	due := models.PendingNotification{
		Identifier: "prayer_p1_day_0",
		FireAt:     time.Now().Add(-time.Minute),
		Title:      "오늘은 D-Day입니다",
		Body:       "엄마를 위해 기도해요",
		CreatedAt:  time.Now(),
	}
	later := due
	later.Identifier = "prayer_p1_day_1"
	later.FireAt = time.Now().Add(time.Hour)
	for _, n := range []models.PendingNotification{due, later} {
		if err := ctx.Store.SavePendingNotification(n); err != nil {
			t.Fatalf("failed to save notification: %v", err)
		}
	}

	cmd := &NotifyCmd{Once: true, DryRun: true}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "[DryRun] 오늘은 D-Day입니다: 엄마를 위해 기도해요") {
		t.Errorf("notification not printed: %q", got)
	}
	if !strings.Contains(got, "Delivered 1 notification(s).") {
		t.Errorf("unexpected summary: %q", got)
	}

	pending, err := ctx.Center.Pending()
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Identifier != "prayer_p1_day_1" {
		t.Errorf("expected only the future notification to remain, got %+v", pending)
	}

	out.Reset()
	if err := (&RemindersCmd{}).Run(ctx); err != nil {
		t.Fatalf("reminders failed: %v", err)
	}
	if !strings.Contains(out.String(), "prayer_p1_day_1") {
		t.Errorf("pending reminder not listed: %q", out.String())
	}
}

func TestPermissionsReset(t *testing.T) {
	ctx, out := openTestContext(t, "n\n")

	gate := ctx.Gates[constants.SettingCalendarPermission]
	if gate == nil {
		t.Fatal("calendar gate not registered")
	}
	if granted, err := gate.Request(); err != nil || granted {
		t.Fatalf("expected denial, got %v %v", granted, err)
	}

	out.Reset()
	if err := (&PermissionsListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), string(permission.Denied)) {
		t.Errorf("denied status not listed: %q", out.String())
	}

	if err := (&PermissionsResetCmd{Key: constants.SettingCalendarPermission}).Run(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	status, err := gate.Status()
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status != permission.NotDetermined {
		t.Errorf("expected not determined after reset, got %s", status)
	}

	if err := (&PermissionsResetCmd{Key: "nope"}).Run(ctx); err == nil {
		t.Error("expected error for unknown permission")
	}
}

func TestAIToggle(t *testing.T) {
	ctx, out := openTestContext(t, "")

	if err := (&AIDisableCmd{}).Run(ctx); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if !strings.Contains(out.String(), "user-disabled") {
		t.Errorf("expected user-disabled, got %q", out.String())
	}

	out.Reset()
	if err := (&AIEnableCmd{}).Run(ctx); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	// no provider is configured in tests
	if !strings.Contains(out.String(), "unavailable") {
		t.Errorf("expected unavailable, got %q", out.String())
	}
}

func TestMigrateLegacyCmd(t *testing.T) {
	ctx, out := openTestContext(t, "")

	if err := (&MigrateLegacyCmd{}).Run(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(out.String(), "already migrated") {
		t.Errorf("startup should have run the migration, got %q", out.String())
	}

	out.Reset()
	if err := (&MigrateLegacyCmd{Rerun: true}).Run(ctx); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if !strings.Contains(out.String(), "Migrated 0 legacy image(s), 0 failed.") {
		t.Errorf("unexpected rerun output: %q", out.String())
	}
}

func TestWidgetShowCmd(t *testing.T) {
	ctx, out := openTestContext(t, "")

	p := models.Prayer{
		ID:         "p1",
		Title:      "가족 기도",
		Content:    "가족의 평안",
		Category:   models.CategoryFamily,
		Storage:    models.StorageWaiting,
		IsFavorite: true,
		CreatedAt:  time.Now(),
	}
	if err := ctx.Store.AddPrayer(p); err != nil {
		t.Fatalf("failed to add prayer: %v", err)
	}
	ctx.Widget.Refresh()
	ctx.Widget.Stop()

	if err := (&WidgetShowCmd{Storage: "waiting"}).Run(ctx); err != nil {
		t.Fatalf("widget show failed: %v", err)
	}
	if !strings.Contains(out.String(), "가족 기도") {
		t.Errorf("snapshot missing favorite: %q", out.String())
	}
}
