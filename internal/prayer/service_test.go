package prayer

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/prayanswer/internal/attachments"
	"github.com/julianstephens/prayanswer/internal/calendar"
	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/notifier"
	"github.com/julianstephens/prayanswer/internal/permission"
	"github.com/julianstephens/prayanswer/internal/reminder"
	"github.com/julianstephens/prayanswer/internal/storage"
	"github.com/julianstephens/prayanswer/internal/storage/sqlite"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingWidget struct {
	mu    sync.Mutex
	count int
}

func (w *countingWidget) Refresh() {
	w.mu.Lock()
	w.count++
	w.mu.Unlock()
}

func (w *countingWidget) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

type fakeCalendar struct {
	events    map[string]time.Time
	next      int
	addErr    error
	removeErr error
}

func (c *fakeCalendar) AddEvent(title, notes string, day time.Time, alarmOffsets []int) (string, error) {
	if c.addErr != nil {
		return "", c.addErr
	}
	c.next++
	id := "ev" + string(rune('0'+c.next))
	c.events[id] = day
	return id, nil
}

func (c *fakeCalendar) RemoveEvent(id string) error {
	if c.removeErr != nil {
		return c.removeErr
	}
	if _, ok := c.events[id]; !ok {
		return calendar.ErrEventNotFound
	}
	delete(c.events, id)
	return nil
}

type fixture struct {
	svc      *Service
	store    *sqlite.Store
	center   *notifier.Center
	widget   *countingWidget
	calendar *fakeCalendar
	files    *attachments.Store
	clock    *testClock
}

// 2026-03-10 15:30 local
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := &testClock{now: time.Date(2026, 3, 10, 15, 30, 0, 0, time.Local)}
	center := notifier.NewCenter(store, permission.NewGate(store, constants.SettingNotificationPermission, nil))
	f := &fixture{
		store:    store,
		center:   center,
		widget:   &countingWidget{},
		calendar: &fakeCalendar{events: map[string]time.Time{}},
		files:    attachments.NewStore(filepath.Join(t.TempDir(), constants.AttachmentsDirName), attachments.Options{}),
		clock:    clock,
	}
	f.svc = NewService(store, Options{
		Reminders: reminder.NewScheduler(center, clock.Now),
		Calendar:  f.calendar,
		Widget:    f.widget,
		Files:     f.files,
		Now:       clock.Now,
	})
	return f
}

func (f *fixture) day(offset int) *time.Time {
	d := models.StartOfDay(f.clock.Now()).AddDate(0, 0, offset)
	return &d
}

func (f *fixture) pending(t *testing.T, prayerID string) []string {
	t.Helper()
	ids, err := f.center.PendingWithPrefix("prayer_" + prayerID + "_")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(ids)
	return ids
}

func fields(content string) Fields {
	return Fields{Content: content, Category: models.CategoryPersonal}
}

func TestCreateScenarioMomHealth(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Create(Draft{Fields: Fields{
		Content:             "pray for mom",
		Category:            models.CategoryHealth,
		Target:              "mom",
		TargetDate:          f.day(3),
		NotificationEnabled: true,
	}})
	if err != nil {
		t.Fatal(err)
	}

	if p.Title != "mom의 건강 기도" {
		t.Errorf("unexpected title %q", p.Title)
	}
	if p.Storage != models.StorageWaiting || p.MovedAt != nil {
		t.Errorf("new prayer should be waiting and never moved: %+v", p)
	}
	want := []string{
		reminder.OffsetIdentifier(p.ID, 0),
		reminder.OffsetIdentifier(p.ID, 1),
		reminder.OffsetIdentifier(p.ID, 3),
	}
	if got := f.pending(t, p.ID); !reflect.DeepEqual(got, want) {
		t.Errorf("expected reminders %v, got %v", want, got)
	}
	if f.widget.Count() != 1 {
		t.Errorf("expected one widget refresh, got %d", f.widget.Count())
	}

	stored, err := f.svc.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Title != p.Title || !stored.NotificationSettings.IsEnabled {
		t.Errorf("stored prayer differs: %+v", stored)
	}
}

func TestCreateValidationHappensBeforePersistence(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		fields Fields
		want   error
	}{
		{"empty", fields("   "), models.ErrContentRequired},
		{"too long", fields(strings.Repeat("가", 2001)), models.ErrContentTooLong},
		{"bad category", Fields{Content: "x", Category: "nope"}, models.ErrInvalidCategory},
		{"long target", Fields{Content: "x", Category: models.CategoryFamily, Target: strings.Repeat("a", 100)}, models.ErrTitleTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(Draft{Fields: tt.fields}); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if n := len(f.svc.All()); n != 0 {
		t.Errorf("expected nothing persisted, got %d prayers", n)
	}
	if f.widget.Count() != 0 {
		t.Error("widget should not refresh when nothing was committed")
	}
}

func TestContentAtLimitIsAccepted(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Create(Draft{Fields: fields(strings.Repeat("가", 2000))}); err != nil {
		t.Errorf("2000 characters should be accepted: %v", err)
	}
}

func TestUpdateDisablingNotificationsCancelsReminders(t *testing.T) {
	f := newFixture(t)
	in := Fields{
		Content:             "취업",
		Category:            models.CategoryWork,
		Target:              "동생",
		TargetDate:          f.day(10),
		NotificationEnabled: true,
	}
	p, err := f.svc.Create(Draft{Fields: in})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.pending(t, p.ID)) != 4 {
		t.Fatalf("expected 4 reminders, got %v", f.pending(t, p.ID))
	}

	f.clock.Advance(time.Minute)
	in.NotificationEnabled = false
	updated, err := f.svc.Update(p.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.pending(t, p.ID); len(got) != 0 {
		t.Errorf("expected all reminders cancelled, got %v", got)
	}
	if updated.ModifiedAt == nil || updated.ModifiedAt.Before(updated.CreatedAt) {
		t.Errorf("modifiedAt should be set and not before createdAt: %v", updated.ModifiedAt)
	}
}

func TestUpdateTargetDateReschedules(t *testing.T) {
	f := newFixture(t)
	in := Fields{Content: "x", Category: models.CategoryFamily, TargetDate: f.day(10), NotificationEnabled: true}
	p, err := f.svc.Create(Draft{Fields: in})
	if err != nil {
		t.Fatal(err)
	}

	in.TargetDate = f.day(1)
	in.Target = "아빠"
	updated, err := f.svc.Update(p.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "아빠의 가족 기도" {
		t.Errorf("title should be regenerated, got %q", updated.Title)
	}
	want := []string{reminder.OffsetIdentifier(p.ID, 0), reminder.OffsetIdentifier(p.ID, 1)}
	if got := f.pending(t, p.ID); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestUpdateValidationLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(Draft{Fields: fields("원래 내용")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Update(p.ID, fields("")); !errors.Is(err, models.ErrContentRequired) {
		t.Fatalf("expected ErrContentRequired, got %v", err)
	}
	stored, _ := f.svc.Get(p.ID)
	if stored.Content != "원래 내용" || stored.ModifiedAt != nil {
		t.Errorf("record should be unchanged: %+v", stored)
	}
}

func TestUpdateMissingPrayer(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Update("missing", fields("x")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMoveSetsStorageAndMovedAt(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(Draft{Fields: Fields{Content: "x", Category: models.CategoryVision, TargetDate: f.day(5), NotificationEnabled: true}})
	if err != nil {
		t.Fatal(err)
	}
	before := f.pending(t, p.ID)

	for _, to := range []models.Storage{models.StorageAnswered, models.StorageNotAnswered, models.StorageWaiting} {
		f.clock.Advance(time.Hour)
		start := f.clock.Now()
		moved, err := f.svc.Move(p.ID, to)
		if err != nil {
			t.Fatal(err)
		}
		if moved.Storage != to || moved.MovedAt == nil || moved.MovedAt.Before(start) {
			t.Errorf("move to %s: %+v", to, moved)
		}
	}
	if got := f.pending(t, p.ID); !reflect.DeepEqual(got, before) {
		t.Errorf("move should not touch reminders: %v -> %v", before, got)
	}
	if _, err := f.svc.Move(p.ID, "archived"); !errors.Is(err, models.ErrInvalidStorage) {
		t.Errorf("expected ErrInvalidStorage, got %v", err)
	}
}

func TestToggleFavoriteTwice(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(Draft{Fields: fields("x")})
	if err != nil {
		t.Fatal(err)
	}
	base := f.widget.Count()

	first, err := f.svc.ToggleFavorite(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.ToggleFavorite(p.ID)
	if err != nil {
		t.Fatal(err)
	}

	if !first.IsFavorite || second.IsFavorite != p.IsFavorite {
		t.Errorf("favorite should flip and flip back: %v %v", first.IsFavorite, second.IsFavorite)
	}
	if got := f.widget.Count() - base; got != 2 {
		t.Errorf("expected exactly two widget refreshes, got %d", got)
	}
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (f *fixture) saveImage(t *testing.T) models.Attachment {
	t.Helper()
	a, err := f.files.Save(pngData(t), models.AttachmentImage, "")
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestDeleteRemovesFilesRemindersAndCalendar(t *testing.T) {
	f := newFixture(t)
	a1, a2 := f.saveImage(t), f.saveImage(t)

	p, err := f.svc.Create(Draft{
		Fields: Fields{
			Content:             "x",
			Category:            models.CategoryHealth,
			TargetDate:          f.day(7),
			NotificationEnabled: true,
			AddToCalendar:       true,
		},
		Attachments: []models.Attachment{a1, a2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.CalendarEventID == "" || len(f.calendar.events) != 1 {
		t.Fatalf("expected a calendar event, got %q", p.CalendarEventID)
	}
	if len(f.pending(t, p.ID)) == 0 {
		t.Fatal("expected reminders before delete")
	}

	if err := f.svc.Delete(p.ID); err != nil {
		t.Fatal(err)
	}
	for _, a := range []models.Attachment{a1, a2} {
		if f.files.Exists(a.FileName) {
			t.Errorf("file %s should be deleted", a.FileName)
		}
	}
	if got := f.pending(t, p.ID); len(got) != 0 {
		t.Errorf("expected reminders cancelled, got %v", got)
	}
	if len(f.calendar.events) != 0 {
		t.Error("calendar event should be removed")
	}
	if _, err := f.svc.Get(p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected prayer gone, got %v", err)
	}
}

func TestDeleteIgnoresCalendarFailure(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(Draft{Fields: Fields{Content: "x", Category: models.CategoryOther, TargetDate: f.day(2), AddToCalendar: true}})
	if err != nil {
		t.Fatal(err)
	}
	f.calendar.removeErr = errors.New("calendar store unavailable")

	if err := f.svc.Delete(p.ID); err != nil {
		t.Errorf("calendar failure must not block delete: %v", err)
	}
}

func TestCreateReportsSideEffectFailures(t *testing.T) {
	f := newFixture(t)
	f.calendar.addErr = calendar.ErrPermissionRequired
	if err := f.store.SetSetting(constants.SettingNotificationPermission, string(permission.Denied)); err != nil {
		t.Fatal(err)
	}

	p, err := f.svc.Create(Draft{Fields: Fields{
		Content:             "x",
		Category:            models.CategoryOther,
		TargetDate:          f.day(3),
		NotificationEnabled: true,
		AddToCalendar:       true,
	}})

	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected SyncError, got %v", err)
	}
	if !errors.Is(err, reminder.ErrPermissionRequired) || !errors.Is(err, calendar.ErrPermissionRequired) {
		t.Errorf("both permission errors should be visible: %v", err)
	}
	if _, getErr := f.svc.Get(p.ID); getErr != nil {
		t.Errorf("prayer should still be saved: %v", getErr)
	}
}

func TestUpdateReplacesCalendarEvent(t *testing.T) {
	f := newFixture(t)
	in := Fields{Content: "x", Category: models.CategoryOther, TargetDate: f.day(5), AddToCalendar: true}
	p, err := f.svc.Create(Draft{Fields: in})
	if err != nil {
		t.Fatal(err)
	}

	in.TargetDate = f.day(9)
	updated, err := f.svc.Update(p.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if updated.CalendarEventID == p.CalendarEventID {
		t.Error("event should be replaced")
	}
	if len(f.calendar.events) != 1 || !f.calendar.events[updated.CalendarEventID].Equal(*f.day(9)) {
		t.Errorf("unexpected calendar state %v", f.calendar.events)
	}

	in.AddToCalendar = false
	updated, err = f.svc.Update(p.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if updated.CalendarEventID != "" || len(f.calendar.events) != 0 {
		t.Errorf("event should be removed when calendar is turned off")
	}
}

func TestUpdateKeepsCalendarEventWhenReplacementFails(t *testing.T) {
	f := newFixture(t)
	in := Fields{Content: "x", Category: models.CategoryOther, TargetDate: f.day(5), AddToCalendar: true}
	p, err := f.svc.Create(Draft{Fields: in})
	if err != nil {
		t.Fatal(err)
	}

	f.calendar.addErr = errors.New("disk full")
	in.Content = "y"
	updated, err := f.svc.Update(p.ID, in)

	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Calendar == nil {
		t.Fatalf("expected a calendar SyncError, got %v", err)
	}
	if updated.CalendarEventID != p.CalendarEventID {
		t.Errorf("expected event %q to stay linked, got %q", p.CalendarEventID, updated.CalendarEventID)
	}
	if _, ok := f.calendar.events[p.CalendarEventID]; !ok {
		t.Errorf("existing event was removed: %v", f.calendar.events)
	}
	stored, err := f.svc.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Content != "y" || stored.CalendarEventID != p.CalendarEventID {
		t.Errorf("unexpected stored record %+v", stored)
	}
}

func TestUpdateUnchangedCalendarFieldsKeepsEvent(t *testing.T) {
	f := newFixture(t)
	in := Fields{Content: "x", Category: models.CategoryOther, TargetDate: f.day(5), AddToCalendar: true}
	p, err := f.svc.Create(Draft{Fields: in})
	if err != nil {
		t.Fatal(err)
	}

	f.calendar.addErr = errors.New("should not be called")
	updated, err := f.svc.Update(p.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if updated.CalendarEventID != p.CalendarEventID || len(f.calendar.events) != 1 {
		t.Errorf("event should be untouched, got %q %v", updated.CalendarEventID, f.calendar.events)
	}
}

func TestAttachmentOperations(t *testing.T) {
	f := newFixture(t)
	a1, a2, a3 := f.saveImage(t), f.saveImage(t), f.saveImage(t)

	p, err := f.svc.Create(Draft{Fields: fields("x"), Attachments: []models.Attachment{a1}})
	if err != nil {
		t.Fatal(err)
	}
	p, err = f.svc.AddAttachments(p.ID, []models.Attachment{a2, a3})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Attachments) != 3 {
		t.Fatalf("expected 3 attachments, got %d", len(p.Attachments))
	}
	ids := make([]string, 3)
	for i, a := range p.SortedAttachments() {
		if a.Order != i || a.PrayerID != p.ID || a.ID == "" {
			t.Errorf("attachment %d not adopted: %+v", i, a)
		}
		ids[i] = a.ID
	}

	reversed := []string{ids[2], ids[1], ids[0]}
	p, err = f.svc.ReorderAttachments(p.ID, reversed)
	if err != nil {
		t.Fatal(err)
	}
	for i, a := range p.SortedAttachments() {
		if a.ID != reversed[i] {
			t.Errorf("position %d: expected %s, got %s", i, reversed[i], a.ID)
		}
	}
	if _, err := f.svc.ReorderAttachments(p.ID, ids[:2]); err == nil {
		t.Error("partial reorder should fail")
	}

	text := "주님의 은혜"
	p, err = f.svc.UpdateOCRText(p.ID, ids[1], &text)
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := f.svc.Get(p.ID)
	for _, a := range stored.Attachments {
		if a.ID == ids[1] && (a.OCRText == nil || *a.OCRText != text) {
			t.Errorf("OCR text not stored: %+v", a)
		}
	}

	removedFile := ""
	for _, a := range stored.Attachments {
		if a.ID == ids[0] {
			removedFile = a.FileName
		}
	}
	p, err = f.svc.RemoveAttachment(p.ID, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Attachments) != 2 || f.files.Exists(removedFile) {
		t.Errorf("attachment should be unlinked and deleted")
	}
	for i, a := range p.SortedAttachments() {
		if a.Order != i {
			t.Errorf("orders should be compacted: %+v", a)
		}
	}
	if _, err := f.svc.RemoveAttachment(p.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueriesAndStats(t *testing.T) {
	f := newFixture(t)
	create := func(content string, c models.Category, target string) models.Prayer {
		f.clock.Advance(time.Minute)
		p, err := f.svc.Create(Draft{Fields: Fields{Content: content, Category: c, Target: target}})
		if err != nil {
			t.Fatal(err)
		}
		return p
	}
	a := create("a", models.CategoryHealth, "엄마")
	b := create("b", models.CategoryHealth, "엄마")
	c := create("c", models.CategoryWork, "")
	if _, err := f.svc.Move(b.ID, models.StorageAnswered); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ToggleFavorite(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ToggleFavorite(b.ID); err != nil {
		t.Fatal(err)
	}

	waiting := f.svc.PrayersInStorage(models.StorageWaiting)
	if len(waiting) != 2 || waiting[0].ID != c.ID {
		t.Errorf("expected newest first waiting list, got %v", waiting)
	}
	if got := f.svc.PrayersByCategory(models.CategoryHealth); len(got) != 2 {
		t.Errorf("expected 2 health prayers, got %d", len(got))
	}
	if got := f.svc.FavoritePrayers(); len(got) != 2 || got[0].ID != b.ID {
		t.Errorf("unexpected favorites %v", got)
	}
	if got := f.svc.FavoritesInStorage(models.StorageAnswered); len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("unexpected answered favorites %v", got)
	}
	if got := f.svc.AllTargets(); !reflect.DeepEqual(got, []string{"엄마"}) {
		t.Errorf("unexpected targets %v", got)
	}

	st := f.svc.Stats()
	if st.Total != 3 || st.Favorites != 2 || st.ByStorage[models.StorageWaiting] != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.TopCategory != models.CategoryHealth || st.TopCategoryCount != 2 {
		t.Errorf("unexpected top category %s (%d)", st.TopCategory, st.TopCategoryCount)
	}
	if len(st.ByTarget) != 2 || st.ByTarget[0] != (TargetCount{Target: "엄마", Count: 2}) {
		t.Errorf("unexpected targets %+v", st.ByTarget)
	}
}

func TestQueriesDegradeToEmptyOnFailure(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Create(Draft{Fields: fields("x")}); err != nil {
		t.Fatal(err)
	}
	_ = f.store.Close()

	if got := f.svc.All(); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
	if got := f.svc.AllTargets(); got == nil || len(got) != 0 {
		t.Errorf("expected empty targets, got %#v", got)
	}
	if _, err := f.svc.Create(Draft{Fields: fields("y")}); err == nil {
		t.Error("mutations must report persistence failures")
	}
}

func TestConcurrentTogglesDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(Draft{Fields: fields("x")})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ToggleFavorite(p.ID); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	stored, _ := f.svc.Get(p.ID)
	if stored.IsFavorite {
		t.Error("an even number of toggles should leave the prayer unfavorited")
	}
}
