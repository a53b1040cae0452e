package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/prayer"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	favoriteMark = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("★")
	ddayStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func badge(meta models.DisplayMetadata) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(meta.Color)).
		Render("[" + meta.Name + "]")
}

func preview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}

// ShortID is the id prefix shown in lists and accepted by commands.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderList prints one line per prayer, newest first as given.
func RenderList(w io.Writer, prayers []models.Prayer, now time.Time) {
	if len(prayers) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("기도가 없습니다."))
		return
	}
	for _, p := range prayers {
		fav := " "
		if p.IsFavorite {
			fav = favoriteMark
		}
		line := fmt.Sprintf("%s %s %s %s", mutedStyle.Render(ShortID(p.ID)), fav, badge(models.StorageMeta(p.Storage)), titleStyle.Render(p.Title))
		if label := p.DDayLabel(now); label != "" {
			line += " " + ddayStyle.Render(label)
		}
		if p.HasAttachments() {
			line += mutedStyle.Render(fmt.Sprintf(" 📎%d", len(p.Attachments)))
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, "   "+mutedStyle.Render(preview(p.Content, 60)))
	}
}

// RenderDetail prints every field of a prayer in a box.
func RenderDetail(w io.Writer, p models.Prayer, now time.Time) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(p.Title))
	fmt.Fprintf(&b, "%s %s", badge(models.StorageMeta(p.Storage)), badge(models.CategoryMeta(p.Category)))
	if p.IsFavorite {
		fmt.Fprintf(&b, " %s", favoriteMark)
	}
	fmt.Fprintf(&b, "\n\n%s\n\n", p.Content)

	field := func(name, value string) {
		fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render(name+":"), value)
	}
	field("ID", p.ID)
	field("대상", p.DisplayTarget())
	field("작성", p.CreatedAt.Local().Format("2006-01-02 15:04"))
	if p.ModifiedAt != nil {
		field("수정", p.ModifiedAt.Local().Format("2006-01-02 15:04"))
	}
	if p.MovedAt != nil {
		field("이동", p.MovedAt.Local().Format("2006-01-02 15:04"))
	}
	if p.TargetDate != nil {
		field("D-Day", fmt.Sprintf("%s (%s)", p.TargetDate.Format(constants.DateFormat), ddayStyle.Render(p.DDayLabel(now))))
	}
	if p.NotificationEnabled {
		s := p.NotificationSettings
		reminders := fmt.Sprintf("%s %s", s.TimeText(), s.ReminderDaysText())
		if s.RepeatRule != models.RepeatNone {
			reminders += fmt.Sprintf(", 반복: %s", s.RepeatRule)
		}
		field("알림", reminders)
	} else {
		field("알림", "꺼짐")
	}
	if p.CalendarEventID != "" {
		field("캘린더", p.CalendarEventID)
	}
	for _, a := range p.SortedAttachments() {
		ocr := ""
		if a.OCRText != nil {
			ocr = mutedStyle.Render(" (텍스트 " + preview(*a.OCRText, 20) + ")")
		}
		field("첨부", fmt.Sprintf("%s %s %s %.1f KB%s", ShortID(a.ID), a.Type, a.OriginalName, float64(a.FileSizeBytes)/1024.0, ocr))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func RenderStats(w io.Writer, st prayer.Stats) {
	fmt.Fprintf(w, "%s %d\n", titleStyle.Render("전체 기도:"), st.Total)
	for _, s := range models.AllStorages {
		fmt.Fprintf(w, "  %s %d\n", badge(models.StorageMeta(s)), st.ByStorage[s])
	}
	fmt.Fprintf(w, "%s %d\n", titleStyle.Render("즐겨찾기:"), st.Favorites)
	if st.TopCategory != "" {
		fmt.Fprintf(w, "%s %s (%d)\n", titleStyle.Render("가장 많은 카테고리:"), models.CategoryMeta(st.TopCategory).Name, st.TopCategoryCount)
	}
	fmt.Fprintf(w, "%s %d / %d\n", titleStyle.Render("다가오는 D-Day:"), st.Upcoming, st.WithTargetDate)
	if len(st.ByTarget) > 0 {
		fmt.Fprintln(w, titleStyle.Render("대상별:"))
		for _, t := range st.ByTarget {
			fmt.Fprintf(w, "  %s %d\n", t.Target, t.Count)
		}
	}
}
