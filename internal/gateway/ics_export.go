package gateway

import (
	"fmt"
	"log"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

const (
	icsProductID = "-//k-negishi//todo-calendar-sync//KO"
	icsUIDDomain = "todo-calendar-sync"
)

// ICSExporter 射影したイベントをiCalendar形式で出力する
type ICSExporter struct {
	timezone *time.Location
	clock    func() time.Time
}

// NewICSExporter iCalendarエクスポーターを作成。時刻はtimezone基準で解釈する
func NewICSExporter(timezone *time.Location) *ICSExporter {
	if timezone == nil {
		timezone = time.Local
	}
	return &ICSExporter{
		timezone: timezone,
		clock:    time.Now,
	}
}

// Export VCALENDARを出力する。IDのないイベントと時刻を解析できないイベントは含めない
func (x *ICSExporter) Export(events []domain.CalendarEvent) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	stamp := x.clock().UTC()
	for _, ev := range events {
		if ev.Source.ID.IsZero() {
			continue
		}
		if err := x.addEvent(cal, ev, stamp); err != nil {
			log.Printf("Warning: イベントの出力をスキップしました: %v", err)
		}
	}
	return cal.Serialize()
}

// addEvent VEVENTを1件追加する
func (x *ICSExporter) addEvent(cal *ical.Calendar, ev domain.CalendarEvent, stamp time.Time) error {
	start, err := domain.ParseDateTime(ev.Start, x.timezone)
	if err != nil {
		return fmt.Errorf("開始時刻の解析に失敗しました (%s): %v", ev.Title, err)
	}
	end, err := domain.ParseDateTime(ev.End, x.timezone)
	if err != nil {
		return fmt.Errorf("終了時刻の解析に失敗しました (%s): %v", ev.Title, err)
	}

	vevent := cal.AddEvent(ICSUID(ev.Source.ID))
	vevent.SetDtStampTime(stamp)
	vevent.SetStartAt(start)
	vevent.SetEndAt(end)
	vevent.SetSummary(ev.Title)

	if ev.Source.LocationName != "" {
		vevent.SetLocation(ev.Source.LocationName)
	}
	if loc := ev.Source.Location; loc != nil {
		vevent.SetProperty(ical.ComponentPropertyGeo, fmt.Sprintf("%f;%f", loc.Lat, loc.Lng))
	}
	if tag := ev.Source.ResolvedTag(); tag != "" {
		vevent.SetProperty(ical.ComponentPropertyCategories, escapeICSText(tag))
	}
	if ev.BackgroundColor != "" {
		vevent.SetProperty(ical.ComponentProperty("COLOR"), ev.BackgroundColor)
	}
	return nil
}

// ICSUID タスクIDから決まるUID
func ICSUID(id domain.ID) string {
	return "task-" + string(id) + "@" + icsUIDDomain
}

// escapeICSText TEXT値の区切り文字をエスケープする
func escapeICSText(s string) string {
	return strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`).Replace(s)
}
