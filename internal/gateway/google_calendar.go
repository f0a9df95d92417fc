package gateway

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// eventIDPrefix Google Calendarのイベントに付けるIDの接頭辞。base32hexの文字だけを使う
const eventIDPrefix = "todocal"

// EventsWriter Google Calendarへのイベント書き込みを抽象化するインターフェース
type EventsWriter interface {
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) error
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) error
}

// serviceEventsWriter calendar.Serviceを使ったEventsWriterの実装
type serviceEventsWriter struct {
	service *calendar.Service
}

func (w *serviceEventsWriter) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) error {
	_, err := w.service.Events.Update(calendarID, eventID, event).Context(ctx).Do()
	return err
}

func (w *serviceEventsWriter) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) error {
	_, err := w.service.Events.Insert(calendarID, event).Context(ctx).Do()
	return err
}

// GoogleCalendarPublisher 射影したイベントをGoogle Calendarに反映する
type GoogleCalendarPublisher struct {
	writer     EventsWriter
	calendarID string
	timezone   *time.Location
}

// NewGoogleCalendarPublisher Google Calendarパブリッシャーを作成
func NewGoogleCalendarPublisher(ctx context.Context, credentialsJSON []byte, calendarID string, timezone *time.Location) (*GoogleCalendarPublisher, error) {
	// サービスアカウント認証でCalendar APIクライアントを作成
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("google認証情報の読み込みに失敗しました: %v", err)
	}

	service, err := calendar.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("google Calendar APIサービスの作成に失敗しました: %v", err)
	}

	return NewGoogleCalendarPublisherWithWriter(&serviceEventsWriter{service: service}, calendarID, timezone), nil
}

// NewGoogleCalendarPublisherWithWriter テスト用にEventsWriterを注入してパブリッシャーを作成
func NewGoogleCalendarPublisherWithWriter(writer EventsWriter, calendarID string, timezone *time.Location) *GoogleCalendarPublisher {
	if timezone == nil {
		timezone = time.Local
	}
	return &GoogleCalendarPublisher{
		writer:     writer,
		calendarID: calendarID,
		timezone:   timezone,
	}
}

// Publish 保存済みタスクのイベントを反映する。IDのないイベントは飛ばす
func (p *GoogleCalendarPublisher) Publish(ctx context.Context, events []domain.CalendarEvent) (int, error) {
	published := 0
	for _, ev := range events {
		if ev.Source.ID.IsZero() {
			continue
		}

		gev, err := p.convertToGoogleEvent(ev)
		if err != nil {
			log.Printf("Warning: イベントの変換をスキップしました: %v", err)
			continue
		}

		if err := p.upsert(ctx, gev); err != nil {
			return published, fmt.Errorf("カレンダーイベントの反映に失敗しました (%s): %v", ev.Title, err)
		}
		published++
	}
	return published, nil
}

// upsert 既存イベントを更新し、なければ作成する
func (p *GoogleCalendarPublisher) upsert(ctx context.Context, event *calendar.Event) error {
	err := p.writer.UpdateEvent(ctx, p.calendarID, event.Id, event)
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return p.writer.InsertEvent(ctx, p.calendarID, event)
	}
	return err
}

// convertToGoogleEvent 射影したイベントをGoogle Calendar APIのイベントに変換
func (p *GoogleCalendarPublisher) convertToGoogleEvent(ev domain.CalendarEvent) (*calendar.Event, error) {
	start, err := domain.ParseDateTime(ev.Start, p.timezone)
	if err != nil {
		return nil, fmt.Errorf("開始時刻の解析に失敗しました: %v", err)
	}
	end, err := domain.ParseDateTime(ev.End, p.timezone)
	if err != nil {
		return nil, fmt.Errorf("終了時刻の解析に失敗しました: %v", err)
	}

	title := ev.Title
	// タイトルが空の場合は「（無題）」に設定
	if title == "" {
		title = "（無題）"
	}

	return &calendar.Event{
		Id:       GoogleEventID(ev.Source.ID),
		Summary:  title,
		Location: ev.Source.LocationName,
		Start: &calendar.EventDateTime{
			DateTime: start.In(p.timezone).Format(time.RFC3339),
			TimeZone: p.timezone.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.In(p.timezone).Format(time.RFC3339),
			TimeZone: p.timezone.String(),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				"taskId": string(ev.Source.ID),
				"tag":    ev.Source.ResolvedTag(),
			},
		},
	}, nil
}

// GoogleEventID タスクIDから決まるイベントID
func GoogleEventID(id domain.ID) string {
	return eventIDPrefix + hex.EncodeToString([]byte(id))
}
