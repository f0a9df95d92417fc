package usecase

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// TaskSnapshot 最新のタスク一覧を取得するポート
type TaskSnapshot interface {
	Refresh(ctx context.Context) error
	List() []domain.Task
}

// NotifyAgendaUseCase 今日と明日のタスクを通知するユースケース
type NotifyAgendaUseCase struct {
	tasks    TaskSnapshot
	notifier AgendaNotifier
	location *time.Location
}

// NewNotifyAgendaUseCase ユースケースを生成
func NewNotifyAgendaUseCase(tasks TaskSnapshot, notifier AgendaNotifier, location *time.Location) *NotifyAgendaUseCase {
	if location == nil {
		location = time.Local
	}
	return &NotifyAgendaUseCase{
		tasks:    tasks,
		notifier: notifier,
		location: location,
	}
}

// Execute タスクを取得し、今日と明日の分を通知する。両日とも予定がなければスキップ
func (uc *NotifyAgendaUseCase) Execute(ctx context.Context, today, tomorrow time.Time) (skipped bool, err error) {
	if err := uc.tasks.Refresh(ctx); err != nil {
		log.Printf("タスクの取得に失敗しました: %v", err)
		return false, err
	}

	all := uc.tasks.List()
	todayTasks := TasksOn(all, today, uc.location)
	tomorrowTasks := TasksOn(all, tomorrow, uc.location)

	if len(todayTasks) == 0 && len(tomorrowTasks) == 0 {
		return true, nil
	}

	if err := uc.notifier.SendAgendaNotification(ctx, todayTasks, tomorrowTasks); err != nil {
		log.Printf("予定通知の送信に失敗しました: %v", err)
		return false, err
	}

	return false, nil
}

// TasksOn dayと同じ日（loc基準）に始まるタスクを開始時刻順に返す
func TasksOn(tasks []domain.Task, day time.Time, loc *time.Location) []domain.Task {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()

	type dated struct {
		task  domain.Task
		start time.Time
	}
	matched := make([]dated, 0)
	for _, t := range tasks {
		start, err := domain.ParseDateTime(t.Date, loc)
		if err != nil {
			log.Printf("Warning: 開始時刻を解析できないタスクをスキップしました: %s", t.Date)
			continue
		}
		sy, sm, sd := start.In(loc).Date()
		if sy == y && sm == m && sd == d {
			matched = append(matched, dated{task: t, start: start})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].start.Before(matched[j].start)
	})

	out := make([]domain.Task, len(matched))
	for i, m := range matched {
		out[i] = m.task
	}
	return out
}
