package usecase

import (
	"context"
	"log"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/calendar"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// MoveOutcome ドラッグ・リサイズの確定結果
type MoveOutcome int

const (
	// MoveCommitted 保存が確定した
	MoveCommitted MoveOutcome = iota
	// MoveReverted 保存に失敗したので表示を元に戻す必要がある
	MoveReverted
)

// MoveResult 先行して表示に反映した移動の結果
type MoveResult struct {
	Outcome MoveOutcome
	Task    domain.Task
	Err     error
}

// Reverted 表示を元に戻す必要があればtrue
func (r MoveResult) Reverted() bool {
	return r.Outcome == MoveReverted
}

// Workspace ストアとフォームを束ね、カレンダー操作を振り分ける
type Workspace struct {
	Tasks      *TaskStore
	Categories *CategoryStore
	Editor     *TaskEditController

	auth AuthProvider
}

// NewWorkspace ワークスペースを作成。auth, places, cacheはnilでもよい
func NewWorkspace(taskRepo TaskRepository, categoryRepo CategoryRepository, places PlaceSearchProvider, auth AuthProvider, cache SnapshotCache, requireLocation bool) *Workspace {
	tasks := NewTaskStore(taskRepo, cache)
	categories := NewCategoryStore(categoryRepo, tasks, cache)
	return &Workspace{
		Tasks:      tasks,
		Categories: categories,
		Editor:     NewTaskEditController(tasks, categories, places, requireLocation),
		auth:       auth,
	}
}

// Init ログイン状態を確認し、カテゴリ、タスクの順に取得する
func (w *Workspace) Init(ctx context.Context) error {
	if w.auth != nil {
		if !w.auth.Ready() {
			return apperr.NewUnauthenticatedError("ログインSDKの準備ができていません")
		}
		if _, ok := w.auth.CurrentUser(); !ok {
			return apperr.NewUnauthenticatedError("ログインしてください")
		}
	}

	if err := w.Categories.Refresh(ctx); err != nil {
		return err
	}
	return w.Tasks.Refresh(ctx)
}

// Warm キャッシュからスナップショットを読み込む
func (w *Workspace) Warm(ctx context.Context) {
	w.Categories.Warm(ctx)
	w.Tasks.Warm(ctx)
}

// Events 現在のフィルターでカレンダーイベントを生成する
func (w *Workspace) Events() []domain.CalendarEvent {
	return calendar.Project(w.Tasks.List(), w.Categories.List(), w.Categories.ActiveFilter())
}

// SetFilter フィルターを切り替える
func (w *Workspace) SetFilter(tag string) error {
	return w.Categories.SetFilter(tag)
}

// DateClick 日付クリックで作成フォームを開く
func (w *Workspace) DateClick(date string) {
	w.Editor.OpenForCreate(date)
}

// EventClick イベントクリックで編集フォームを開く
func (w *Workspace) EventClick(ctx context.Context, ev domain.CalendarEvent) error {
	if !hasSource(ev) {
		return apperr.NewNotFoundError("task", ev.Title)
	}
	return w.Editor.OpenForEdit(ctx, ev.Ref())
}

// MoveEvent ドラッグ・リサイズを保存する。結果がRevertedなら呼び出し側が表示を戻す
func (w *Workspace) MoveEvent(ctx context.Context, ev domain.CalendarEvent, newStart, newEnd string) MoveResult {
	if !hasSource(ev) {
		log.Printf("イベントに元のタスクがないため更新できません: %s", ev.Title)
		return MoveResult{Outcome: MoveReverted, Err: apperr.NewNotFoundError("task", ev.Title)}
	}

	task, err := w.Tasks.ShiftTime(ctx, ev.Ref(), newStart, newEnd)
	if err != nil {
		return MoveResult{Outcome: MoveReverted, Err: err}
	}
	return MoveResult{Outcome: MoveCommitted, Task: task}
}

// hasSource イベントが元のタスクを参照していればtrue
func hasSource(ev domain.CalendarEvent) bool {
	src := ev.Source
	return !src.ID.IsZero() || src.Title != "" || src.Date != ""
}
