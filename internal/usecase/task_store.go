package usecase

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// TaskStore タスク一覧のスナップショットを保持し、リモートへの変更を仲介する
type TaskStore struct {
	repo  TaskRepository
	cache SnapshotCache

	mu    sync.RWMutex
	tasks []domain.Task
}

// NewTaskStore タスクストアを作成。cacheはnilでもよい
func NewTaskStore(repo TaskRepository, cache SnapshotCache) *TaskStore {
	return &TaskStore{
		repo:  repo,
		cache: cache,
		tasks: []domain.Task{},
	}
}

// List 現在のスナップショットの複製を返す
func (s *TaskStore) List() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneTasks(s.tasks)
}

// Refresh リモートから全件を取得してスナップショットを置き換える。失敗時は以前のスナップショットを残す
func (s *TaskStore) Refresh(ctx context.Context) error {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		log.Printf("タスク一覧の取得に失敗しました: %v", err)
		return apperr.NewRemoteFetchError("タスク一覧", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}

	s.mu.Lock()
	s.tasks = domain.CloneTasks(tasks)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveTasks(ctx, tasks); err != nil {
			log.Printf("タスクのキャッシュ保存に失敗しました: %v", err)
		}
	}
	return nil
}

// Warm スナップショットが空の場合のみキャッシュから読み込む。読み込めたらtrue
func (s *TaskStore) Warm(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	tasks, ok, err := s.cache.LoadTasks(ctx)
	if err != nil {
		log.Printf("タスクのキャッシュ読み込みに失敗しました: %v", err)
		return false
	}
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) > 0 {
		return false
	}
	s.tasks = domain.CloneTasks(tasks)
	return true
}

// Save isEditがfalseなら作成、trueならIDをキーに更新する。成功後はリモートから再取得する
func (s *TaskStore) Save(ctx context.Context, task domain.Task, isEdit bool) (domain.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return domain.Task{}, apperr.NewValidationError("title", "タイトルを入力してください")
	}
	if err := task.ValidateTimeRange(); err != nil {
		return domain.Task{}, err
	}
	if isEdit && task.ID.IsZero() {
		return domain.Task{}, apperr.NewValidationError("id", "更新するタスクのIDがありません")
	}

	var (
		saved domain.Task
		err   error
	)
	if isEdit {
		saved, err = s.repo.UpdateTask(ctx, task)
	} else {
		saved, err = s.repo.CreateTask(ctx, task)
	}
	if err != nil {
		log.Printf("タスクの保存に失敗しました: %v", err)
		return domain.Task{}, apperr.NewPersistenceError("タスクの保存", err)
	}

	s.refreshAfterMutation(ctx)
	return saved, nil
}

// Remove リモートから削除して再取得する
func (s *TaskStore) Remove(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return apperr.NewValidationError("id", "削除するタスクのIDがありません")
	}
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		log.Printf("タスクの削除に失敗しました: %v", err)
		return apperr.NewPersistenceError("タスクの削除", err)
	}

	if err := s.Refresh(ctx); err != nil {
		log.Printf("タスク削除後の再取得に失敗しました: %v", err)
		s.dropLocal(id)
	}
	return nil
}

// dropLocal 削除が確定したタスクをスナップショットから外す
func (s *TaskStore) dropLocal(id domain.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
}

// Find 参照に一致するタスクを返す。IDがあればIDで、なければ(Title, Date)で照合する
func (s *TaskStore) Find(ref domain.TaskRef) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if ref.Matches(t) {
			return t.Clone(), true
		}
	}
	return domain.Task{}, false
}

// FindSlot タイトル・開始・終了が一致するタスクを返す
func (s *TaskStore) FindSlot(ref domain.TaskRef) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if ref.SameSlot(t) {
			return t.Clone(), true
		}
	}
	return domain.Task{}, false
}

// ShiftTime ドラッグ・リサイズで変わった開始・終了を保存する。newEndが空なら元の長さを保つ
func (s *TaskStore) ShiftTime(ctx context.Context, ref domain.TaskRef, newStart, newEnd string) (domain.Task, error) {
	task, ok := s.Find(ref)
	if !ok {
		identifier := string(ref.ID)
		if ref.ID.IsZero() {
			identifier = ref.Title + "@" + ref.Date
		}
		if err := s.Refresh(ctx); err != nil {
			log.Printf("不一致検出後の再取得に失敗しました: %v", err)
		}
		return domain.Task{}, apperr.NewNotFoundError("task", identifier)
	}

	if strings.TrimSpace(newEnd) == "" {
		newEnd = keepDuration(task, newStart)
	}
	task.Date = newStart
	task.End = newEnd

	return s.Save(ctx, task, true)
}

// Retag fromタグの全タスクをtoタグへ付け替える。再取得は呼び出し側が行う
func (s *TaskStore) Retag(ctx context.Context, from, to string, toID domain.ID) (int, error) {
	retagged := 0
	for _, t := range s.List() {
		if t.ResolvedTag() != from {
			continue
		}

		t.Tag = to
		t.Category = nil
		if !toID.IsZero() {
			t.Category = &domain.CategoryRef{ID: toID, Name: to}
		}
		if _, err := s.repo.UpdateTask(ctx, t); err != nil {
			log.Printf("タスク %s のタグ変更に失敗しました: %v", t.ID, err)
			return retagged, apperr.NewPersistenceError("タスクのタグ変更", err)
		}
		retagged++
	}
	return retagged, nil
}

// refreshAfterMutation 変更成功後の再取得。失敗しても変更自体は確定しているのでログのみ
func (s *TaskStore) refreshAfterMutation(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		log.Printf("変更後の再取得に失敗しました: %v", err)
	}
}

// keepDuration 元のタスクの長さをnewStartに足した終了時刻を返す。計算できなければnewStart
func keepDuration(task domain.Task, newStart string) string {
	start, err := domain.ParseDateTime(task.Date, nil)
	if err != nil {
		return newStart
	}
	end, err := domain.ParseDateTime(task.End, nil)
	if err != nil {
		return newStart
	}
	shifted, err := domain.ParseDateTime(newStart, nil)
	if err != nil {
		return newStart
	}
	return formatLike(newStart, shifted.Add(end.Sub(start)))
}

// formatLike sampleと同じ形式でtを整形する
func formatLike(sample string, t time.Time) string {
	switch {
	case len(sample) == len(domain.FormLayout):
		return t.Format(domain.FormLayout)
	case len(sample) == len("2006-01-02T15:04:05"):
		return t.Format("2006-01-02T15:04:05")
	default:
		return t.Format(time.RFC3339)
	}
}
