package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
	"github.com/k-negishi/todo-calendar-sync/internal/domain"
)

// EditState 作成・編集フォームの状態
type EditState int

const (
	// StateClosed フォームが閉じている
	StateClosed EditState = iota
	// StateCreate 新規作成中
	StateCreate
	// StateEdit 既存タスクの編集中
	StateEdit
)

// String 状態の文字列表現
func (s EditState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateCreate:
		return "create"
	case StateEdit:
		return "edit"
	default:
		return "unknown"
	}
}

// TaskForm フォームの入力値
type TaskForm struct {
	Title        string
	Start        string
	End          string
	Tag          string
	Location     *domain.Location
	LocationName string
}

// TaskSaver フォームから使うタスクストアの操作
type TaskSaver interface {
	List() []domain.Task
	Refresh(ctx context.Context) error
	Save(ctx context.Context, task domain.Task, isEdit bool) (domain.Task, error)
	Remove(ctx context.Context, id domain.ID) error
}

// CategoryLister 永続化済みカテゴリの一覧
type CategoryLister interface {
	Persisted() []domain.Category
}

// TaskEditController 作成・編集フォームの検証、保存、削除確認を制御する
type TaskEditController struct {
	tasks           TaskSaver
	categories      CategoryLister
	places          PlaceSearchProvider
	requireLocation bool
	clock           func() time.Time

	state   EditState
	editing domain.Task
	form    TaskForm
	results []domain.Place
}

// NewTaskEditController コントローラーを作成。placesはnilでもよい
func NewTaskEditController(tasks TaskSaver, categories CategoryLister, places PlaceSearchProvider, requireLocation bool) *TaskEditController {
	return &TaskEditController{
		tasks:           tasks,
		categories:      categories,
		places:          places,
		requireLocation: requireLocation,
		clock:           time.Now,
		state:           StateClosed,
	}
}

// State 現在の状態
func (c *TaskEditController) State() EditState {
	return c.state
}

// Form 現在の入力値
func (c *TaskEditController) Form() TaskForm {
	return c.form
}

// Editing 編集対象のタスク
func (c *TaskEditController) Editing() (domain.Task, bool) {
	if c.state != StateEdit {
		return domain.Task{}, false
	}
	return c.editing.Clone(), true
}

// SearchResults 直近の場所検索結果
func (c *TaskEditController) SearchResults() []domain.Place {
	return append([]domain.Place(nil), c.results...)
}

// OpenForCreate 日付クリックで新規作成フォームを開く。日付がなければ現在時刻を使う
func (c *TaskEditController) OpenForCreate(defaultDate string) {
	c.reset()
	c.state = StateCreate

	defaultDate = strings.TrimSpace(defaultDate)
	if defaultDate != "" {
		day := defaultDate
		if len(day) > len("2006-01-02") {
			day = day[:len("2006-01-02")]
		}
		c.form.Start = day + "T09:00"
		c.form.End = day + "T09:30"
	} else {
		now := c.clock().Truncate(time.Minute)
		c.form.Start = domain.FormatFormTime(now)
		c.form.End = domain.FormatFormTime(now.Add(30 * time.Minute))
	}
	c.form.Tag = c.defaultTag()
}

// OpenForEdit イベントクリックで編集フォームを開く。現在の一覧から最新のタスクを探し直す
func (c *TaskEditController) OpenForEdit(ctx context.Context, ref domain.TaskRef) error {
	task, ok := c.locate(ref)
	if !ok {
		if err := c.tasks.Refresh(ctx); err != nil {
			log.Printf("不一致検出後の再取得に失敗しました: %v", err)
		}
		return apperr.NewNotFoundError("task", ref.Title+"@"+ref.Date)
	}

	c.reset()
	c.state = StateEdit
	c.editing = task
	c.form = TaskForm{
		Title:        task.Title,
		Start:        domain.TruncateToForm(task.Date),
		End:          domain.TruncateToForm(task.End),
		Tag:          task.ResolvedTag(),
		LocationName: task.LocationName,
	}
	if c.form.Tag == "" {
		c.form.Tag = c.defaultTag()
	}
	if task.Location != nil {
		loc := *task.Location
		c.form.Location = &loc
	}
	return nil
}

// Update フォームの入力値を変更する
func (c *TaskEditController) Update(fn func(f *TaskForm)) error {
	if c.state == StateClosed {
		return apperr.NewValidationError("state", "フォームが開いていません")
	}
	fn(&c.form)
	return nil
}

// SearchLocation キーワードで場所を検索し、先頭の結果を選択する
func (c *TaskEditController) SearchLocation(ctx context.Context, keyword string) error {
	if c.places == nil {
		return apperr.NewValidationError("location", "場所検索が利用できません")
	}
	if strings.TrimSpace(keyword) == "" {
		return apperr.NewValidationError("keyword", "検索キーワードを入力してください")
	}

	results, err := c.places.Search(ctx, keyword)
	if err != nil {
		log.Printf("場所の検索に失敗しました: %v", err)
		return apperr.NewRemoteFetchError("場所の検索", err)
	}
	c.results = results
	if len(results) == 0 {
		c.ClearLocation()
		return apperr.NewNotFoundError("place", keyword)
	}
	return c.SelectPlace(0)
}

// SelectPlace 検索結果のi番目を選択する
func (c *TaskEditController) SelectPlace(i int) error {
	if i < 0 || i >= len(c.results) {
		return apperr.NewValidationError("location", fmt.Sprintf("検索結果の範囲外です: %d", i))
	}
	place := c.results[i]
	loc := place.Location
	c.form.Location = &loc
	c.form.LocationName = place.Name
	if c.places != nil {
		c.places.ReverseFocus(loc)
	}
	return nil
}

// ClearLocation 選択中の場所を外し、地図を既定位置に戻す
func (c *TaskEditController) ClearLocation() {
	c.form.Location = nil
	c.form.LocationName = ""
	if c.places != nil {
		c.places.ReverseFocus(domain.DefaultMapCenter)
	}
}

// Validate 入力を検証する。最初に見つかった問題を返す
func (c *TaskEditController) Validate() error {
	f := c.form
	if strings.TrimSpace(f.Title) == "" {
		return apperr.NewValidationError("title", "タイトルを入力してください")
	}
	if strings.TrimSpace(f.Start) == "" || strings.TrimSpace(f.End) == "" {
		return apperr.NewValidationError("date", "開始時間と終了時間を両方入力してください")
	}
	if err := (domain.Task{Date: f.Start, End: f.End}).ValidateTimeRange(); err != nil {
		return err
	}
	if c.requireLocation && f.Location == nil {
		return apperr.NewValidationError("location", "場所を選択してください")
	}
	return nil
}

// Submit 検証して保存する。保存に成功した場合のみフォームを閉じる
func (c *TaskEditController) Submit(ctx context.Context) (domain.Task, error) {
	if c.state == StateClosed {
		return domain.Task{}, apperr.NewValidationError("state", "フォームが開いていません")
	}
	if err := c.Validate(); err != nil {
		return domain.Task{}, err
	}

	isEdit := c.state == StateEdit
	saved, err := c.tasks.Save(ctx, c.payload(), isEdit)
	if err != nil {
		return domain.Task{}, err
	}

	c.Close()
	return saved, nil
}

// Delete 編集中のタスクを削除する。confirmがnilかfalseを返した場合は何もしない
func (c *TaskEditController) Delete(ctx context.Context, confirm func() bool) (bool, error) {
	if c.state != StateEdit {
		return false, apperr.NewValidationError("state", "編集中のタスクがありません")
	}
	if confirm == nil || !confirm() {
		return false, nil
	}
	if err := c.tasks.Remove(ctx, c.editing.ID); err != nil {
		return false, err
	}

	c.Close()
	return true, nil
}

// Close フォームを閉じて入力値を破棄する
func (c *TaskEditController) Close() {
	c.reset()
	c.state = StateClosed
}

// payload フォームから保存用のタスクを組み立てる。タグは名前の完全一致でカテゴリIDに解決する
func (c *TaskEditController) payload() domain.Task {
	task := domain.Task{
		Title:        strings.TrimSpace(c.form.Title),
		Date:         c.form.Start,
		End:          c.form.End,
		Tag:          c.form.Tag,
		LocationName: c.form.LocationName,
	}
	if c.state == StateEdit {
		task.ID = c.editing.ID
	}
	if cat, ok := domain.FindCategory(c.categories.Persisted(), c.form.Tag); ok {
		task.Category = &domain.CategoryRef{ID: cat.ID, Name: cat.Name}
	}
	if c.form.Location != nil {
		loc := *c.form.Location
		task.Location = &loc
	}
	return task
}

// locate 三つ組一致を優先し、次にIDで現在の一覧からタスクを探す
func (c *TaskEditController) locate(ref domain.TaskRef) (domain.Task, bool) {
	tasks := c.tasks.List()
	for _, t := range tasks {
		if ref.SameSlot(t) {
			return t, true
		}
	}
	if !ref.ID.IsZero() {
		for _, t := range tasks {
			if t.ID == ref.ID {
				return t, true
			}
		}
	}
	return domain.Task{}, false
}

// defaultTag 既定カテゴリがあればその名前、なければ先頭のカテゴリ名
func (c *TaskEditController) defaultTag() string {
	cats := c.categories.Persisted()
	if _, ok := domain.FindCategory(cats, domain.DefaultCategoryName); ok {
		return domain.DefaultCategoryName
	}
	if len(cats) > 0 {
		return cats[0].Name
	}
	return ""
}

func (c *TaskEditController) reset() {
	c.editing = domain.Task{}
	c.form = TaskForm{}
	c.results = nil
}
