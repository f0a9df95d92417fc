package domain

import (
	"strings"

	"github.com/k-negishi/todo-calendar-sync/internal/apperr"
)

// ID サーバーが採番する不透明な識別子。未保存のタスクでは空
type ID string

// IsZero 未採番ならtrue
func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// Location 地図上の位置
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CategoryRef サーバーのタスクに埋め込まれたカテゴリ詳細
type CategoryRef struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Task カレンダーに配置するタスクのドメインエンティティ
type Task struct {
	ID           ID           `json:"id,omitempty"`
	Title        string       `json:"title"`
	Date         string       `json:"date"`
	End          string       `json:"end"`
	Tag          string       `json:"tag"`
	Category     *CategoryRef `json:"category,omitempty"`
	Location     *Location    `json:"location,omitempty"`
	LocationName string       `json:"locationName,omitempty"`
}

// TaskRef タスクを特定するための値。IDを優先し、未採番の場合は(Title, Date)で照合する
type TaskRef struct {
	ID    ID
	Title string
	Date  string
	End   string
}

// ResolvedTag フラットなtagを優先し、なければネストされたカテゴリ名を返す
func (t Task) ResolvedTag() string {
	if t.Tag != "" {
		return t.Tag
	}
	if t.Category != nil {
		return t.Category.Name
	}
	return ""
}

// Ref タスクの参照値を返す
func (t Task) Ref() TaskRef {
	return TaskRef{ID: t.ID, Title: t.Title, Date: t.Date, End: t.End}
}

// Matches 参照が指すタスクならtrue
func (r TaskRef) Matches(t Task) bool {
	if !r.ID.IsZero() {
		return r.ID == t.ID
	}
	return t.Title == r.Title && t.Date == r.Date
}

// SameSlot タイトル・開始・終了の三つ組が一致すればtrue
func (r TaskRef) SameSlot(t Task) bool {
	return t.Title == r.Title && t.Date == r.Date && t.End == r.End
}

// Clone ポインタフィールドも含めた複製を返す
func (t Task) Clone() Task {
	out := t
	if t.Category != nil {
		c := *t.Category
		out.Category = &c
	}
	if t.Location != nil {
		l := *t.Location
		out.Location = &l
	}
	return out
}

// CloneTasks スライスを複製する
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// ValidateTimeRange 開始・終了が揃っていて、終了が開始より後であることを確認
func (t Task) ValidateTimeRange() error {
	if strings.TrimSpace(t.Date) == "" || strings.TrimSpace(t.End) == "" {
		return apperr.NewValidationError("date", "開始時間と終了時間を両方入力してください")
	}
	start, err := ParseDateTime(t.Date, nil)
	if err != nil {
		return apperr.NewValidationError("date", "開始時間の形式が不正です: "+t.Date)
	}
	end, err := ParseDateTime(t.End, nil)
	if err != nil {
		return apperr.NewValidationError("end", "終了時間の形式が不正です: "+t.End)
	}
	if !end.After(start) {
		return apperr.NewValidationError("end", "終了時間は開始時間より後にしてください")
	}
	return nil
}
