package domain

// CalendarEvent カレンダー表示用に射影されたイベント。保存されず、編集は必ずTask経由で行う
type CalendarEvent struct {
	Title           string
	Start           string
	End             string
	BackgroundColor string
	BorderColor     string
	TextColor       string

	// Source 射影元タスクの値。クリックやドラッグ時に元のタスクを復元するために使う
	Source Task
}

// Ref 射影元タスクの参照値
func (e CalendarEvent) Ref() TaskRef {
	return e.Source.Ref()
}
